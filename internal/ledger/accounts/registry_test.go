package accounts

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

type memoryAccountRepo struct {
	byKey  map[string]Account
	nextID int64

	missOnce bool
	getErr   error
}

func newMemoryAccountRepo() *memoryAccountRepo {
	return &memoryAccountRepo{byKey: make(map[string]Account)}
}

func key(tenantID int64, code string) string {
	return fmt.Sprintf("%d:%s", tenantID, code)
}

func (r *memoryAccountRepo) Get(ctx context.Context, tenantID int64, code string) (Account, error) {
	if r.getErr != nil {
		return Account{}, r.getErr
	}
	if r.missOnce {
		r.missOnce = false
		return Account{}, shared.ErrAccountNotFound
	}
	account, ok := r.byKey[key(tenantID, code)]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return account, nil
}

func (r *memoryAccountRepo) Create(ctx context.Context, account Account) (Account, error) {
	k := key(account.TenantID, account.Code)
	if _, exists := r.byKey[k]; exists {
		return Account{}, shared.ErrAccountConflict
	}
	r.nextID++
	account.ID = r.nextID
	r.byKey[k] = account
	return account, nil
}

func (r *memoryAccountRepo) List(ctx context.Context, tenantID int64) ([]Account, error) {
	var out []Account
	for _, account := range r.byKey {
		if account.TenantID == tenantID {
			out = append(out, account)
		}
	}
	return out, nil
}

func TestResolveOrCreateCreatesOnce(t *testing.T) {
	repo := newMemoryAccountRepo()
	registry := NewRegistry(repo, nil)

	first, err := registry.ResolveOrCreate(context.Background(), 1, "1010", "Cash", AccountTypeAsset)
	require.NoError(t, err)
	require.NotZero(t, first.ID)

	again, err := registry.ResolveOrCreate(context.Background(), 1, "1010", "Renamed", AccountTypeLiability)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, "Cash", again.Name)
	require.Equal(t, AccountTypeAsset, again.Type)
}

func TestResolveOrCreateConvergesAfterInsertRace(t *testing.T) {
	repo := newMemoryAccountRepo()
	registry := NewRegistry(repo, nil)

	// The winner's row lands between our read and our insert.
	winner, err := repo.Create(context.Background(), Account{TenantID: 1, Code: "1030", Name: "Accounts Receivable", Type: AccountTypeAsset})
	require.NoError(t, err)
	repo.missOnce = true

	resolved, err := registry.ResolveOrCreate(context.Background(), 1, "1030", "Accounts Receivable", AccountTypeAsset)
	require.NoError(t, err)
	require.Equal(t, winner.ID, resolved.ID)
}

func TestResolveOrCreateValidation(t *testing.T) {
	registry := NewRegistry(newMemoryAccountRepo(), nil)

	_, err := registry.ResolveOrCreate(context.Background(), 0, "1010", "Cash", AccountTypeAsset)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = registry.ResolveOrCreate(context.Background(), 1, "", "Cash", AccountTypeAsset)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestResolveOrCreateKeepsExistingMetadata(t *testing.T) {
	repo := newMemoryAccountRepo()
	registry := NewRegistry(repo, nil)

	_, err := repo.Create(context.Background(), Account{
		TenantID: 1,
		Code:     "1010",
		Name:     "Cash",
		Type:     AccountTypeAsset,
		Meta:     map[string]string{"currency": "USD"},
	})
	require.NoError(t, err)

	resolved, err := registry.ResolveOrCreate(context.Background(), 1, "1010", "Cash", AccountTypeAsset)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"currency": "USD"}, resolved.Meta)
}

func TestResolveOrCreatePropagatesStoreErrors(t *testing.T) {
	repo := newMemoryAccountRepo()
	repo.getErr = errors.New("connection reset")
	registry := NewRegistry(repo, nil)

	_, err := registry.ResolveOrCreate(context.Background(), 1, "1010", "Cash", AccountTypeAsset)
	require.EqualError(t, err, "connection reset")
}

func TestResolveRoleUsesChartDefaults(t *testing.T) {
	repo := newMemoryAccountRepo()
	registry := NewRegistry(repo, nil)

	account, err := registry.ResolveRole(context.Background(), 1, RoleInventory)
	require.NoError(t, err)
	require.Equal(t, "1040", account.Code)
	require.Equal(t, "Stock In Hand", account.Name)
	require.Equal(t, AccountTypeAsset, account.Type)
}

func TestResolveRoleUnknownIsConfigurationError(t *testing.T) {
	registry := NewRegistry(newMemoryAccountRepo(), nil)

	_, err := registry.ResolveRole(context.Background(), 1, Role("petty_cash"))
	require.ErrorIs(t, err, shared.ErrConfiguration)
}

func TestDisplayBalancePolarity(t *testing.T) {
	raw := decimal.NewFromInt(100).Sub(decimal.NewFromInt(30))

	require.True(t, DisplayBalance(AccountTypeAsset, raw).Equal(decimal.NewFromInt(70)))
	require.True(t, DisplayBalance(AccountTypeExpense, raw).Equal(decimal.NewFromInt(70)))
	require.True(t, DisplayBalance(AccountTypeOther, raw).Equal(decimal.NewFromInt(70)))

	require.True(t, DisplayBalance(AccountTypeLiability, raw).Equal(decimal.NewFromInt(-70)))
	require.True(t, DisplayBalance(AccountTypeEquity, raw).Equal(decimal.NewFromInt(-70)))
	require.True(t, DisplayBalance(AccountTypeIncome, raw).Equal(decimal.NewFromInt(-70)))
}
