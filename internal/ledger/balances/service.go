package balances

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-erp/meridian-erp/internal/ledger/accounts"
	"github.com/meridian-erp/meridian-erp/internal/ledger/entries"
	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// AccountView pairs an account with its projected balances. Balance
// prefers a non-zero cached value for cheap display reads;
// ComputedBalance is always the entry aggregate and is the ground truth
// callers must use when correctness matters.
type AccountView struct {
	Account         accounts.Account
	TotalDebit      decimal.Decimal
	TotalCredit     decimal.Decimal
	RawBalance      decimal.Decimal
	ComputedBalance decimal.Decimal
	Balance         decimal.Decimal
}

// Filter narrows an account listing.
type Filter struct {
	Type       accounts.AccountType
	CodePrefix string
}

// AccountNode is one node of the chart hierarchy. Children are attached
// by parent reference; balances are not rolled up into parents.
type AccountNode struct {
	AccountView
	Children []*AccountNode
}

// TenantSummary is the cached tenant-wide aggregate.
type TenantSummary struct {
	TotalDebit  decimal.Decimal                          `json:"totalDebit"`
	TotalCredit decimal.Decimal                          `json:"totalCredit"`
	ByType      map[accounts.AccountType]decimal.Decimal `json:"byType"`
}

// AccountRepository is the account read port.
type AccountRepository interface {
	List(ctx context.Context, tenantID int64) ([]accounts.Account, error)
}

// EntryRepository is the entry aggregate read port.
type EntryRepository interface {
	TotalsByAccount(ctx context.Context, tenantID int64) ([]entries.AccountTotals, error)
}

// Service projects live balances from the entry store.
type Service struct {
	accounts AccountRepository
	entries  EntryRepository
	cache    *Cache
	group    singleflight.Group
}

func NewService(accountRepo AccountRepository, entryRepo EntryRepository, cache *Cache) *Service {
	return &Service{accounts: accountRepo, entries: entryRepo, cache: cache}
}

// AccountsWithBalance computes per-account totals and applies the polarity
// convention via accounts.DisplayBalance.
func (s *Service) AccountsWithBalance(ctx context.Context, tenantID int64, filter Filter) ([]AccountView, error) {
	if tenantID == 0 {
		return nil, fmt.Errorf("%w: tenant id required", shared.ErrValidation)
	}
	list, err := s.accounts.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	totals, err := s.entries.TotalsByAccount(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byAccount := make(map[int64]entries.AccountTotals, len(totals))
	for _, t := range totals {
		byAccount[t.AccountID] = t
	}
	var views []AccountView
	for _, account := range list {
		if filter.Type != "" && account.Type != filter.Type {
			continue
		}
		if filter.CodePrefix != "" && !strings.HasPrefix(account.Code, filter.CodePrefix) {
			continue
		}
		views = append(views, project(account, byAccount[account.ID]))
	}
	return views, nil
}

// AccountHierarchy builds the chart tree from parent references. Orphaned
// parents fall back to the root.
func (s *Service) AccountHierarchy(ctx context.Context, tenantID int64) ([]*AccountNode, error) {
	views, err := s.AccountsWithBalance(ctx, tenantID, Filter{})
	if err != nil {
		return nil, err
	}
	nodes := make(map[int64]*AccountNode, len(views))
	for _, view := range views {
		nodes[view.Account.ID] = &AccountNode{AccountView: view}
	}
	var roots []*AccountNode
	for _, view := range views {
		node := nodes[view.Account.ID]
		if view.Account.ParentID != nil {
			if parent, ok := nodes[*view.Account.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots, nil
}

// Summary returns the cached tenant-wide aggregate, computing and caching
// it on a miss. Concurrent misses for the same tenant share one rebuild.
func (s *Service) Summary(ctx context.Context, tenantID int64) (TenantSummary, error) {
	if tenantID == 0 {
		return TenantSummary{}, fmt.Errorf("%w: tenant id required", shared.ErrValidation)
	}
	if summary, hit, err := s.cache.Get(ctx, tenantID); err == nil && hit {
		return summary, nil
	}
	value, err, _ := s.group.Do(strconv.FormatInt(tenantID, 10), func() (any, error) {
		summary, err := s.computeSummary(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, tenantID, summary); err != nil {
			return summary, nil
		}
		return summary, nil
	})
	if err != nil {
		return TenantSummary{}, err
	}
	return value.(TenantSummary), nil
}

func (s *Service) computeSummary(ctx context.Context, tenantID int64) (TenantSummary, error) {
	views, err := s.AccountsWithBalance(ctx, tenantID, Filter{})
	if err != nil {
		return TenantSummary{}, err
	}
	summary := TenantSummary{
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
		ByType:      make(map[accounts.AccountType]decimal.Decimal),
	}
	for _, view := range views {
		summary.TotalDebit = summary.TotalDebit.Add(view.TotalDebit)
		summary.TotalCredit = summary.TotalCredit.Add(view.TotalCredit)
		current, ok := summary.ByType[view.Account.Type]
		if !ok {
			current = decimal.Zero
		}
		summary.ByType[view.Account.Type] = current.Add(view.ComputedBalance)
	}
	return summary, nil
}

func project(account accounts.Account, totals entries.AccountTotals) AccountView {
	raw := totals.TotalDebit.Sub(totals.TotalCredit)
	computed := accounts.DisplayBalance(account.Type, raw)
	balance := computed
	if !account.CachedBalance.IsZero() {
		balance = account.CachedBalance
	}
	return AccountView{
		Account:         account,
		TotalDebit:      totals.TotalDebit,
		TotalCredit:     totals.TotalCredit,
		RawBalance:      raw,
		ComputedBalance: computed,
		Balance:         balance,
	}
}
