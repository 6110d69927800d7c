package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/ledger/shared"
)

// Registry resolves chart-of-accounts nodes, creating well-known accounts
// lazily on first reference per tenant.
type Registry struct {
	repo  Repository
	chart DefaultChart
}

// NewRegistry builds a Registry around the given chart table.
func NewRegistry(repo Repository, chart DefaultChart) *Registry {
	if chart == nil {
		chart = StandardChart()
	}
	return &Registry{repo: repo, chart: chart}
}

// ResolveOrCreate returns the tenant account carrying the code, creating it
// when absent. Existing accounts come back unchanged; name and type are
// only applied on first creation. A concurrent create for the same
// (tenant, code) converges on a single row: the loser of the insert race
// re-reads what the winner committed.
func (r *Registry) ResolveOrCreate(ctx context.Context, tenantID int64, code, name string, accountType AccountType) (Account, error) {
	if tenantID == 0 {
		return Account{}, fmt.Errorf("%w: tenant id required", shared.ErrValidation)
	}
	if code == "" {
		return Account{}, fmt.Errorf("%w: account code required", shared.ErrValidation)
	}
	account, err := r.repo.Get(ctx, tenantID, code)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, shared.ErrAccountNotFound) {
		return Account{}, err
	}
	created, err := r.repo.Create(ctx, Account{
		TenantID: tenantID,
		Code:     code,
		Name:     name,
		Type:     accountType,
	})
	if err == nil {
		return created, nil
	}
	if errors.Is(err, shared.ErrAccountConflict) {
		return r.repo.Get(ctx, tenantID, code)
	}
	return Account{}, err
}

// ResolveRole resolves a semantic role through the default chart.
// Unknown roles surface as configuration errors so the caller can tell a
// broken policy apart from bad input.
func (r *Registry) ResolveRole(ctx context.Context, tenantID int64, role Role) (Account, error) {
	spec, ok := r.chart.Spec(role)
	if !ok {
		return Account{}, fmt.Errorf("%w: no account mapped for role %q", shared.ErrConfiguration, role)
	}
	return r.ResolveOrCreate(ctx, tenantID, spec.Code, spec.Name, spec.Type)
}

// List returns the full chart for a tenant ordered by code.
func (r *Registry) List(ctx context.Context, tenantID int64) ([]Account, error) {
	if tenantID == 0 {
		return nil, fmt.Errorf("%w: tenant id required", shared.ErrValidation)
	}
	return r.repo.List(ctx, tenantID)
}
