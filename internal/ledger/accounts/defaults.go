package accounts

// Role names a semantic slot in the posting policies. The posting engine
// asks for accounts by role and the registry materialises them per tenant
// on first use.
type Role string

const (
	RoleCash              Role = "cash"
	RoleBank              Role = "bank"
	RoleReceivable        Role = "receivable"
	RolePayable           Role = "payable"
	RoleInventory         Role = "inventory"
	RoleOpeningEquity     Role = "opening_equity"
	RoleAdjustmentGain    Role = "adjustment_gain"
	RoleAdjustmentLoss    Role = "adjustment_loss"
	RoleUnreconciledFunds Role = "unreconciled_funds"
)

// RoleSpec carries the default code, name and type used when a role has to
// be created for a tenant.
type RoleSpec struct {
	Code string
	Name string
	Type AccountType
}

// DefaultChart maps roles to their well-known accounts. Passed into the
// posting engine explicitly so no hidden cross-tenant state exists.
type DefaultChart map[Role]RoleSpec

// StandardChart returns the built-in role table.
func StandardChart() DefaultChart {
	return DefaultChart{
		RoleCash:              {Code: "1010", Name: "Cash", Type: AccountTypeAsset},
		RoleBank:              {Code: "1020", Name: "Bank", Type: AccountTypeAsset},
		RoleReceivable:        {Code: "1030", Name: "Accounts Receivable", Type: AccountTypeAsset},
		RoleInventory:         {Code: "1040", Name: "Stock In Hand", Type: AccountTypeAsset},
		RolePayable:           {Code: "2010", Name: "Accounts Payable", Type: AccountTypeLiability},
		RoleOpeningEquity:     {Code: "3010", Name: "Opening Balance Equity", Type: AccountTypeEquity},
		RoleAdjustmentGain:    {Code: "4090", Name: "Stock Adjustment Gain", Type: AccountTypeIncome},
		RoleAdjustmentLoss:    {Code: "5090", Name: "Stock Adjustment Loss", Type: AccountTypeExpense},
		RoleUnreconciledFunds: {Code: "2090", Name: "Unreconciled Funds", Type: AccountTypeLiability},
	}
}

// Spec resolves a role, reporting whether it is known to the chart.
func (c DefaultChart) Spec(role Role) (RoleSpec, bool) {
	spec, ok := c[role]
	return spec, ok
}
