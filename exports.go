package credits

import (
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Re-export common types so callers rarely need the sub-packages.

type (
	Account     = account.Account
	Profile     = account.Profile
	Transaction = transaction.Transaction
	Kind        = transaction.Kind
	Plan        = plan.Plan
	Money       = types.Money
)

// Re-exported transaction kinds.
const (
	KindUsage            = transaction.KindUsage
	KindPurchase         = transaction.KindPurchase
	KindMonthlyReset     = transaction.KindMonthlyReset
	KindBonus            = transaction.KindBonus
	KindManualAdjustment = transaction.KindManualAdjustment
)

// Re-exported plans.
const (
	PlanFree    = plan.Free
	PlanPro     = plan.Pro
	PlanPremium = plan.Premium
)

// INR is re-exported from the types package.
var INR = types.INR
