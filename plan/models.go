package plan

import "github.com/xraph/credits/types"

// Plan is the subscription tier stored on an account. It does not change
// any ledger rule; payment flows read it to decide what to grant.
type Plan string

const (
	Free    Plan = "free"
	Pro     Plan = "pro"
	Premium Plan = "premium"
)

// IsValid reports whether p is a known tier.
func (p Plan) IsValid() bool {
	switch p {
	case Free, Pro, Premium:
		return true
	}
	return false
}

func (p Plan) String() string { return string(p) }

// ProductKind says what a catalog product grants once paid for.
type ProductKind string

const (
	ProductCreditPack     ProductKind = "credit_pack"
	ProductTemplateCredit ProductKind = "template_credit"
	ProductPlanUpgrade    ProductKind = "plan_upgrade"
)

// Product is a purchasable catalog entry.
type Product struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Kind    ProductKind `json:"kind"`
	Credits int64       `json:"credits,omitempty"` // credit packs
	Plan    Plan        `json:"plan,omitempty"`    // plan upgrades
	Price   types.Money `json:"price"`
}
