// Package plan defines account tiers and the catalog of purchasable
// products.
package plan

import (
	"fmt"

	"github.com/xraph/credits/types"
)

// Catalog product IDs.
const (
	ProductPro            = "pro"
	ProductTemplateSingle = "template_credit"
	ProductCredits10      = "credits_10"
	ProductCredits50      = "credits_50"
)

// Catalog is an ordered product list.
type Catalog []Product

// DefaultCatalog returns the products sold in the app, priced in rupees.
func DefaultCatalog() Catalog {
	return Catalog{
		{ID: ProductPro, Name: "Pro Plan", Kind: ProductPlanUpgrade, Plan: Pro, Price: inr(499)},
		{ID: ProductTemplateSingle, Name: "Premium Template", Kind: ProductTemplateCredit, Price: inr(99)},
		{ID: ProductCredits10, Name: "10 AI Credits", Kind: ProductCreditPack, Credits: 10, Price: inr(99)},
		{ID: ProductCredits50, Name: "50 AI Credits", Kind: ProductCreditPack, Credits: 50, Price: inr(399)},
	}
}

// Find returns the product with the given ID.
func (c Catalog) Find(productID string) (Product, error) {
	for _, p := range c {
		if p.ID == productID {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("plan: unknown product %q", productID)
}

// CreditPacks returns the credit pack products only.
func (c Catalog) CreditPacks() Catalog {
	var out Catalog
	for _, p := range c {
		if p.Kind == ProductCreditPack {
			out = append(out, p)
		}
	}
	return out
}

func inr(rupees int64) types.Money { return types.INR(rupees * 100) }
