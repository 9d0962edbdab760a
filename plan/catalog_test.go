package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits/types"
)

func TestPlanIsValid(t *testing.T) {
	for _, p := range []Plan{Free, Pro, Premium} {
		assert.True(t, p.IsValid(), p)
	}
	assert.False(t, Plan("enterprise").IsValid())
	assert.False(t, Plan("").IsValid())
}

func TestDefaultCatalogPrices(t *testing.T) {
	tests := []struct {
		id      string
		kind    ProductKind
		price   types.Money
		credits int64
	}{
		{ProductPro, ProductPlanUpgrade, types.INR(49900), 0},
		{ProductTemplateSingle, ProductTemplateCredit, types.INR(9900), 0},
		{ProductCredits10, ProductCreditPack, types.INR(9900), 10},
		{ProductCredits50, ProductCreditPack, types.INR(39900), 50},
	}

	catalog := DefaultCatalog()
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, err := catalog.Find(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.Kind)
			assert.Equal(t, tt.price, p.Price)
			assert.Equal(t, tt.credits, p.Credits)
		})
	}
}

func TestCatalogFindUnknown(t *testing.T) {
	_, err := DefaultCatalog().Find("credits_1000")
	assert.Error(t, err)
}

func TestCreditPacks(t *testing.T) {
	packs := DefaultCatalog().CreditPacks()
	require.Len(t, packs, 2)
	for _, p := range packs {
		assert.Equal(t, ProductCreditPack, p.Kind)
	}
}

func TestProUpgradeTargetsProPlan(t *testing.T) {
	p, err := DefaultCatalog().Find(ProductPro)
	require.NoError(t, err)
	assert.Equal(t, Pro, p.Plan)
}
