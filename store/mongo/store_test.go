package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
)

func TestCASFilter(t *testing.T) {
	tests := []struct {
		name     string
		snapshot *account.Account
		want     bson.M
	}{
		{
			name:     "fresh legacy document",
			snapshot: &account.Account{UID: "u1", Credits: 25},
			want: bson.M{
				"uid":             "u1",
				"credits":         int64(25),
				"templateCredits": bson.M{"$in": bson.A{int64(0), nil}},
				"lastCreditReset": bson.M{"$in": bson.A{int64(0), nil}},
				"creditHistory.0": bson.M{"$exists": false},
			},
		},
		{
			name: "with history",
			snapshot: &account.Account{
				UID:             "u1",
				Credits:         4,
				TemplateCredits: 2,
				LastCreditReset: 1700000000000,
				History:         []transaction.Transaction{{ID: "head"}, {ID: "older"}},
			},
			want: bson.M{
				"uid":                "u1",
				"credits":            int64(4),
				"templateCredits":    int64(2),
				"lastCreditReset":    int64(1700000000000),
				"creditHistory.0.id": "head",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, casFilter(tt.snapshot))
		})
	}
}

func TestLedgerUpdateOnlyTouchesLedgerFields(t *testing.T) {
	a := &account.Account{
		UID:         "u1",
		Email:       "u1@example.com",
		Plan:        plan.Pro,
		Credits:     24,
		LastLogin:   42,
		History:     []transaction.Transaction{{ID: "t1", Amount: -1, Kind: transaction.KindUsage}},
		DisplayName: "U",
	}

	set := ledgerUpdate(a)
	assert.ElementsMatch(t, []string{"credits", "templateCredits", "creditHistory"}, keys(set))

	a.LastCreditReset = 99
	assert.Contains(t, ledgerUpdate(a), "lastCreditReset")
}

func TestFieldsUpdate(t *testing.T) {
	pro := plan.Pro
	on := true
	set := fieldsUpdate(account.Fields{Plan: &pro, UsePersonalAPIKey: &on})
	assert.Equal(t, bson.M{"plan": "pro", "usePersonalApiKey": true}, set)
	assert.Empty(t, fieldsUpdate(account.Fields{}))
}

func TestAccountModelKeepsUIDAsDocumentID(t *testing.T) {
	m := toAccountModel(&account.Account{UID: "u1", History: []transaction.Transaction{{ID: "t", Kind: transaction.KindBonus}}})
	assert.Equal(t, "u1", m.ID)
	assert.Equal(t, "u1", m.UID)
	assert.Equal(t, "bonus", m.CreditHistory[0].Type)

	// Older documents may only carry the id.
	back := fromAccountModel(&accountModel{ID: "u2"})
	assert.Equal(t, "u2", back.UID)
	assert.Nil(t, back.History)
}

func keys(m bson.M) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
