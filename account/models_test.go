package account

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

func TestResetAnchor(t *testing.T) {
	a := &Account{CreatedAt: 1000}
	assert.EqualValues(t, 1000, a.ResetAnchor())

	a.LastCreditReset = 5000
	assert.EqualValues(t, 5000, a.ResetAnchor())
	assert.Equal(t, types.Millis(5000).Add(time.Hour).Time(), a.NextReset(time.Hour))
}

func TestClone(t *testing.T) {
	a := &Account{UID: "u1", Credits: 3, History: []transaction.Transaction{{ID: "a"}}}
	c := a.Clone()

	c.Credits = 10
	c.History[0].ID = "b"

	assert.EqualValues(t, 3, a.Credits)
	assert.Equal(t, "a", a.History[0].ID)
	assert.Nil(t, (*Account)(nil).Clone())
}

func TestFieldsApply(t *testing.T) {
	email := "new@example.com"
	pro := plan.Pro
	bypass := true

	f := Fields{Email: &email, Plan: &pro, UsePersonalAPIKey: &bypass}
	require.False(t, f.IsEmpty())
	assert.True(t, Fields{}.IsEmpty())

	a := &Account{Email: "old@example.com", DisplayName: "Asha", Plan: plan.Free, Credits: 7}
	f.Apply(a)

	assert.Equal(t, email, a.Email)
	assert.Equal(t, "Asha", a.DisplayName)
	assert.Equal(t, plan.Pro, a.Plan)
	assert.True(t, a.UsePersonalAPIKey)
	assert.EqualValues(t, 7, a.Credits)
}

func TestAccountJSONLayout(t *testing.T) {
	a := Account{
		UID:             "u1",
		Email:           "u1@example.com",
		DisplayName:     "U One",
		PhotoURL:        "https://example.com/p.png",
		Plan:            plan.Free,
		Credits:         25,
		TemplateCredits: 1,
		CreatedAt:       1700000000000,
		LastLogin:       1700000000001,
		LastCreditReset: 1700000000002,
		History: []transaction.Transaction{
			{ID: "t1", Amount: 25, Kind: transaction.KindBonus, Description: "Welcome bonus", Timestamp: 1700000000000},
		},
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))

	for _, key := range []string{
		"uid", "email", "displayName", "photoURL", "plan", "credits", "templateCredits",
		"createdAt", "lastLogin", "lastCreditReset", "usePersonalApiKey", "creditHistory",
	} {
		assert.Contains(t, doc, key)
	}

	entry := doc["creditHistory"].([]any)[0].(map[string]any)
	for _, key := range []string{"id", "amount", "type", "description", "timestamp"} {
		assert.Contains(t, entry, key)
	}
	assert.Equal(t, "bonus", entry["type"])
}

func TestAccountJSONLegacyDocument(t *testing.T) {
	// Documents created before resets existed have no lastCreditReset.
	raw := `{"uid":"u2","plan":"free","credits":4,"createdAt":1690000000000,"creditHistory":[]}`

	var a Account
	require.NoError(t, json.Unmarshal([]byte(raw), &a))
	assert.True(t, a.LastCreditReset.IsZero())
	assert.EqualValues(t, 1690000000000, a.ResetAnchor())
	assert.EqualValues(t, 0, a.TemplateCredits)
}
