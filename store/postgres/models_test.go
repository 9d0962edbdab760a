package postgres

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

func TestAccountModelRoundTrip(t *testing.T) {
	a := &account.Account{
		UID:             "u1",
		Email:           "a@example.com",
		Plan:            plan.Pro,
		Credits:         20,
		TemplateCredits: 2,
		CreatedAt:       types.Millis(1000),
		LastLogin:       types.Millis(2000),
		History: []transaction.Transaction{
			{ID: "t2", Amount: -5, Kind: transaction.KindUsage, Description: "Interview session", Timestamp: 1500},
			{ID: "t1", Amount: 25, Kind: transaction.KindBonus, Description: "Welcome bonus", Timestamp: 1000},
		},
	}

	m := toAccountModel(a)
	assert.Equal(t, "pro", m.Plan)
	assert.Equal(t, int64(0), m.LastCreditReset)

	got, err := fromAccountModel(m)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestMarshalHistory(t *testing.T) {
	assert.JSONEq(t, `[]`, string(marshalHistory(nil)))

	raw := marshalHistory([]transaction.Transaction{
		{ID: "t1", Amount: 25, Kind: transaction.KindBonus, Description: "Welcome bonus", Timestamp: 7},
	})
	var docs []map[string]any
	require.NoError(t, json.Unmarshal(raw, &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "bonus", docs[0]["type"])
	assert.EqualValues(t, 7, docs[0]["timestamp"])
}

func TestUnmarshalHistory(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"null", "null", 0},
		{"empty array", "[]", 0},
		{"one", `[{"id":"t1","amount":1,"type":"purchase","description":"x","timestamp":1}]`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := unmarshalHistory(json.RawMessage(tt.in))
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	_, err := unmarshalHistory(json.RawMessage(`{"not":"a list"}`))
	assert.Error(t, err)
}

type fakeResult struct {
	n   int64
	err error
}

func (r fakeResult) RowsAffected() (int64, error) { return r.n, r.err }

func TestExpectOne(t *testing.T) {
	assert.NoError(t, expectOne(fakeResult{n: 1}, "u1"))
	assert.ErrorContains(t, expectOne(fakeResult{n: 0}, "u1"), "account not found")
	assert.Error(t, expectOne(fakeResult{err: assert.AnError}, "u1"))
}
