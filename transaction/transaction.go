// Package transaction defines the immutable audit record written to an
// account's credit history on every balance change.
package transaction

import (
	"github.com/google/uuid"

	"github.com/xraph/credits/types"
)

// DefaultHistoryLimit is the number of records an account keeps.
const DefaultHistoryLimit = 50

// Kind classifies a balance change.
type Kind string

const (
	KindUsage            Kind = "usage"
	KindPurchase         Kind = "purchase"
	KindMonthlyReset     Kind = "monthly_reset"
	KindBonus            Kind = "bonus"
	KindManualAdjustment Kind = "manual_adjustment"
)

// IsValid reports whether k is one of the known kinds.
func (k Kind) IsValid() bool {
	switch k {
	case KindUsage, KindPurchase, KindMonthlyReset, KindBonus, KindManualAdjustment:
		return true
	}
	return false
}

// IsCreditGrant reports whether k may be used for a positive grant.
// Usage and monthly resets are produced by the ledger itself.
func (k Kind) IsCreditGrant() bool {
	switch k {
	case KindPurchase, KindBonus, KindManualAdjustment:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Transaction is one balance change. Amount is negative for debits.
//
// The JSON and BSON names match the "creditHistory" entries of stored
// account documents and must not change.
type Transaction struct {
	ID          string       `json:"id" bson:"id"`
	Amount      int64        `json:"amount" bson:"amount"`
	Kind        Kind         `json:"type" bson:"type"`
	Description string       `json:"description" bson:"description"`
	Timestamp   types.Millis `json:"timestamp" bson:"timestamp"`
}

// New builds a transaction with a fresh UUID.
func New(amount int64, kind Kind, description string, at types.Millis) Transaction {
	return Transaction{
		ID:          uuid.NewString(),
		Amount:      amount,
		Kind:        kind,
		Description: description,
		Timestamp:   at,
	}
}

// IsDebit reports whether the transaction decreased the balance.
func (t Transaction) IsDebit() bool { return t.Amount < 0 }

// Prepend returns a new history with tx at index 0, keeping at most limit
// entries. The oldest entries are dropped. history is not modified.
// A limit <= 0 uses DefaultHistoryLimit.
func Prepend(history []Transaction, tx Transaction, limit int) []Transaction {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	n := len(history) + 1
	if n > limit {
		n = limit
	}

	out := make([]Transaction, n)
	out[0] = tx
	copy(out[1:], history)
	return out
}
