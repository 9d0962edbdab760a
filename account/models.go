package account

import (
	"time"

	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// Account is the per-user record holding the credit balance and its audit
// trail. Field names match stored documents exactly.
type Account struct {
	UID               string                    `json:"uid" bson:"uid"`
	Email             string                    `json:"email" bson:"email"`
	DisplayName       string                    `json:"displayName" bson:"displayName"`
	PhotoURL          string                    `json:"photoURL" bson:"photoURL"`
	Plan              plan.Plan                 `json:"plan" bson:"plan"`
	Credits           int64                     `json:"credits" bson:"credits"`
	TemplateCredits   int64                     `json:"templateCredits" bson:"templateCredits"`
	CreatedAt         types.Millis              `json:"createdAt" bson:"createdAt"`
	LastLogin         types.Millis              `json:"lastLogin" bson:"lastLogin"`
	LastCreditReset   types.Millis              `json:"lastCreditReset,omitempty" bson:"lastCreditReset,omitempty"`
	UsePersonalAPIKey bool                      `json:"usePersonalApiKey" bson:"usePersonalApiKey"`
	History           []transaction.Transaction `json:"creditHistory" bson:"creditHistory"`
}

// ResetAnchor is the time the current allotment period started: the last
// reset, or account creation if the account was never reset.
func (a *Account) ResetAnchor() types.Millis {
	if a.LastCreditReset.IsZero() {
		return a.CreatedAt
	}
	return a.LastCreditReset
}

// NextReset returns when the balance is next normalized, given the period.
func (a *Account) NextReset(interval time.Duration) time.Time {
	return a.ResetAnchor().Add(interval).Time()
}

// Clone returns a deep copy. Mutations run against clones so a rejected
// mutation never leaks into the stored value.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.History != nil {
		c.History = make([]transaction.Transaction, len(a.History))
		copy(c.History, a.History)
	}
	return &c
}

// Profile is the identity information used to bootstrap a new account.
type Profile struct {
	UID         string `json:"uid" validate:"required"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Fields is a partial, non-transactional update. Nil fields are left as is.
// Balance and history are never written through Fields.
type Fields struct {
	Email             *string
	DisplayName       *string
	PhotoURL          *string
	Plan              *plan.Plan
	LastLogin         *types.Millis
	UsePersonalAPIKey *bool
}

// IsEmpty reports whether no field is set.
func (f Fields) IsEmpty() bool {
	return f.Email == nil && f.DisplayName == nil && f.PhotoURL == nil &&
		f.Plan == nil && f.LastLogin == nil && f.UsePersonalAPIKey == nil
}

// Apply copies the set fields onto a.
func (f Fields) Apply(a *Account) {
	if f.Email != nil {
		a.Email = *f.Email
	}
	if f.DisplayName != nil {
		a.DisplayName = *f.DisplayName
	}
	if f.PhotoURL != nil {
		a.PhotoURL = *f.PhotoURL
	}
	if f.Plan != nil {
		a.Plan = *f.Plan
	}
	if f.LastLogin != nil {
		a.LastLogin = *f.LastLogin
	}
	if f.UsePersonalAPIKey != nil {
		a.UsePersonalAPIKey = *f.UsePersonalAPIKey
	}
}

// CopyLedgerFields copies the fields a mutation may change from src onto a.
func (a *Account) CopyLedgerFields(src *Account) {
	a.Credits = src.Credits
	a.TemplateCredits = src.TemplateCredits
	a.LastCreditReset = src.LastCreditReset
	a.History = src.History
}
