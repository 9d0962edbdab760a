package mongo

import (
	"github.com/xraph/grove"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// ==================== Account models ====================

// accountModel mirrors the user document written by the web client.
// Grove column names double as BSON keys, so they keep the camelCase
// names of the stored documents.
type accountModel struct {
	grove.BaseModel `grove:"table:users"`

	ID                string             `grove:"id,pk"             bson:"_id"`
	UID               string             `grove:"uid"               bson:"uid"`
	Email             string             `grove:"email"             bson:"email"`
	DisplayName       string             `grove:"displayName"       bson:"displayName"`
	PhotoURL          string             `grove:"photoURL"          bson:"photoURL"`
	Plan              string             `grove:"plan"              bson:"plan"`
	Credits           int64              `grove:"credits"           bson:"credits"`
	TemplateCredits   int64              `grove:"templateCredits"   bson:"templateCredits"`
	CreatedAt         int64              `grove:"createdAt"         bson:"createdAt"`
	LastLogin         int64              `grove:"lastLogin"         bson:"lastLogin"`
	LastCreditReset   int64              `grove:"lastCreditReset"   bson:"lastCreditReset,omitempty"`
	UsePersonalAPIKey bool               `grove:"usePersonalApiKey" bson:"usePersonalApiKey"`
	CreditHistory     []transactionModel `grove:"creditHistory"     bson:"creditHistory"`
}

type transactionModel struct {
	ID          string `bson:"id"`
	Amount      int64  `bson:"amount"`
	Type        string `bson:"type"`
	Description string `bson:"description"`
	Timestamp   int64  `bson:"timestamp"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:                a.UID,
		UID:               a.UID,
		Email:             a.Email,
		DisplayName:       a.DisplayName,
		PhotoURL:          a.PhotoURL,
		Plan:              string(a.Plan),
		Credits:           a.Credits,
		TemplateCredits:   a.TemplateCredits,
		CreatedAt:         int64(a.CreatedAt),
		LastLogin:         int64(a.LastLogin),
		LastCreditReset:   int64(a.LastCreditReset),
		UsePersonalAPIKey: a.UsePersonalAPIKey,
		CreditHistory:     toTransactionModels(a.History),
	}
}

func fromAccountModel(m *accountModel) *account.Account {
	uid := m.UID
	if uid == "" {
		uid = m.ID
	}
	return &account.Account{
		UID:               uid,
		Email:             m.Email,
		DisplayName:       m.DisplayName,
		PhotoURL:          m.PhotoURL,
		Plan:              plan.Plan(m.Plan),
		Credits:           m.Credits,
		TemplateCredits:   m.TemplateCredits,
		CreatedAt:         types.Millis(m.CreatedAt),
		LastLogin:         types.Millis(m.LastLogin),
		LastCreditReset:   types.Millis(m.LastCreditReset),
		UsePersonalAPIKey: m.UsePersonalAPIKey,
		History:           fromTransactionModels(m.CreditHistory),
	}
}

func toTransactionModels(history []transaction.Transaction) []transactionModel {
	out := make([]transactionModel, len(history))
	for i, tx := range history {
		out[i] = transactionModel{
			ID:          tx.ID,
			Amount:      tx.Amount,
			Type:        string(tx.Kind),
			Description: tx.Description,
			Timestamp:   int64(tx.Timestamp),
		}
	}
	return out
}

func fromTransactionModels(models []transactionModel) []transaction.Transaction {
	if len(models) == 0 {
		return nil
	}
	out := make([]transaction.Transaction, len(models))
	for i, m := range models {
		out[i] = transaction.Transaction{
			ID:          m.ID,
			Amount:      m.Amount,
			Kind:        transaction.Kind(m.Type),
			Description: m.Description,
			Timestamp:   types.Millis(m.Timestamp),
		}
	}
	return out
}
