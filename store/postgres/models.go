package postgres

import (
	"encoding/json"

	"github.com/xraph/grove"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:credit_accounts"`

	UID               string          `grove:"uid,pk"`
	Email             string          `grove:"email"`
	DisplayName       string          `grove:"display_name"`
	PhotoURL          string          `grove:"photo_url"`
	Plan              string          `grove:"plan"`
	Credits           int64           `grove:"credits"`
	TemplateCredits   int64           `grove:"template_credits"`
	CreatedAt         int64           `grove:"created_at"`
	LastLogin         int64           `grove:"last_login"`
	LastCreditReset   int64           `grove:"last_credit_reset"`
	UsePersonalAPIKey bool            `grove:"use_personal_api_key"`
	CreditHistory     json.RawMessage `grove:"credit_history,type:jsonb"`
	Revision          int64           `grove:"revision"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
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
		CreditHistory:     marshalHistory(a.History),
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	history, err := unmarshalHistory(m.CreditHistory)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		UID:               m.UID,
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
		History:           history,
	}, nil
}

// marshalHistory encodes the history in the document layout. An empty
// history is stored as [] rather than null.
func marshalHistory(history []transaction.Transaction) json.RawMessage {
	if len(history) == 0 {
		return json.RawMessage("[]")
	}
	data, _ := json.Marshal(history) //nolint:errcheck // plain struct slice cannot fail
	return data
}

func unmarshalHistory(data json.RawMessage) ([]transaction.Transaction, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var history []transaction.Transaction
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}
	return history, nil
}
