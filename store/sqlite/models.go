package sqlite

import (
	"encoding/json"

	"github.com/xraph/grove"

	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/transaction"
	"github.com/xraph/credits/types"
)

type accountModel struct {
	grove.BaseModel `grove:"table:credit_accounts"`

	UID               string `grove:"uid,pk"`
	Email             string `grove:"email"`
	DisplayName       string `grove:"display_name"`
	PhotoURL          string `grove:"photo_url"`
	Plan              string `grove:"plan"`
	Credits           int64  `grove:"credits"`
	TemplateCredits   int64  `grove:"template_credits"`
	CreatedAt         int64  `grove:"created_at"`
	LastLogin         int64  `grove:"last_login"`
	LastCreditReset   int64  `grove:"last_credit_reset"`
	UsePersonalAPIKey bool   `grove:"use_personal_api_key"`
	CreditHistory     string `grove:"credit_history"`
	Revision          int64  `grove:"revision"`
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
		CreditHistory:     historyText(a.History),
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	var history []transaction.Transaction
	if m.CreditHistory != "" {
		if err := json.Unmarshal([]byte(m.CreditHistory), &history); err != nil {
			return nil, err
		}
	}
	if len(history) == 0 {
		history = nil
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

func historyText(history []transaction.Transaction) string {
	if len(history) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(history) //nolint:errcheck // plain struct slice cannot fail
	return string(data)
}
