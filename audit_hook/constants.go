package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated = "account.created"
	ActionAccountDeleted = "account.deleted"
	ActionPlanChanged    = "account.plan_changed"

	// Credit actions
	ActionCreditsDebited       = "credits.debited"
	ActionDebitDenied          = "credits.debit_denied"
	ActionCreditsGranted       = "credits.granted"
	ActionMonthlyReset         = "credits.monthly_reset"
	ActionTemplateCreditsAdded = "credits.template_added"

	// Payment actions
	ActionPaymentCompleted = "payment.completed"
	ActionPaymentFailed    = "payment.failed"
)

// Resource constants for audit events.
const (
	ResourceAccount = "account"
	ResourceCredits = "credits"
	ResourcePayment = "payment"
)

// Category constants for audit events.
const (
	CategoryAccount = "account"
	CategoryUsage   = "usage"
	CategoryBilling = "billing"
	CategoryPayment = "payment"
)

// Severity levels for audit events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
