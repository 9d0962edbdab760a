package credits

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure scenarios.
var (
	// Account errors
	ErrAccountNotFound = errors.New("credits: account not found")
	ErrAccountExists   = errors.New("credits: account already exists")

	// Ledger errors
	ErrInsufficientCredits = errors.New("credits: insufficient credits")
	ErrInvalidAmount       = errors.New("credits: amount must be positive")
	ErrInvalidKind         = errors.New("credits: transaction kind not allowed")
	ErrInvalidPlan         = errors.New("credits: invalid plan")
	ErrInvalidInput        = errors.New("credits: invalid input")
	ErrBalanceOverflow     = errors.New("credits: grant would overflow the balance")

	// Store errors
	ErrStoreUnavailable = errors.New("credits: store unavailable")
	ErrWriteConflict    = errors.New("credits: write conflict")
	ErrStoreClosed      = errors.New("credits: store is closed")
	ErrMigrationFailed  = errors.New("credits: migration failed")

	// Payment errors
	ErrUnknownProduct = errors.New("credits: unknown product")
	ErrPaymentFailed  = errors.New("credits: payment failed")
)

// InsufficientCreditsError is returned by a debit the balance cannot cover.
// It carries what a caller needs to prompt the user: the balance left, what
// was asked for, and when the allotment is next restored.
type InsufficientCreditsError struct {
	Balance   int64
	Required  int64
	NextReset time.Time
}

func (e *InsufficientCreditsError) Error() string {
	return fmt.Sprintf("credits: insufficient credits: balance %d, required %d", e.Balance, e.Required)
}

// Is lets errors.Is match ErrInsufficientCredits.
func (e *InsufficientCreditsError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("credits: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap makes every ValidationError match ErrInvalidInput.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

// IsInsufficient returns true if a debit was refused for lack of credits.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}

// IsRetryable returns true if the error is temporary and the operation can
// be retried by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrWriteConflict)
}

// AsInsufficient extracts the details of an insufficient-credits failure.
func AsInsufficient(err error) (*InsufficientCreditsError, bool) {
	var ie *InsufficientCreditsError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
