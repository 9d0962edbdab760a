package credits_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/xraph/credits"
	"github.com/xraph/credits/store/memory"
)

// TestDocumentationExamples keeps the package documentation examples honest.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		l := credits.New(memory.New(), credits.WithLogger(slog.New(slog.DiscardHandler)))

		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		acct, err := l.FetchOrCreateAccount(ctx, credits.Profile{UID: "u1"})
		if err != nil {
			t.Fatal(err)
		}
		if acct.Credits != credits.WelcomeBonus {
			t.Errorf("expected %d credits, got %d", credits.WelcomeBonus, acct.Credits)
		}

		balance, err := l.Debit(ctx, "u1", credits.CostResumeAI, "Resume AI suggestion")
		if err != nil {
			t.Fatal(err)
		}
		if balance != 24 {
			t.Errorf("expected balance 24, got %d", balance)
		}
	})

	t.Run("InsufficientExample", func(t *testing.T) {
		l := credits.New(memory.New(), credits.WithLogger(slog.New(slog.DiscardHandler)))
		ctx := context.Background()

		if _, err := l.FetchOrCreateAccount(ctx, credits.Profile{UID: "u2"}); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 5; i++ {
			if _, err := l.Debit(ctx, "u2", credits.CostInterviewSession, "Interview session"); err != nil {
				t.Fatal(err)
			}
		}

		_, err := l.Debit(ctx, "u2", credits.CostResumeAI, "Resume AI suggestion")
		if !credits.IsInsufficient(err) {
			t.Fatalf("expected insufficient credits, got %v", err)
		}
	})

	t.Run("MoneyExamples", func(t *testing.T) {
		if got := credits.INR(49900).String(); got != "₹499.00" {
			t.Errorf("expected ₹499.00, got %s", got)
		}
		if got := credits.INR(39900).FormatMajor(); got != "399.00" {
			t.Errorf("expected 399.00, got %s", got)
		}
	})
}
