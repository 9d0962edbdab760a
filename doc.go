// Package credits provides the credit ledger behind the AI features of a
// resume builder: a per-user balance, atomic debits, credit grants, a lazy
// monthly reset and a bounded transaction history.
//
// The ledger is a library. It runs against any store.Store backend:
// memory, MongoDB, PostgreSQL, SQLite or Redis.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/credits"
//	    "github.com/xraph/credits/store/memory"
//	)
//
//	l := credits.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	acct, err := l.FetchOrCreateAccount(ctx, credits.Profile{UID: uid})
//	balance, err := l.Debit(ctx, uid, credits.CostResumeAI, "Resume AI suggestion")
//	if credits.IsInsufficient(err) {
//	    // block the feature, show balance and next reset
//	}
//
// # Rules
//
//   - A new account starts with 25 credits and one "bonus" transaction.
//   - Every fetch checks whether more than 30 days passed since the last
//     reset (or creation). If so, the balance is set to exactly 25 and a
//     "monthly_reset" transaction records the difference, which may be
//     negative.
//   - A debit succeeds only if the balance covers it. Under concurrent
//     debits the number of successes never exceeds what the balance allows.
//   - History is kept newest first and capped at 50 entries; older entries
//     are dropped.
//   - The template-credit counter is separate and has no history.
//
// # Concurrency
//
// Balance and history change only through store.Store.MutateAccount, a
// per-account read-modify-write. Remote backends implement it as an
// optimistic compare-and-swap with bounded retries; exhausting the retries
// yields an error matching both ErrStoreUnavailable and ErrWriteConflict.
//
// # Failure
//
// The ledger fails closed. Any store failure it cannot classify is
// returned wrapped in ErrStoreUnavailable, and callers must not grant the
// paid feature in that case.
package credits
