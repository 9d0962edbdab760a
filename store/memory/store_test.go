package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/credits"
	"github.com/xraph/credits/account"
	"github.com/xraph/credits/plan"
)

func seed(t *testing.T, s *Store) *account.Account {
	t.Helper()
	a := &account.Account{UID: "u1", Email: "a@b.c", Plan: plan.Free, Credits: 25}
	require.NoError(t, s.CreateAccount(context.Background(), a))
	return a
}

func TestCreateNeverOverwrites(t *testing.T) {
	s := New()
	seed(t, s)

	err := s.CreateAccount(context.Background(), &account.Account{UID: "u1", Credits: 999})
	assert.ErrorIs(t, err, credits.ErrAccountExists)

	got, err := s.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.Credits)
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	seed(t, s)

	got, err := s.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	got.Credits = 0

	again, err := s.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), again.Credits)
}

func TestMutateAbortLeavesRecord(t *testing.T) {
	s := New()
	seed(t, s)
	boom := errors.New("boom")

	_, err := s.MutateAccount(context.Background(), "u1", func(a *account.Account) error {
		a.Credits = 0
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(25), got.Credits)
}

func TestMutateWritesLedgerFieldsOnly(t *testing.T) {
	s := New()
	seed(t, s)

	after, err := s.MutateAccount(context.Background(), "u1", func(a *account.Account) error {
		a.Credits = 24
		a.Email = "changed@b.c"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(24), after.Credits)
	assert.Equal(t, "a@b.c", after.Email)
}

func TestUpdateAndDelete(t *testing.T) {
	s := New()
	seed(t, s)
	ctx := context.Background()

	pro := plan.Pro
	require.NoError(t, s.UpdateAccount(ctx, "u1", account.Fields{Plan: &pro}))
	got, err := s.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, plan.Pro, got.Plan)

	require.NoError(t, s.DeleteAccount(ctx, "u1"))
	assert.ErrorIs(t, s.DeleteAccount(ctx, "u1"), credits.ErrAccountNotFound)
	assert.ErrorIs(t, s.UpdateAccount(ctx, "u1", account.Fields{}), credits.ErrAccountNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())

	_, err := s.GetAccount(context.Background(), "u1")
	assert.ErrorIs(t, err, credits.ErrStoreClosed)
	assert.ErrorIs(t, s.Ping(context.Background()), credits.ErrStoreClosed)
}
