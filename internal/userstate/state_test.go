package userstate

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsAllowed(t *testing.T) {
	state := New("u-1")

	require.True(t, state.FlagAllowed(FlagCanMessage))
	require.True(t, state.FlagAllowed(FlagCanPurchase))
	require.True(t, state.FlagAllowed("some_future_flag"))
	require.Equal(t, 0, state.ScamMessageFlags)
	require.True(t, state.TotalSpend.IsZero())
}

func TestClearFlag(t *testing.T) {
	state := New("u-1")
	state.ClearFlag(FlagCanMessage)

	require.False(t, state.FlagAllowed(FlagCanMessage))
	require.True(t, state.FlagAllowed(FlagCanPurchase))
}

func TestAddCreditCardDedupsByCardID(t *testing.T) {
	state := New("u-1")

	require.True(t, state.AddCreditCard("card-1", "10001"))
	require.False(t, state.AddCreditCard("card-1", "10002"))
	require.True(t, state.AddCreditCard("card-2", "10001"))

	require.Equal(t, 2, state.TotalCreditCards())
	require.Equal(t, 1, state.UniqueZipCodeCount())
}

func TestCloneIsIndependent(t *testing.T) {
	state := New("u-1")
	state.AddCreditCard("card-1", "10001")
	state.TotalSpend = decimal.NewFromInt(100)

	cp := state.Clone()
	cp.ClearFlag(FlagCanPurchase)
	cp.AddCreditCard("card-2", "10002")

	require.True(t, state.FlagAllowed(FlagCanPurchase))
	require.Equal(t, 1, state.TotalCreditCards())
	require.Equal(t, 2, cp.TotalCreditCards())
}

func TestMemoryStoreGetOrCreate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "u-1")
	require.ErrorIs(t, err, ErrNotFound)

	state, err := store.GetOrCreate(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, "u-1", state.UserID)
	require.True(t, state.FlagAllowed(FlagCanMessage))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestMemoryStoreSaveIsWholeRecord(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	state, err := store.GetOrCreate(ctx, "u-1")
	require.NoError(t, err)

	state.ScamMessageFlags = 2
	state.ClearFlag(FlagCanMessage)
	require.NoError(t, store.Save(ctx, state))

	// Mutating the saved pointer afterward must not leak into the store.
	state.ScamMessageFlags = 99

	got, err := store.Get(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, 2, got.ScamMessageFlags)
	require.False(t, got.FlagAllowed(FlagCanMessage))
}
