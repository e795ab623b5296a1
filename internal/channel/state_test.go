package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bindery/internal/store"
)

func testStateStore(t *testing.T) *StateStore {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	st, err := NewStateStore(db)
	require.NoError(t, err)
	return st
}

func TestStateStoreRecordSuccess(t *testing.T) {
	st := testStateStore(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordSuccess(ctx, "origin", "1.0.0", at))

	state, err := st.State(ctx, "origin")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.Equal(t, "1.0.0", state.LastSyncedVersion)
	require.True(t, state.LastSyncedAt.Equal(at))
	require.Empty(t, state.LastError)
	require.False(t, state.NeverSynced())
}

func TestStateStoreSuccessOverwrites(t *testing.T) {
	st := testStateStore(t)
	ctx := context.Background()

	first := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	require.NoError(t, st.RecordSuccess(ctx, "origin", "1.0.0", first))
	require.NoError(t, st.RecordSuccess(ctx, "origin", "1.1.0", second))

	state, err := st.State(ctx, "origin")
	require.NoError(t, err)
	require.Equal(t, "1.1.0", state.LastSyncedVersion)
	require.True(t, state.LastSyncedAt.Equal(second))
}

func TestStateStoreFailureKeepsLastSuccess(t *testing.T) {
	st := testStateStore(t)
	ctx := context.Background()

	okAt := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	failAt := okAt.Add(30 * time.Minute)
	require.NoError(t, st.RecordSuccess(ctx, "origin", "1.0.0", okAt))
	require.NoError(t, st.RecordFailure(ctx, "origin", "1.1.0", failAt, errors.New("remote hung up")))

	state, err := st.State(ctx, "origin")
	require.NoError(t, err)

	// The failed attempt must not disturb the last known good sync.
	require.Equal(t, "1.0.0", state.LastSyncedVersion)
	require.True(t, state.LastSyncedAt.Equal(okAt))
	require.True(t, state.LastAttemptAt.Equal(failAt))
	require.Contains(t, state.LastError, "remote hung up")
}

func TestStateStoreSuccessClearsLastError(t *testing.T) {
	st := testStateStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordFailure(ctx, "origin", "1.0.0", base, errors.New("boom")))
	require.NoError(t, st.RecordSuccess(ctx, "origin", "1.0.0", base.Add(time.Minute)))

	state, err := st.State(ctx, "origin")
	require.NoError(t, err)
	require.Equal(t, "1.0.0", state.LastSyncedVersion)
	require.Empty(t, state.LastError)
}

func TestStateStoreNeverSynced(t *testing.T) {
	st := testStateStore(t)
	ctx := context.Background()

	state, err := st.State(ctx, "ghost")
	require.NoError(t, err)
	require.Nil(t, state)

	// A channel with only failed attempts is still never-synced.
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.RecordFailure(ctx, "flaky", "1.0.0", at, errors.New("timeout")))

	state, err = st.State(ctx, "flaky")
	require.NoError(t, err)
	require.NotNil(t, state)
	require.True(t, state.NeverSynced())
	require.Contains(t, state.LastError, "timeout")
}

func TestStateStoreStatesSorted(t *testing.T) {
	st := testStateStore(t)
	ctx := context.Background()
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordSuccess(ctx, "storefront", "1.0.0", at))
	require.NoError(t, st.RecordSuccess(ctx, "origin", "1.0.0", at))
	require.NoError(t, st.RecordFailure(ctx, "forge", "1.0.0", at, errors.New("401")))

	states, err := st.States(ctx)
	require.NoError(t, err)
	require.Len(t, states, 3)
	require.Equal(t, "forge", states[0].Channel)
	require.Equal(t, "origin", states[1].Channel)
	require.Equal(t, "storefront", states[2].Channel)
	require.True(t, states[0].NeverSynced())
	require.False(t, states[1].NeverSynced())
}

func TestStateStoreAttemptsNewestFirst(t *testing.T) {
	st := testStateStore(t)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordFailure(ctx, "origin", "1.0.0", base, errors.New("first")))
	require.NoError(t, st.RecordFailure(ctx, "origin", "1.0.0", base.Add(time.Minute), errors.New("second")))
	require.NoError(t, st.RecordSuccess(ctx, "origin", "1.0.0", base.Add(2*time.Minute)))

	attempts, err := st.Attempts(ctx, "origin", 10)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	require.True(t, attempts[0].Success)
	require.Equal(t, "second", attempts[1].Error)
	require.Equal(t, "first", attempts[2].Error)

	limited, err := st.Attempts(ctx, "origin", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.True(t, limited[0].Success)
}
