package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T, retention time.Duration) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, Retention: retention})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func entry(id string, closed time.Time, outcome string) Entry {
	return Entry{
		ID:          id,
		RemoteAddr:  "127.0.0.1:50000",
		ConnectedAt: closed.Add(-time.Second),
		ClosedAt:    closed,
		Outcome:     outcome,
		State:       "Complete",
		Dialect:     "NT LM 0.12",
		Requests:    4,
	}
}

func TestAppendAndGet(t *testing.T) {
	s := openTest(t, 0)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	require.NoError(t, s.Append(ctx, entry("a", now, OutcomeCompleted)))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, OutcomeCompleted, got.Outcome)
	assert.True(t, now.Equal(got.ClosedAt))
	assert.Equal(t, 4, got.Requests)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s := openTest(t, 0)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.Append(ctx, entry("old", base, OutcomeFailed)))
	require.NoError(t, s.Append(ctx, entry("new", base.Add(2*time.Second), OutcomeCompleted)))
	require.NoError(t, s.Append(ctx, entry("mid", base.Add(time.Second), OutcomeAbandoned)))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{all[0].ID, all[1].ID, all[2].ID})

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestListEmpty(t *testing.T) {
	s := openTest(t, 0)
	got, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAppendReplacesSameID(t *testing.T) {
	s := openTest(t, 0)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.Append(ctx, entry("x", base, OutcomeAbandoned)))
	require.NoError(t, s.Append(ctx, entry("x", base.Add(time.Second), OutcomeFailed)))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, OutcomeFailed, all[0].Outcome)
}

func TestAppendValidation(t *testing.T) {
	s := openTest(t, 0)
	assert.Error(t, s.Append(context.Background(), Entry{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Append(ctx, entry("c", time.Now(), OutcomeCompleted)), context.Canceled)
}

func TestAppendDefaultsCloseTime(t *testing.T) {
	s := openTest(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, Entry{ID: "t", Outcome: OutcomeCompleted}))
	got, err := s.Get(ctx, "t")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got.ClosedAt, time.Minute)
}
