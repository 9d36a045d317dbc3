package policy

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpendingTrackerAccumulatesWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	tracker := NewSpendingTracker()

	require.NoError(t, tracker.Commit(WindowHourly, 100, now, [32]byte{1}))
	require.NoError(t, tracker.Commit(WindowHourly, 50, now.Add(10*time.Minute), [32]byte{2}))

	require.Equal(t, uint64(150), tracker.SpentInWindow(WindowHourly, now.Add(20*time.Minute)))
}

func TestSpendingTrackerRollsOverAfterWindowEnds(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	tracker := NewSpendingTracker()

	require.NoError(t, tracker.Commit(WindowHourly, 100, now, [32]byte{1}))
	require.Equal(t, uint64(0), tracker.SpentInWindow(WindowHourly, now.Add(2*time.Hour)))

	require.NoError(t, tracker.Commit(WindowHourly, 30, now.Add(2*time.Hour), [32]byte{2}))
	require.Equal(t, uint64(30), tracker.SpentInWindow(WindowHourly, now.Add(2*time.Hour)))
}

func TestSpendingTrackerSurvivesRestartWithinActiveWindow(t *testing.T) {
	// property P9: committed spend within a still-active window is not
	// lost across a process restart.
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "spending.log")

	store, err := OpenSpendingStore(path)
	require.NoError(t, err)

	tracker, err := NewSpendingTrackerFromStore(store, now)
	require.NoError(t, err)
	require.NoError(t, tracker.Commit(WindowHourly, 200, now, [32]byte{1}))
	require.NoError(t, store.Close())

	reopened, err := OpenSpendingStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	restored, err := NewSpendingTrackerFromStore(reopened, now.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, uint64(200), restored.SpentInWindow(WindowHourly, now.Add(30*time.Minute)))
}

func TestSpendingTrackerDiscardsExpiredWindowOnRestart(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	path := filepath.Join(t.TempDir(), "spending.log")

	store, err := OpenSpendingStore(path)
	require.NoError(t, err)
	defer store.Close()

	tracker, err := NewSpendingTrackerFromStore(store, now)
	require.NoError(t, err)
	require.NoError(t, tracker.Commit(WindowHourly, 200, now, [32]byte{1}))

	restored, err := NewSpendingTrackerFromStore(store, now.Add(5*time.Hour))
	require.NoError(t, err)
	require.Equal(t, uint64(0), restored.SpentInWindow(WindowHourly, now.Add(5*time.Hour)))
}
