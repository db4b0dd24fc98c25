package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarkSentAndIsSent(t *testing.T) {
	s := openTestStore(t)
	at := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)

	ok, err := s.IsSent("meeting-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.MarkSent("meeting-1", at))

	ok, err = s.IsSent("meeting-1")
	require.NoError(t, err)
	assert.True(t, ok)

	sent, err := s.Sent()
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.True(t, sent["meeting-1"].Equal(at))
}

func TestMarkSentIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	first := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)

	require.NoError(t, s.MarkSent("meeting-1", first))
	// A second mark must not overwrite the original send time.
	require.NoError(t, s.MarkSent("meeting-1", first.Add(time.Hour)))

	sent, err := s.Sent()
	require.NoError(t, err)
	assert.True(t, sent["meeting-1"].Equal(first))
}

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	at := time.Date(2026, 8, 30, 14, 5, 0, 0, time.UTC)

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.MarkSent("meeting-1", at))
	require.NoError(t, s.SetLastRun(at.Add(time.Minute)))
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	ok, err := s2.IsSent("meeting-1")
	require.NoError(t, err)
	assert.True(t, ok)

	lastRun, err := s2.LastRun()
	require.NoError(t, err)
	assert.True(t, lastRun.Equal(at.Add(time.Minute)))
}

func TestLastRunEmpty(t *testing.T) {
	s := openTestStore(t)

	lastRun, err := s.LastRun()
	require.NoError(t, err)
	assert.True(t, lastRun.IsZero())
}
