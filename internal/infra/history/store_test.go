package history

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendCreatesSessionLazily(t *testing.T) {
	s := openStore(t)

	sessions, err := s.Sessions(10, 0)
	require.NoError(t, err)
	require.Empty(t, sessions)

	require.NoError(t, s.Append("user", "what's the weather"))
	require.NoError(t, s.Append("assistant", "sunny all day"))

	sessions, err = s.Sessions(10, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "what's the weather", sessions[0].Title)

	messages, err := s.Messages(sessions[0].ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, "user", messages[0].Role)
	require.Equal(t, "assistant", messages[1].Role)
	require.Equal(t, "sunny all day", messages[1].Content)
}

func TestSessionTitleTruncated(t *testing.T) {
	s := openStore(t)
	long := strings.Repeat("a", 100)
	require.NoError(t, s.Append("user", long))

	sessions, err := s.Sessions(1, 0)
	require.NoError(t, err)
	require.Len(t, sessions[0].Title, 40)
}

func TestMessagesPagination(t *testing.T) {
	s := openStore(t)
	id, err := s.CreateSession("paging")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendTo(id, "user", "m"))
	}

	page, err := s.Messages(id, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)

	rest, err := s.Messages(id, 10, 2)
	require.NoError(t, err)
	require.Len(t, rest, 3)
	require.Greater(t, rest[0].ID, page[1].ID)
}

func TestToggleFavorite(t *testing.T) {
	s := openStore(t)
	id, err := s.CreateSession("")
	require.NoError(t, err)
	require.NoError(t, s.AppendTo(id, "assistant", "keep this"))

	messages, err := s.Messages(id, 1, 0)
	require.NoError(t, err)

	on, err := s.ToggleFavorite(messages[0].ID)
	require.NoError(t, err)
	require.True(t, on)

	off, err := s.ToggleFavorite(messages[0].ID)
	require.NoError(t, err)
	require.False(t, off)
}

func TestToggleFavoriteMissingMessage(t *testing.T) {
	s := openStore(t)
	_, err := s.ToggleFavorite(12345)
	require.Error(t, err)
}

func TestDeleteSessionCascades(t *testing.T) {
	s := openStore(t)
	id, err := s.CreateSession("doomed")
	require.NoError(t, err)
	require.NoError(t, s.AppendTo(id, "user", "bye"))

	require.NoError(t, s.DeleteSession(id))

	messages, err := s.Messages(id, 10, 0)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestMigrationIsIdempotent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, s.Append("user", "hello"))
	require.NoError(t, s.Close())

	// Reopening must not re-run migrations or lose data.
	s, err = Open(path, logger)
	require.NoError(t, err)
	defer s.Close()

	sessions, err := s.Sessions(10, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
}
