package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/fincoach/fincoach-go/internal/store"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(db)
	require.NoError(t, err)
	return s
}

func TestSaveTurnAndGetHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveTurn(ctx, "sess-1", "what is an ETF?", "An ETF is...", "finance_qa"))
	require.NoError(t, s.SaveTurn(ctx, "sess-1", "and a bond?", "A bond is...", "finance_qa"))

	hist, err := s.GetHistory(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 4)

	// Chronological order, user before assistant within each turn.
	require.Equal(t, RoleUser, hist[0].Role)
	require.Equal(t, "what is an ETF?", hist[0].Content)
	require.Equal(t, RoleAssistant, hist[1].Role)
	require.Equal(t, RoleUser, hist[2].Role)
	require.Equal(t, "and a bond?", hist[2].Content)
	require.Equal(t, RoleAssistant, hist[3].Role)
	require.Equal(t, "finance_qa", hist[3].Responder)
}

func TestGetHistoryWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTurn(ctx, "sess-1", "q", "a", "finance_qa"))
	}

	hist, err := s.GetHistory(ctx, "sess-1", 4)
	require.NoError(t, err)
	require.Len(t, hist, 4)
	// The window keeps the most recent messages.
	require.Equal(t, RoleUser, hist[0].Role)
	require.Equal(t, RoleAssistant, hist[3].Role)
}

func TestGetHistoryEmptySession(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	hist, err := s.GetHistory(ctx, "nobody", 10)
	require.NoError(t, err)
	require.Empty(t, hist)
}

func TestGetTurnCount(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	n, err := s.GetTurnCount(ctx, "sess-1")
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, s.SaveTurn(ctx, "sess-1", "q1", "a1", "finance_qa"))
	require.NoError(t, s.SaveTurn(ctx, "sess-1", "q2", "a2", "finance_qa"))

	n, err = s.GetTurnCount(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestSaveSummaryCompacts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTurn(ctx, "sess-1", "question", "answer", "finance_qa"))
	}

	require.NoError(t, s.SaveSummary(ctx, "sess-1", "user asked about ETFs and bonds"))

	hist, err := s.GetHistory(ctx, "sess-1", 50)
	require.NoError(t, err)

	// One summary plus the retained raw tail.
	require.Len(t, hist, 5)
	require.Equal(t, RoleSummary, hist[0].Role)
	require.Equal(t, "user asked about ETFs and bonds", hist[0].Content)
	for _, m := range hist[1:] {
		require.NotEqual(t, RoleSummary, m.Role)
	}
}

func TestSaveSummaryReplacesPriorSummary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTurn(ctx, "sess-1", "question", "answer", "finance_qa"))
	}
	require.NoError(t, s.SaveSummary(ctx, "sess-1", "first summary"))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveTurn(ctx, "sess-1", "more", "answers", "finance_qa"))
	}
	require.NoError(t, s.SaveSummary(ctx, "sess-1", "second summary"))

	hist, err := s.GetHistory(ctx, "sess-1", 50)
	require.NoError(t, err)

	summaries := 0
	for _, m := range hist {
		if m.Role == RoleSummary {
			summaries++
			require.Equal(t, "second summary", m.Content)
		}
	}
	require.Equal(t, 1, summaries)
	// The replacement summary still sorts first.
	require.Equal(t, RoleSummary, hist[0].Role)
}

func TestSummaryStaysFirstAfterNewTurns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveTurn(ctx, "sess-1", "question", "answer", "finance_qa"))
	}
	require.NoError(t, s.SaveSummary(ctx, "sess-1", "summary"))
	require.NoError(t, s.SaveTurn(ctx, "sess-1", "newest question", "newest answer", "stock"))

	hist, err := s.GetHistory(ctx, "sess-1", 50)
	require.NoError(t, err)
	require.Equal(t, RoleSummary, hist[0].Role)
	require.Equal(t, "newest answer", hist[len(hist)-1].Content)
}

func TestListSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SaveTurn(ctx, "sess-a", "q", "a", "finance_qa"))
	require.NoError(t, s.SaveTurn(ctx, "sess-b", "q", "a", "finance_qa"))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"sess-a", "sess-b"}, sessions)
}

func TestEnsureSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.EnsureSession(ctx, "sess-1"))
	require.NoError(t, s.EnsureSession(ctx, "sess-1"))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"sess-1"}, sessions)
}

// Sessions persist across store reopens on the same file.
func TestReopenKeepsHistory(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := store.Open(path)
	require.NoError(t, err)
	s, err := New(db)
	require.NoError(t, err)
	require.NoError(t, s.SaveTurn(ctx, "sess-1", "q", "a", "finance_qa"))
	require.NoError(t, db.Close())

	var db2 *sql.DB
	db2, err = store.Open(path)
	require.NoError(t, err)
	defer db2.Close()
	s2, err := New(db2)
	require.NoError(t, err)

	hist, err := s2.GetHistory(ctx, "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 2)
}
