package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "bot.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertUserIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, 1, "alice"); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	var joined string
	if err := s.db.QueryRowContext(ctx, `SELECT joined_at FROM users WHERE id = 1`).Scan(&joined); err != nil {
		t.Fatalf("read joined_at: %v", err)
	}

	if err := s.UpsertUser(ctx, 1, "alice_renamed"); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	n, err := s.UserCount(ctx)
	if err != nil {
		t.Fatalf("user count: %v", err)
	}
	if n != 1 {
		t.Fatalf("user count = %d, want 1", n)
	}

	var joined2, username string
	if err := s.db.QueryRowContext(ctx, `SELECT joined_at, username FROM users WHERE id = 1`).Scan(&joined2, &username); err != nil {
		t.Fatalf("re-read user: %v", err)
	}
	if joined2 != joined {
		t.Fatalf("joined_at changed on re-insert: %q -> %q", joined, joined2)
	}
	if username != "alice" {
		t.Fatalf("username overwritten on re-insert: %q", username)
	}
}

func TestIsBannedUnknownUser(t *testing.T) {
	s := openTestStore(t)
	banned, err := s.IsBanned(context.Background(), 999)
	if err != nil {
		t.Fatalf("IsBanned: %v", err)
	}
	if banned {
		t.Fatalf("unknown user reported banned")
	}
}

func TestSetBannedCreatesAndExcludes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, 1, "alice"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// 2 never messaged the bot; banning must still stick.
	if err := s.SetBanned(ctx, 2, true); err != nil {
		t.Fatalf("ban unknown user: %v", err)
	}

	banned, err := s.IsBanned(ctx, 2)
	if err != nil || !banned {
		t.Fatalf("IsBanned(2) = %v, %v; want true", banned, err)
	}

	ids, err := s.ListActiveUserIDs(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Fatalf("active ids = %v, want [1]", ids)
	}

	if err := s.SetBanned(ctx, 2, false); err != nil {
		t.Fatalf("unban: %v", err)
	}
	ids, err = s.ListActiveUserIDs(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("active ids after unban = %v, want two entries", ids)
	}
}

func TestDownloadCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.DownloadCount(ctx)
	if err != nil {
		t.Fatalf("download count: %v", err)
	}
	if n != 0 {
		t.Fatalf("initial download count = %d, want 0", n)
	}

	for i := 0; i < 3; i++ {
		if err := s.IncrementDownloads(ctx); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	n, err = s.DownloadCount(ctx)
	if err != nil {
		t.Fatalf("download count: %v", err)
	}
	if n != 3 {
		t.Fatalf("download count = %d, want 3", n)
	}
}
