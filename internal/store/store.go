package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// Store is the persistence facade: user records, ban flags and the global
// download counter. Every mutation goes through a single SQLite statement so
// concurrent callers never lose updates to read-modify-write races.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

func Open(path string, log zerolog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA busy_timeout = 5000")
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &Store{db: db, log: log}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// UpsertUser records a user on first contact. Re-insertion is a no-op and
// never touches joined_at.
func (s *Store) UpsertUser(ctx context.Context, id int64, username string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, username, joined_at) VALUES(?,?,?)
		 ON CONFLICT(id) DO NOTHING`,
		id, nullStr(username), time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// IsBanned is false for unknown ids.
func (s *Store) IsBanned(ctx context.Context, id int64) (bool, error) {
	var banned bool
	err := s.db.QueryRowContext(ctx, `SELECT banned FROM users WHERE id = ?`, id).Scan(&banned)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return banned, nil
}

// SetBanned flags a user. Unknown ids are created on the spot so an admin can
// pre-ban an abuser who has not messaged the bot yet.
func (s *Store) SetBanned(ctx context.Context, id int64, banned bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users(id, joined_at, banned) VALUES(?,?,?)
		 ON CONFLICT(id) DO UPDATE SET banned = excluded.banned`,
		id, time.Now().UTC().Format(time.RFC3339Nano), banned,
	)
	return err
}

func (s *Store) UserCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// ListActiveUserIDs returns every non-banned user id. A plain slice is fine
// at this bot's scale; paging would go here if the user base outgrew memory.
func (s *Store) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM users WHERE banned = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// IncrementDownloads bumps the global counter by one, atomically in SQLite.
func (s *Store) IncrementDownloads(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE stats SET downloads = downloads + 1 WHERE id = 1`)
	return err
}

func (s *Store) DownloadCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT downloads FROM stats WHERE id = 1`).Scan(&n)
	return n, err
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
