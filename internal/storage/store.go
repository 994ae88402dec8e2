package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite-backed persistence for the scan cursor, the recently
// seen signature set, and emitted burn records. Persisting cursor and seen
// set means a restart resumes from the last processed signature instead of
// re-emitting burns from near the cursor boundary; delivery stays
// at-least-once across hard crashes because emission happens before marking.
type Store struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA foreign_keys = ON;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS cursors (
  mint        TEXT PRIMARY KEY,
  signature   TEXT NOT NULL,
  slot        INTEGER NOT NULL,
  updated_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS seen_signatures (
  signature   TEXT PRIMARY KEY,
  inserted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS burns (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  signature      TEXT NOT NULL,
  mint           TEXT NOT NULL,
  source_account TEXT NOT NULL,
  amount         TEXT NOT NULL,
  slot           INTEGER NOT NULL,
  created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS burns_signature ON burns(signature);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertCursor records the newest fully-processed signature for a mint.
func (s *Store) UpsertCursor(ctx context.Context, mint, signature string, slot uint64) error {
	if mint == "" || signature == "" {
		return errors.New("mint and signature required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO cursors (mint, signature, slot, updated_at)
VALUES (?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(mint) DO UPDATE SET
  signature=excluded.signature,
  slot=excluded.slot,
  updated_at=CURRENT_TIMESTAMP;
`, mint, signature, slot)
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

// GetCursor retrieves the cursor for a mint.
func (s *Store) GetCursor(ctx context.Context, mint string) (signature string, slot uint64, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
SELECT signature, slot FROM cursors WHERE mint = ?;
`, mint)
	switch err = row.Scan(&signature, &slot); err {
	case nil:
		return signature, slot, true, nil
	case sql.ErrNoRows:
		return "", 0, false, nil
	default:
		return "", 0, false, fmt.Errorf("get cursor: %w", err)
	}
}

// MarkSeen persists a processed signature and prunes the table down to
// capacity, oldest rows first, mirroring the in-memory tracker's bound.
func (s *Store) MarkSeen(ctx context.Context, signature string, capacity int) error {
	if signature == "" {
		return errors.New("signature required")
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO seen_signatures (signature) VALUES (?)
ON CONFLICT(signature) DO NOTHING;
`, signature); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	if capacity > 0 {
		if _, err := s.db.ExecContext(ctx, `
DELETE FROM seen_signatures WHERE rowid NOT IN (
  SELECT rowid FROM seen_signatures ORDER BY rowid DESC LIMIT ?
);
`, capacity); err != nil {
			return fmt.Errorf("prune seen: %w", err)
		}
	}
	return nil
}

// RecentSeen returns up to limit persisted signatures, oldest first, for
// warming the in-memory tracker at startup.
func (s *Store) RecentSeen(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT signature FROM (
  SELECT rowid AS rid, signature FROM seen_signatures ORDER BY rowid DESC LIMIT ?
) ORDER BY rid ASC;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("load seen: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			return nil, fmt.Errorf("scan seen: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// Burn represents an emitted burn record kept for auditing.
type Burn struct {
	Signature     string
	Mint          string
	SourceAccount string
	Amount        string
	Slot          uint64
	CreatedAt     time.Time
}

// InsertBurn stores one emitted burn event. A transaction with several burn
// instructions produces several rows sharing one signature.
func (s *Store) InsertBurn(ctx context.Context, b Burn) error {
	if b.Signature == "" || b.Mint == "" {
		return errors.New("signature and mint required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO burns (signature, mint, source_account, amount, slot, created_at)
VALUES (?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP));
`, b.Signature, b.Mint, b.SourceAccount, b.Amount, b.Slot, nullTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert burn: %w", err)
	}
	return nil
}

// CountBurns returns the number of recorded burn events, optionally scoped
// to one signature when sig is non-empty.
func (s *Store) CountBurns(ctx context.Context, sig string) (int, error) {
	var n int
	var err error
	if sig == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM burns;`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM burns WHERE signature = ?;`, sig).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count burns: %w", err)
	}
	return n, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
