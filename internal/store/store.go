// Package store persists the prop's settings and round history in SQLite.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	_ "modernc.org/sqlite"
)

const (
	keyAPPassword = "ap_password"

	// PasswordLength is the length of the generated access point password.
	PasswordLength = 10
	passwordChars  = "abcdefghjkmnpqrstuvwxyz23456789"

	// Fixed width so stored timestamps sort as text.
	timeFormat = "2006-01-02T15:04:05.000000000Z"
)

// Round is one finished round.
type Round struct {
	ID          string
	Game        int
	Minutes     int
	Outcome     string // WON or LOST
	Cuts        int
	Mistakes    int
	DisplayCode string
	StartedAt   time.Time
	EndedAt     time.Time
}

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection serializes the recorder goroutine and startup reads.
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New uses an already open database.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS rounds (
		id TEXT PRIMARY KEY,
		game INTEGER NOT NULL,
		minutes INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		cuts INTEGER NOT NULL,
		mistakes INTEGER NOT NULL,
		display_code TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS rounds_ended_at ON rounds (ended_at);`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// APPassword returns the access point password, generating and saving one
// on first use. Later calls return the saved value.
func (s *Store) APPassword(ctx context.Context) (string, error) {
	pw, err := s.setting(ctx, keyAPPassword)
	if err == nil {
		return pw, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	pw, err = GeneratePassword(rand.Reader)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, keyAPPassword, pw)
	if err != nil {
		return "", fmt.Errorf("save ap password: %w", err)
	}
	// Re-read so a concurrent first boot agrees on one value.
	return s.setting(ctx, keyAPPassword)
}

func (s *Store) setting(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return v, nil
}

// GeneratePassword draws PasswordLength characters uniformly from an
// alphabet without look-alike characters.
func GeneratePassword(r io.Reader) (string, error) {
	max := big.NewInt(int64(len(passwordChars)))
	b := make([]byte, PasswordLength)
	for i := range b {
		n, err := rand.Int(r, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b[i] = passwordChars[n.Int64()]
	}
	return string(b), nil
}

// RecordRound saves a finished round.
func (s *Store) RecordRound(ctx context.Context, r Round) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO rounds (
		id, game, minutes, outcome, cuts, mistakes, display_code, started_at, ended_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Game, r.Minutes, r.Outcome, r.Cuts, r.Mistakes, r.DisplayCode,
		r.StartedAt.UTC().Format(timeFormat), r.EndedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert round %s: %w", r.ID, err)
	}
	return nil
}

// RecentRounds returns up to limit rounds, most recently ended first.
func (s *Store) RecentRounds(ctx context.Context, limit int) ([]Round, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, game, minutes, outcome, cuts, mistakes, display_code, started_at, ended_at
		FROM rounds
		ORDER BY ended_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rounds []Round
	for rows.Next() {
		var (
			r              Round
			started, ended string
		)
		if err := rows.Scan(&r.ID, &r.Game, &r.Minutes, &r.Outcome, &r.Cuts, &r.Mistakes,
			&r.DisplayCode, &started, &ended); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		if r.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("round %s started_at: %w", r.ID, err)
		}
		if r.EndedAt, err = time.Parse(timeFormat, ended); err != nil {
			return nil, fmt.Errorf("round %s ended_at: %w", r.ID, err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	return rounds, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
