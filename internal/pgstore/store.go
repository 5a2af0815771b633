// Package pgstore keeps the access-control documents in PostgreSQL instead of
// the data directory. Every document is one row of the documents table; a
// write replaces the whole body under a transaction-scoped advisory lock so
// concurrent servers serialise per document the way the file store does.
package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/dbx"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/pgstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	queryRead   = `SELECT body FROM documents WHERE name = $1`
	queryExists = `SELECT EXISTS (SELECT 1 FROM documents WHERE name = $1)`
	queryUpsert = `INSERT INTO documents (name, body, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`
)

type Store struct {
	db     *sql.DB
	gate   jsonstore.ReadOnlyChecker
	logger logging.Logger
}

var _ jsonstore.Documents = (*Store)(nil)

type Option func(*Store)

// WithGate makes writes fail with jsonstore.ErrReadOnly while g reports
// maintenance.
func WithGate(g jsonstore.ReadOnlyChecker) Option {
	return func(s *Store) { s.gate = g }
}

func New(db *sql.DB, l logging.Logger, opts ...Option) *Store {
	s := &Store{db: db, logger: l.With("module", "pgstore")}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open connects through the pgx stdlib driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations.
func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, s.db, ".")
}

func (s *Store) Read(ctx context.Context, name string, v any) bool {
	if name == "" {
		return false
	}

	var body []byte
	err := s.db.QueryRowContext(ctx, queryRead, name).Scan(&body)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error(ctx, "read failed", "document", name, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		s.logger.Error(ctx, "document does not decode", "document", name, "error", err)
		return false
	}
	return true
}

func (s *Store) Write(ctx context.Context, name string, v any) error {
	if name == "" {
		return jsonstore.ErrBadName
	}
	if s.gate != nil && s.gate.ReadOnly(ctx) {
		s.logger.Warn(ctx, "write blocked by maintenance lock", "document", name)
		return jsonstore.ErrReadOnly
	}

	data, err := jsonstore.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}

	err = dbx.LockDocument(ctx, s.db, name, func(ctx context.Context, tx dbx.Execer) error {
		_, err := tx.ExecContext(ctx, queryUpsert, name, string(data))
		return err
	})
	if err != nil {
		s.logger.Error(ctx, "write failed", "document", name, "error", err)
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, name string) bool {
	var ok bool
	if err := s.db.QueryRowContext(ctx, queryExists, name).Scan(&ok); err != nil {
		s.logger.Error(ctx, "exists check failed", "document", name, "error", err)
		return false
	}
	return ok
}

// Import copies the named documents from src. Documents missing in src are
// skipped. It returns how many were copied.
func Import(ctx context.Context, dst, src jsonstore.Documents, names []string) (int, error) {
	n := 0
	for _, name := range names {
		var raw json.RawMessage
		if !src.Read(ctx, name, &raw) {
			continue
		}
		if err := dst.Write(ctx, name, raw); err != nil {
			return n, fmt.Errorf("import %s: %w", name, err)
		}
		n++
	}
	return n, nil
}
