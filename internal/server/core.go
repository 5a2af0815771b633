package server

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/cryptox"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/filelock"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/maintenance"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/pgstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/quota"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/server/config"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/session"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/users"
)

// Core is the wired access-control stack shared by the server and vosctl.
type Core struct {
	Config    *config.Config
	Files     *jsonstore.Store
	Documents jsonstore.Documents
	Gate      *maintenance.Gate
	Sessions  *session.Manager
	Quotas    quota.Backend
	Users     *users.Manager

	db *sql.DB
}

// openDB is a seam for tests.
var openDB = pgstore.Open

// OpenCore builds every manager from cfg. With a DatabaseDSN the documents
// live in PostgreSQL; Files still points at the data directory for pg-import.
func OpenCore(ctx context.Context, cfg *config.Config, l logging.Logger) (*Core, error) {
	locker, err := filelock.New(filelock.Mode(cfg.LockMode))
	if err != nil {
		return nil, err
	}
	if locker.Name() == "none" {
		l.Warn(ctx, "file locking disabled; only in-process writers are serialised", "lock_mode", cfg.LockMode)
	} else {
		l.Info(ctx, "file locking enabled", "backend", locker.Name())
	}

	c := &Core{Config: cfg}
	c.Gate = maintenance.NewGate(cfg.DataDir, l)
	c.Files = jsonstore.New(cfg.DataDir, locker, l, jsonstore.WithGate(c.Gate))
	c.Documents = c.Files

	if cfg.DatabaseDSN != "" {
		db, err := openDB(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
		pg := pgstore.New(db, l, pgstore.WithGate(c.Gate))
		if err := pg.RunMigrations(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		c.db = db
		c.Documents = pg
	}

	cipher, err := cryptox.LoadKey(ctx, cfg.EncryptionKey, cfg.KeyFile(), l)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Sessions = session.NewManager(ctx, c.Documents, l, session.WithTimeout(cfg.SessionTimeout))

	c.Quotas = quota.Disabled{}
	if cfg.QuotaEnabled {
		c.Quotas = quota.NewManager(ctx, c.Documents, l)
	} else {
		l.Info(ctx, "quota system disabled")
	}

	c.Users = users.NewManager(ctx, c.Documents, c.Sessions, c.Quotas, cipher, l,
		users.WithSeed(cfg.SeedUsers, cfg.DefaultAppPassword),
		users.WithIncidentLog(users.NewIncidentLog(cfg.DataDir)),
	)

	return c, nil
}

// DB returns the PostgreSQL handle, or nil for the file store.
func (c *Core) DB() *sql.DB {
	return c.db
}

func (c *Core) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
