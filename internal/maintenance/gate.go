// Package maintenance implements the migration lock: while an operator holds
// it, the document store refuses writes so a data migration sees a frozen
// data set.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/timex"
)

const (
	// LockFileName lives directly under the data directory.
	LockFileName = ".migration_lock"

	// DefaultStaleAfter is the age after which a forgotten lock is ignored.
	DefaultStaleAfter = time.Hour
)

var ErrHeld = errors.New("maintenance lock already held")

// Gate answers whether the application is currently read-only.
type Gate struct {
	path       string
	staleAfter time.Duration
	now        func() time.Time
	logger     logging.Logger
}

func NewGate(dataDir string, l logging.Logger) *Gate {
	return &Gate{
		path:       filepath.Join(dataDir, LockFileName),
		staleAfter: DefaultStaleAfter,
		now:        time.Now,
		logger:     l.With("module", "maintenance"),
	}
}

type lockInfo struct {
	Holder    string      `json:"holder"`
	StartedAt timex.Stamp `json:"started_at"`
	PID       int         `json:"pid"`
}

// ReadOnly reports whether a fresh lock file exists. A stale one is removed.
func (g *Gate) ReadOnly(ctx context.Context) bool {
	st, err := os.Stat(g.path)
	if err != nil {
		return false
	}

	age := g.now().Sub(st.ModTime())
	if age > g.staleAfter {
		g.logger.Warn(ctx, "stale maintenance lock removed", "age", age.Round(time.Second).String())
		_ = os.Remove(g.path)
		return false
	}
	return true
}

// Acquire creates the lock file. It fails with ErrHeld while another holder
// has a fresh lock.
func (g *Gate) Acquire(ctx context.Context, holder string) error {
	if g.ReadOnly(ctx) {
		return ErrHeld
	}
	if err := os.MkdirAll(filepath.Dir(g.path), 0o770); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	f, err := os.OpenFile(g.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrHeld
		}
		return fmt.Errorf("create lock: %w", err)
	}
	defer f.Close()

	info := lockInfo{Holder: holder, StartedAt: timex.NewStamp(g.now()), PID: os.Getpid()}
	if err := json.NewEncoder(f).Encode(info); err != nil {
		return fmt.Errorf("write lock: %w", err)
	}

	g.logger.Info(ctx, "maintenance lock acquired", "holder", holder)
	return nil
}

// Release removes the lock file. Releasing an absent lock is not an error.
func (g *Gate) Release(ctx context.Context) error {
	if err := os.Remove(g.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	g.logger.Info(ctx, "maintenance lock released")
	return nil
}
