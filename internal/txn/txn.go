// Package txn provides compensating transactions for operations that touch
// more than one document. It cannot undo a committed write; it can only run
// the compensations the caller registered, newest first.
package txn

import (
	"context"
	"fmt"
	"sync"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
)

// Compensation undoes one completed step.
type Compensation func(ctx context.Context) error

type step struct {
	name string
	fn   Compensation
}

// Tx collects compensations until Commit or Rollback.
type Tx struct {
	mu        sync.Mutex
	logger    logging.Logger
	steps     []step
	committed bool
	done      bool
}

func New(l logging.Logger) *Tx {
	return &Tx{logger: l.With("module", "txn")}
}

// OnRollback registers the compensation for a step that just succeeded.
func (t *Tx) OnRollback(name string, fn Compensation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.steps = append(t.steps, step{name: name, fn: fn})
}

// Commit marks the transaction successful and drops the compensations.
func (t *Tx) Commit() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.committed = true
	t.done = true
	t.steps = nil
}

// Rollback runs every registered compensation in reverse order. Failures and
// panics are logged and do not stop the remaining compensations. It returns
// the number of compensations that failed.
func (t *Tx) Rollback(ctx context.Context) int {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return 0
	}
	t.done = true
	steps := t.steps
	t.steps = nil
	t.mu.Unlock()

	failed := 0
	for i := len(steps) - 1; i >= 0; i-- {
		if err := runStep(ctx, steps[i]); err != nil {
			failed++
			t.logger.Error(ctx, "rollback step failed", "step", steps[i].name, "error", err)
			continue
		}
		t.logger.Info(ctx, "rollback step done", "step", steps[i].name)
	}
	return failed
}

func runStep(ctx context.Context, s step) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return s.fn(ctx)
}

// Committed reports whether Commit was called.
func (t *Tx) Committed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.committed
}

// Run executes fn inside a transaction. If fn returns an error, panics, or
// returns without calling Commit, the compensations run. Panics are
// rethrown after rollback.
//
//	err := txn.Run(ctx, logger, func(ctx context.Context, tx *txn.Tx) error {
//	    if err := createUser(ctx); err != nil {
//	        return err
//	    }
//	    tx.OnRollback("remove user", removeUser)
//	    if err := assignQuota(ctx); err != nil {
//	        return err
//	    }
//	    tx.Commit()
//	    return nil
//	})
func Run(ctx context.Context, l logging.Logger, fn func(ctx context.Context, tx *Tx) error) (err error) {
	tx := New(l)

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback(ctx)
			panic(p)
		}
		if err != nil || !tx.Committed() {
			if err == nil {
				tx.logger.Warn(ctx, "transaction not committed, rolling back")
			}
			tx.Rollback(ctx)
		}
	}()

	return fn(ctx, tx)
}
