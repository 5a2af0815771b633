package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(order *[]string, name string, err error) Compensation {
	return func(context.Context) error {
		*order = append(*order, name)
		return err
	}
}

func TestRun_ErrorRollsBackInReverse(t *testing.T) {
	var order []string
	boom := errors.New("boom")

	err := Run(context.Background(), logging.Discard(), func(ctx context.Context, tx *Tx) error {
		tx.OnRollback("first", recorder(&order, "first", nil))
		tx.OnRollback("second", recorder(&order, "second", nil))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestRun_CommitSkipsRollback(t *testing.T) {
	var order []string

	err := Run(context.Background(), logging.Discard(), func(ctx context.Context, tx *Tx) error {
		tx.OnRollback("first", recorder(&order, "first", nil))
		tx.Commit()
		return nil
	})

	require.NoError(t, err)
	assert.Empty(t, order)
}

func TestRun_MissingCommitRollsBack(t *testing.T) {
	var order []string

	err := Run(context.Background(), logging.Discard(), func(ctx context.Context, tx *Tx) error {
		tx.OnRollback("only", recorder(&order, "only", nil))
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, order)
}

func TestRollback_FailuresDoNotStopOthers(t *testing.T) {
	var order []string
	tx := New(logging.Discard())

	tx.OnRollback("a", recorder(&order, "a", nil))
	tx.OnRollback("b", recorder(&order, "b", errors.New("b failed")))
	tx.OnRollback("c", func(context.Context) error { panic("c exploded") })

	failed := tx.Rollback(context.Background())
	assert.Equal(t, 2, failed)
	assert.Equal(t, []string{"b", "a"}, order)

	assert.Equal(t, 0, tx.Rollback(context.Background()), "second rollback is a no-op")
}

func TestRun_PanicRollsBackAndRethrows(t *testing.T) {
	var order []string

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = Run(context.Background(), logging.Discard(), func(ctx context.Context, tx *Tx) error {
			tx.OnRollback("step", recorder(&order, "step", nil))
			panic("kaboom")
		})
	})
	assert.Equal(t, []string{"step"}, order)
}
