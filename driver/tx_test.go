package driver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errSerialization = errors.New("could not serialize access")

// fakePool hands out transactions whose Exec fails execFailures times before succeeding.
type fakePool struct {
	mu           sync.Mutex
	begins       int
	commits      int
	rollbacks    int
	execFailures int
}

func (p *fakePool) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.begins++
	return &fakeTx{pool: p}, nil
}

func (p *fakePool) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (p *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (p *fakePool) QueryRow(context.Context, string, ...any) pgx.Row {
	return nil
}

func (p *fakePool) Close() {}

type fakeTx struct {
	pgx.Tx
	pool *fakePool
}

func (tx *fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	tx.pool.mu.Lock()
	defer tx.pool.mu.Unlock()
	if tx.pool.execFailures > 0 {
		tx.pool.execFailures--
		return pgconn.CommandTag{}, errSerialization
	}
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.pool.mu.Lock()
	defer tx.pool.mu.Unlock()
	tx.pool.commits++
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.pool.mu.Lock()
	defer tx.pool.mu.Unlock()
	tx.pool.rollbacks++
	return nil
}

func execStatement(ctx context.Context) func(pgx.Tx) error {
	return func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "DELETE FROM gomarket_kv")
		return err
	}
}

func shortBackoff(t *testing.T) {
	t.Helper()
	prev := retryBackoff
	retryBackoff = time.Millisecond
	t.Cleanup(func() { retryBackoff = prev })
}

func TestExecuteTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	pool := &fakePool{execFailures: 1}
	tm := NewTransactionManager(pool, zaptest.NewLogger(t))

	err := tm.ExecuteTransaction(ctx, execStatement(ctx))
	assert.ErrorIs(t, err, errSerialization)
	assert.Equal(t, 0, pool.commits)
	assert.Equal(t, 1, pool.rollbacks)

	require.NoError(t, tm.ExecuteTransaction(ctx, execStatement(ctx)))
	assert.Equal(t, 1, pool.commits)
}

func TestExecuteTransactionWithRetry_SucceedsAfterFailures(t *testing.T) {
	shortBackoff(t)
	ctx := context.Background()
	pool := &fakePool{execFailures: 2}
	tm := NewTransactionManager(pool, zaptest.NewLogger(t))

	require.NoError(t, tm.ExecuteTransactionWithRetry(ctx, pgx.TxOptions{}, execStatement(ctx), 3))
	assert.Equal(t, 3, pool.begins)
	assert.Equal(t, 2, pool.rollbacks)
	assert.Equal(t, 1, pool.commits)
}

func TestExecuteTransactionWithRetry_GivesUp(t *testing.T) {
	shortBackoff(t)
	ctx := context.Background()
	pool := &fakePool{execFailures: 10}
	tm := NewTransactionManager(pool, zaptest.NewLogger(t))

	err := tm.ExecuteTransactionWithRetry(ctx, pgx.TxOptions{}, execStatement(ctx), 3)
	assert.ErrorIs(t, err, errSerialization)
	assert.ErrorContains(t, err, "after 3 attempts")
	assert.Equal(t, 3, pool.begins)
	assert.Equal(t, 0, pool.commits)
}

func TestExecuteTransactionWithRetry_StopsWhenContextDone(t *testing.T) {
	shortBackoff(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pool := &fakePool{execFailures: 10}
	tm := NewTransactionManager(pool, zaptest.NewLogger(t))

	err := tm.ExecuteTransactionWithRetry(ctx, pgx.TxOptions{}, execStatement(ctx), 5)
	assert.ErrorIs(t, err, errSerialization)
	assert.ErrorContains(t, err, "after 1 attempts")
	assert.Equal(t, 1, pool.begins)
}

func TestExecuteTransactionWithRetry_AtLeastOnce(t *testing.T) {
	ctx := context.Background()
	pool := &fakePool{}
	tm := NewTransactionManager(pool, zaptest.NewLogger(t))

	require.NoError(t, tm.ExecuteTransactionWithRetry(ctx, pgx.TxOptions{}, execStatement(ctx), 0))
	assert.Equal(t, 1, pool.commits)
}
