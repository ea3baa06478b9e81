package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"goflare.io/gomarket/driver"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS gomarket_kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const (
	selectKeysSQL   = `SELECT key FROM gomarket_kv ORDER BY key`
	selectValuesSQL = `SELECT key, value FROM gomarket_kv WHERE key = ANY($1)`
	upsertSQL       = `
INSERT INTO gomarket_kv (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	deleteSQL     = `DELETE FROM gomarket_kv WHERE key = $1`
	deleteManySQL = `DELETE FROM gomarket_kv WHERE key = ANY($1)`
)

// removeAttempts bounds the transactions MultiRemove tries before giving up.
const removeAttempts = 3

var _ KeyValueStore = (*PostgresStore)(nil)

// PostgresStore keeps records in a single two-column table.
type PostgresStore struct {
	conn   driver.PostgresPool
	tm     *driver.TransactionManager
	logger *zap.Logger
}

func NewPostgresStore(conn driver.PostgresPool, tm *driver.TransactionManager, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tm == nil {
		tm = driver.NewTransactionManager(conn, logger)
	}
	return &PostgresStore{
		conn:   conn,
		tm:     tm,
		logger: logger,
	}
}

// Migrate creates the backing table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return s.tm.ExecuteTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createTableSQL); err != nil {
			s.logger.Error("Failed to create kv table", zap.Error(err))
			return fmt.Errorf("create gomarket_kv: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) GetAllKeys(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, selectKeysSQL)
	if err != nil {
		s.logger.Error("Failed to list keys", zap.Error(err))
		return nil, fmt.Errorf("list keys: %w", err)
	}

	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		s.logger.Error("Failed to scan keys", zap.Error(err))
		return nil, fmt.Errorf("scan keys: %w", err)
	}
	return keys, nil
}

func (s *PostgresStore) MultiGet(ctx context.Context, keys []string) ([]Item, error) {
	if len(keys) == 0 {
		return []Item{}, nil
	}

	rows, err := s.conn.Query(ctx, selectValuesSQL, keys)
	if err != nil {
		s.logger.Error("Failed to get values", zap.Int("count", len(keys)), zap.Error(err))
		return nil, fmt.Errorf("get values: %w", err)
	}
	defer rows.Close()

	found := make(map[string]string, len(keys))
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		found[key] = value
	}
	if err := rows.Err(); err != nil {
		s.logger.Error("Failed to read values", zap.Error(err))
		return nil, fmt.Errorf("read values: %w", err)
	}

	items := make([]Item, 0, len(keys))
	for _, key := range keys {
		value, ok := found[key]
		items = append(items, Item{Key: key, Value: value, Found: ok})
	}
	return items, nil
}

func (s *PostgresStore) SetItem(ctx context.Context, key, value string) error {
	if err := validateKeys(key); err != nil {
		return err
	}
	if _, err := s.conn.Exec(ctx, upsertSQL, key, value); err != nil {
		s.logger.Error("Failed to upsert value", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) RemoveItem(ctx context.Context, key string) error {
	if err := validateKeys(key); err != nil {
		return err
	}
	if _, err := s.conn.Exec(ctx, deleteSQL, key); err != nil {
		s.logger.Error("Failed to delete value", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) MultiRemove(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := validateKeys(keys...); err != nil {
		return err
	}

	return s.tm.ExecuteTransactionWithRetry(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteManySQL, keys)
		if err != nil {
			s.logger.Error("Failed to delete values", zap.Int("count", len(keys)), zap.Error(err))
			return fmt.Errorf("delete values: %w", err)
		}
		s.logger.Debug("Deleted values", zap.Int64("rows", tag.RowsAffected()))
		return nil
	}, removeAttempts)
}
