package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultMinConnections is the minimum number of pooled connections kept open
	DefaultMinConnections = 2
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

type NewPostgresRepositoryOptions struct {
	ConnString      string
	MaxConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	// Migrations is an optional directory of .sql files applied on startup.
	Migrations string
}

// NewPostgresRepository connects a pool to the database.
// The caller is responsible for calling Close() on the repository.
func NewPostgresRepository(ctx context.Context, opts NewPostgresRepositoryOptions) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %v", err)
	}
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	config.MinConns = DefaultMinConnections
	if opts.MaxConnLifetime > 0 {
		config.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %v", err)
	}

	var username string
	var database string
	if err := pool.QueryRow(ctx, "SELECT current_user, current_database()").Scan(&username, &database); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to query database: %v", err)
	}
	log.Info("Connected to %s as %s", database, username)

	if opts.Migrations != "" {
		if err := migrate(ctx, opts.Migrations, func(ctx context.Context, migration string) error {
			_, err := pool.Exec(ctx, migration)
			return err
		}); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &PostgresRepository{
		pool: pool,
	}, nil
}

func (r *PostgresRepository) Close(ctx context.Context) error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, player string, key progression.Key) (int64, bool, error) {
	q := `
	SELECT value FROM progression WHERE player_id = $1 AND key = $2;
	`
	var value int64
	if err := r.pool.QueryRow(ctx, q, player, key.StoreKey()).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to scan progression value: %v", err)
	}

	return value, true, nil
}

const upsertProgressionQuery = `
INSERT INTO progression (player_id, key, value, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (player_id, key) DO UPDATE SET value = $3, updated_at = $4;
`

func (r *PostgresRepository) Set(ctx context.Context, player string, key progression.Key, value int64) error {
	_, err := r.pool.Exec(ctx, upsertProgressionQuery, player, key.StoreKey(), value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert progression value: %v", err)
	}

	return nil
}

func (r *PostgresRepository) SetMany(ctx context.Context, player string, values map[progression.Key]int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			log.Warn("Failed to rollback transaction: %v", err)
		}
	}()

	now := time.Now().UnixMilli()
	batch := &pgx.Batch{}
	for key, value := range values {
		batch.Queue(upsertProgressionQuery, player, key.StoreKey(), value, now)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert progression values: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}
