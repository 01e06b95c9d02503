package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cbodonnell/progsync/pkg/progression"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens the database at path and runs every migration found in
// the migrations directory in file name order.
func NewSQLiteRepository(ctx context.Context, path string, migrations string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}
	// sqlite allows a single writer, and :memory: databases are per connection
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, migrations, func(ctx context.Context, migration string) error {
		_, err := db.ExecContext(ctx, migration)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func migrate(ctx context.Context, migrations string, exec func(ctx context.Context, migration string) error) error {
	dir, err := os.ReadDir(migrations)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %v", err)
	}
	sort.Slice(dir, func(i, j int) bool { return dir[i].Name() < dir[j].Name() })

	for _, entry := range dir {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}

		migrationPath := filepath.Join(migrations, entry.Name())
		migration, err := os.ReadFile(migrationPath)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %v", migrationPath, err)
		}

		if err := exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %v", migrationPath, err)
		}
	}

	return nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) Get(ctx context.Context, player string, key progression.Key) (int64, bool, error) {
	q := `
	SELECT value FROM progression WHERE player_id = ? AND key = ?;
	`
	var value int64
	if err := r.db.QueryRowContext(ctx, q, player, key.StoreKey()).Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to scan progression value: %v", err)
	}

	return value, true, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, player string, key progression.Key, value int64) error {
	q := `
	INSERT OR REPLACE INTO progression (player_id, key, value, updated_at)
	VALUES (?, ?, ?, ?);
	`
	_, err := r.db.ExecContext(ctx, q, player, key.StoreKey(), value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert progression value: %v", err)
	}

	return nil
}

func (r *SQLiteRepository) SetMany(ctx context.Context, player string, values map[progression.Key]int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for key, value := range values {
		q := `
		INSERT OR REPLACE INTO progression (player_id, key, value, updated_at)
		VALUES (?, ?, ?, ?);
		`
		if _, err := tx.ExecContext(ctx, q, player, key.StoreKey(), value, now); err != nil {
			return fmt.Errorf("failed to upsert progression value %s: %v", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %v", err)
	}

	return nil
}
