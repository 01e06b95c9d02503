package repositories

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

type OpenOptions struct {
	// URL selects the backend: memory://, sqlite://<path> or postgres(ql)://...
	URL string
	// MigrationsDir holds one sub-directory of .sql files per backend (sqlite, postgres).
	MigrationsDir string
}

// Open creates the repository named by opts.URL.
func Open(ctx context.Context, opts OpenOptions) (Repository, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %v", err)
	}

	switch u.Scheme {
	case "memory":
		return NewMemoryRepository(), nil
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(opts.URL, u.Scheme+"://")
		if path == "" {
			path = ":memory:"
		}
		r, err := NewSQLiteRepository(ctx, path, filepath.Join(opts.MigrationsDir, "sqlite"))
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite repository: %v", err)
		}
		return r, nil
	case "postgres", "postgresql":
		r, err := NewPostgresRepository(ctx, NewPostgresRepositoryOptions{
			ConnString: opts.URL,
			Migrations: filepath.Join(opts.MigrationsDir, "postgres"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres repository: %v", err)
		}
		return r, nil
	default:
		return nil, &ErrUnsupportedScheme{Scheme: u.Scheme}
	}
}
