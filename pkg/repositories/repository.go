package repositories

import (
	"context"

	"github.com/cbodonnell/progsync/pkg/progression"
)

// Repository is the durable key-value store for per-player progression values.
// A missing key is reported with found == false and a nil error.
type Repository interface {
	Close(ctx context.Context) error
	Get(ctx context.Context, player string, key progression.Key) (value int64, found bool, err error)
	Set(ctx context.Context, player string, key progression.Key, value int64) error
}

// BatchRepository is implemented by backends that can write several keys atomically.
type BatchRepository interface {
	Repository
	SetMany(ctx context.Context, player string, values map[progression.Key]int64) error
}
