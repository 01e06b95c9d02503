package repositories

import (
	"context"
	"sync"

	"github.com/cbodonnell/progsync/pkg/progression"
)

type memoryKey struct {
	player string
	key    progression.Key
}

// MemoryRepository keeps values in a map. It is used by tests and by
// servers started with a memory:// database URL.
type MemoryRepository struct {
	values map[memoryKey]int64
	lock   sync.RWMutex
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		values: make(map[memoryKey]int64),
	}
}

func (r *MemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, player string, key progression.Key) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	r.lock.RLock()
	defer r.lock.RUnlock()
	v, ok := r.values[memoryKey{player, key}]
	return v, ok, nil
}

func (r *MemoryRepository) Set(ctx context.Context, player string, key progression.Key, value int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[memoryKey{player, key}] = value
	return nil
}

func (r *MemoryRepository) SetMany(ctx context.Context, player string, values map[progression.Key]int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.lock.Lock()
	defer r.lock.Unlock()
	for k, v := range values {
		r.values[memoryKey{player, k}] = v
	}
	return nil
}
