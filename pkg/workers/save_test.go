package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyRepository fails every write while failing is set.
type flakyRepository struct {
	*repositories.MemoryRepository
	failing atomic.Bool
}

func (r *flakyRepository) Set(ctx context.Context, player string, key progression.Key, value int64) error {
	if r.failing.Load() {
		return errors.New("store unavailable")
	}
	return r.MemoryRepository.Set(ctx, player, key, value)
}

func (r *flakyRepository) SetMany(ctx context.Context, player string, values map[progression.Key]int64) error {
	if r.failing.Load() {
		return errors.New("store unavailable")
	}
	return r.MemoryRepository.SetMany(ctx, player, values)
}

func snapshot(version uint64, currency int64) progression.Snapshot {
	state := progression.NewState()
	state.Currency = currency
	return progression.NewSnapshot("p1", 1, version, state)
}

func newTestSaveWorker(repo repositories.Repository, interval time.Duration) *SaveWorker {
	return NewSaveWorker(NewSaveWorkerOptions{
		Repository:    repo,
		Interval:      interval,
		InlineRetries: 1,
		InlineBackoff: time.Millisecond,
	})
}

func coins(t *testing.T, repo repositories.Repository) int64 {
	t.Helper()
	v, _, err := repo.Get(context.Background(), "p1", progression.KeyCoins)
	require.NoError(t, err)
	return v
}

func TestSaveWorker_WritesThrough(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryRepository()
	w := newTestSaveWorker(repo, time.Hour)

	require.NoError(t, w.Save(ctx, snapshot(1, 10), progression.KeyCoins))
	assert.Equal(t, int64(10), coins(t, repo))
	assert.Equal(t, 0, w.Pending())
}

func TestSaveWorker_StaleSnapshotIsIgnored(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewMemoryRepository()
	w := newTestSaveWorker(repo, time.Hour)

	require.NoError(t, w.Save(ctx, snapshot(3, 30), progression.KeyCoins))
	require.NoError(t, w.Save(ctx, snapshot(2, 20), progression.KeyCoins))
	assert.Equal(t, int64(30), coins(t, repo))
}

func TestSaveWorker_DeferredWriteKeepsNewestValue(t *testing.T) {
	ctx := context.Background()
	repo := &flakyRepository{MemoryRepository: repositories.NewMemoryRepository()}
	w := newTestSaveWorker(repo, time.Hour)

	repo.failing.Store(true)
	assert.ErrorIs(t, w.Save(ctx, snapshot(1, 10), progression.KeyCoins), ErrWriteDeferred)
	assert.ErrorIs(t, w.Save(ctx, snapshot(2, 20), progression.KeyCoins), ErrWriteDeferred)
	assert.Equal(t, 1, w.Pending())

	repo.failing.Store(false)
	require.NoError(t, w.Flush(ctx))
	assert.Equal(t, int64(20), coins(t, repo))
	assert.Equal(t, 0, w.Pending())
}

func TestSaveWorker_StartRetriesInBackground(t *testing.T) {
	repo := &flakyRepository{MemoryRepository: repositories.NewMemoryRepository()}
	w := newTestSaveWorker(repo, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	repo.failing.Store(true)
	assert.ErrorIs(t, w.Save(context.Background(), snapshot(1, 15), progression.KeyCoins), ErrWriteDeferred)
	repo.failing.Store(false)

	require.Eventually(t, func() bool { return w.Pending() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(15), coins(t, repo))
}

func TestSaveWorker_FlushesOnShutdown(t *testing.T) {
	repo := &flakyRepository{MemoryRepository: repositories.NewMemoryRepository()}
	w := newTestSaveWorker(repo, time.Hour)

	repo.failing.Store(true)
	assert.ErrorIs(t, w.Save(context.Background(), snapshot(1, 40), progression.KeyCoins), ErrWriteDeferred)
	repo.failing.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, int64(40), coins(t, repo))
}
