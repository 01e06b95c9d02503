package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cbodonnell/progsync/pkg/authority"
	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/repositories"
	"github.com/cbodonnell/progsync/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downRepository struct {
	*repositories.MemoryRepository
	down atomic.Bool
}

func (r *downRepository) SetMany(ctx context.Context, player string, values map[progression.Key]int64) error {
	if r.down.Load() {
		return errors.New("store unavailable")
	}
	return r.MemoryRepository.SetMany(ctx, player, values)
}

// slowServer credits the player while it drains, like a request finishing
// during shutdown whose inline write fails.
type slowServer struct {
	t         *testing.T
	repo      *downRepository
	authority *authority.Authority
}

func (s *slowServer) Stop(ctx context.Context) error {
	s.repo.down.Store(true)
	defer s.repo.down.Store(false)
	_, err := s.authority.CreditCurrency(ctx, "p1", 10)
	assert.NoError(s.t, err)
	return nil
}

func TestShutdown_FlushesWritesFromDrainingServers(t *testing.T) {
	ctx := context.Background()
	repo := &downRepository{MemoryRepository: repositories.NewMemoryRepository()}
	saveWorker := workers.NewSaveWorker(workers.NewSaveWorkerOptions{
		Repository:    repo,
		Interval:      time.Hour,
		InlineRetries: 1,
		InlineBackoff: time.Millisecond,
	})
	saveCtx, stopSaving := context.WithCancel(ctx)
	defer stopSaving()
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		saveWorker.Start(saveCtx)
	}()

	b := bus.New()
	a := authority.NewAuthority(authority.NewAuthorityOptions{
		Repository: repo,
		Saver:      saveWorker,
		Publisher:  b,
	})
	require.NoError(t, a.OnPlayerJoin(ctx, "p1"))

	shutdown(ctx, []namedServer{
		{name: "test", server: &slowServer{t: t, repo: repo, authority: a}},
	}, a, b, stopSaving, wg)

	assert.Empty(t, a.Players())
	assert.Equal(t, 0, saveWorker.Pending())
	v, found, err := repo.Get(ctx, "p1", progression.KeyCoins)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(10), v)
}
