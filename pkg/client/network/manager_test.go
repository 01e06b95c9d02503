package network_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authproviders "github.com/cbodonnell/progsync/pkg/auth/providers"
	"github.com/cbodonnell/progsync/pkg/authority"
	"github.com/cbodonnell/progsync/pkg/bus"
	clientnetwork "github.com/cbodonnell/progsync/pkg/client/network"
	"github.com/cbodonnell/progsync/pkg/network"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/replica"
	"github.com/cbodonnell/progsync/pkg/repositories"
	"github.com/cbodonnell/progsync/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	url       string
	provider  *authproviders.JWTAuthProvider
	authority *authority.Authority
	repo      *repositories.MemoryRepository
}

func newServer(t *testing.T, autoJoin bool) *server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	b := bus.New()
	t.Cleanup(b.Close)
	repo := repositories.NewMemoryRepository()
	a := authority.NewAuthority(authority.NewAuthorityOptions{
		Repository: repo,
		Saver:      workers.NewSaveWorker(workers.NewSaveWorkerOptions{Repository: repo}),
		Publisher:  b,
		Catalog:    progression.DefaultCatalog(),
	})
	provider, err := authproviders.NewJWTAuthProvider(authproviders.NewJWTAuthProviderOptions{Secret: "0123456789abcdef"})
	require.NoError(t, err)

	clients := network.NewClientManager()
	if autoJoin {
		go workers.NewConnectionEventWorker(workers.NewConnectionEventWorkerOptions{
			ConnectionEventChan: clients.GetConnectionEventChan(),
			Sessions:            a,
		}).Start(ctx)
	} else {
		// drain events without joining so tests decide when the join happens
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-clients.GetConnectionEventChan():
				}
			}
		}()
	}

	nm := network.NewNetworkManager(network.NewNetworkManagerOptions{
		AuthProvider:  provider,
		ClientManager: clients,
		Authority:     a,
		Subscriber:    b,
	})
	srv := httptest.NewServer(nm.Handler(ctx))
	t.Cleanup(srv.Close)

	return &server{
		url:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		provider:  provider,
		authority: a,
		repo:      repo,
	}
}

func (s *server) connect(t *testing.T, player string) *clientnetwork.NetworkManager {
	t.Helper()
	token, err := s.provider.IssueToken(player)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := clientnetwork.Connect(ctx, clientnetwork.NewNetworkManagerOptions{URL: s.url, Token: token.IDToken})
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestNetworkManager_RemoteReplicas(t *testing.T) {
	ctx := context.Background()
	s := newServer(t, true)
	require.NoError(t, s.repo.Set(ctx, "p1", progression.KeyCoins, 15))
	m := s.connect(t, "p1")
	assert.Equal(t, "p1", m.Player())

	hud := replica.NewReplica(replica.NewReplicaOptions{Source: m, Subscriber: m.Bus(), InitialBackoff: 5 * time.Millisecond})
	shop := replica.NewReplica(replica.NewReplicaOptions{Source: m, Subscriber: m.Bus(), Optimistic: true, InitialBackoff: 5 * time.Millisecond})
	defer hud.Close()
	defer shop.Close()
	require.NoError(t, hud.Initialize(ctx, "p1"))
	require.NoError(t, shop.Initialize(ctx, "p1"))
	require.Eventually(t, func() bool { return hud.CurrentCurrency() == 15 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Collect(1))
	require.Eventually(t, func() bool { return hud.CurrentCurrency() == 25 }, 2*time.Second, 5*time.Millisecond)

	ok, err := shop.ProposePurchase(ctx, progression.KeyDoubleJump, 15)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = shop.ProposePurchase(ctx, progression.KeyLives, 20)
	require.NoError(t, err)
	assert.False(t, ok)

	want, err := s.authority.RequestSnapshot(ctx, "p1")
	require.NoError(t, err)
	for _, r := range []*replica.Replica{hud, shop} {
		r := r
		require.Eventually(t, func() bool { return r.Snapshot().Equal(want) }, 2*time.Second, 5*time.Millisecond)
		assert.Equal(t, int64(10), r.CurrentCurrency())
		assert.Equal(t, int64(1), r.CurrentLevel(progression.KeyDoubleJump))
	}
}

func TestNetworkManager_NotReady(t *testing.T) {
	ctx := context.Background()
	s := newServer(t, false)
	m := s.connect(t, "p1")

	_, err := m.RequestSnapshot(ctx, "p1")
	assert.True(t, errors.Is(err, authority.ErrPlayerNotReady), "got %v", err)

	_, err = m.Purchase(ctx, progression.PurchaseRequest{Player: "p1", Key: progression.KeySpeed, Cost: 10})
	assert.True(t, errors.Is(err, authority.ErrPlayerNotReady), "got %v", err)

	r := replica.NewReplica(replica.NewReplicaOptions{Source: m, Subscriber: m.Bus(), MaxWait: 2 * time.Second, InitialBackoff: 5 * time.Millisecond})
	defer r.Close()
	initialized := make(chan error, 1)
	go func() { initialized <- r.Initialize(ctx, "p1") }()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.authority.OnPlayerJoin(ctx, "p1"))
	require.NoError(t, <-initialized)
	assert.False(t, r.Snapshot().IsZero())
}

func TestNetworkManager_Close(t *testing.T) {
	s := newServer(t, true)
	m := s.connect(t, "p1")

	require.NoError(t, m.Close())
	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("connection did not close")
	}
	_, err := m.RequestSnapshot(context.Background(), "p1")
	assert.ErrorIs(t, err, clientnetwork.ErrClosed)
}

func TestConnect_BadToken(t *testing.T) {
	s := newServer(t, true)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := clientnetwork.Connect(ctx, clientnetwork.NewNetworkManagerOptions{URL: s.url, Token: "forged"})
	assert.Error(t, err)
}
