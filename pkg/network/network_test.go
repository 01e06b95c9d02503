package network_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authproviders "github.com/cbodonnell/progsync/pkg/auth/providers"
	"github.com/cbodonnell/progsync/pkg/authority"
	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/messages"
	"github.com/cbodonnell/progsync/pkg/network"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/repositories"
	"github.com/cbodonnell/progsync/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type testServer struct {
	url       string
	provider  *authproviders.JWTAuthProvider
	authority *authority.Authority
	repo      *repositories.MemoryRepository
	clients   *network.ClientManager
}

func newTestServer(t *testing.T) *testServer {
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
	go workers.NewConnectionEventWorker(workers.NewConnectionEventWorkerOptions{
		ConnectionEventChan: clients.GetConnectionEventChan(),
		Sessions:            a,
		Connections:         clients,
	}).Start(ctx)

	nm := network.NewNetworkManager(network.NewNetworkManagerOptions{
		AuthProvider:  provider,
		ClientManager: clients,
		Authority:     a,
		Subscriber:    b,
	})
	srv := httptest.NewServer(nm.Handler(ctx))
	t.Cleanup(srv.Close)

	return &testServer{
		url:       "ws" + strings.TrimPrefix(srv.URL, "http"),
		provider:  provider,
		authority: a,
		repo:      repo,
		clients:   clients,
	}
}

type testClient struct {
	t        *testing.T
	conn     *websocket.Conn
	clientID uint32
}

func (s *testServer) dial(t *testing.T) *testClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return &testClient{t: t, conn: conn}
}

func (c *testClient) send(t messages.MessageType, v interface{}) {
	c.t.Helper()
	msg, err := messages.NewJSONMessage(c.clientID, t, v)
	require.NoError(c.t, err)
	require.NoError(c.t, network.WriteMessageToWS(context.Background(), c.conn, msg))
}

// next reads until a message of type t arrives, skipping everything else.
func (c *testClient) next(t messages.MessageType) *messages.Message {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		msg, err := network.ReadMessageFromWS(ctx, c.conn)
		require.NoError(c.t, err)
		if msg.Type == t {
			return msg
		}
	}
}

// snapshotWith reads snapshots until one satisfies ok.
func (c *testClient) snapshotWith(ok func(progression.Snapshot) bool) progression.Snapshot {
	c.t.Helper()
	for {
		msg := c.next(messages.MessageTypeServerSnapshot)
		snapshot, err := messages.DeserializeSnapshot(msg.Payload)
		require.NoError(c.t, err)
		if ok(snapshot) {
			return snapshot
		}
	}
}

func (c *testClient) login(token string) {
	c.t.Helper()
	c.send(messages.MessageTypeClientLogin, &messages.ClientLogin{Token: token})
	msg := c.next(messages.MessageTypeServerLoginSuccess)
	success := &messages.ServerLoginSuccess{}
	require.NoError(c.t, msg.DecodeJSON(success))
	c.clientID = success.ClientID
}

func TestNetworkManager_ProgressionFlow(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.repo.Set(context.Background(), "p1", progression.KeyCoins, 20))
	token, err := s.provider.IssueToken("p1")
	require.NoError(t, err)

	c := s.dial(t)
	c.login(token.IDToken)
	joined := c.snapshotWith(func(s progression.Snapshot) bool { return true })
	assert.Equal(t, int64(20), joined.Currency())

	c.send(messages.MessageTypeClientCollect, &messages.ClientCollect{Pickups: 1})
	credited := c.snapshotWith(func(s progression.Snapshot) bool { return s.Currency() == 30 })
	assert.True(t, credited.NewerThan(joined))

	c.send(messages.MessageTypeClientPurchase, &messages.ClientPurchase{RequestID: "r1", Key: "Jump", Cost: 10})
	msg := c.next(messages.MessageTypeServerPurchaseResult)
	result, err := messages.DeserializePurchaseResult(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, "r1", result.RequestID)
	assert.True(t, result.Accepted)
	assert.Equal(t, int64(20), result.Snapshot.Currency())
	assert.Equal(t, int64(1), result.Snapshot.Level(progression.KeyJump))

	c.send(messages.MessageTypeClientPurchase, &messages.ClientPurchase{RequestID: "r2", Key: "Lives", Cost: 5})
	msg = c.next(messages.MessageTypeServerPurchaseResult)
	result, err = messages.DeserializePurchaseResult(msg.Payload)
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, progression.ReasonPriceMismatch, result.Reason)

	c.send(messages.MessageTypeClientSnapshotRequest, &messages.ClientSnapshotRequest{RequestID: "s1"})
	pulled := c.snapshotWith(func(s progression.Snapshot) bool { return s.Level(progression.KeyJump) == 1 })
	assert.Equal(t, int64(20), pulled.Currency())

	stored, found, err := s.repo.Get(context.Background(), "p1", progression.KeyJump)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), stored)
}

func TestNetworkManager_CurrencyChangedSignal(t *testing.T) {
	s := newTestServer(t)
	token, err := s.provider.IssueToken("p1")
	require.NoError(t, err)

	c := s.dial(t)
	c.login(token.IDToken)
	c.snapshotWith(func(s progression.Snapshot) bool { return true })

	_, err = s.authority.CreditCurrency(context.Background(), "p1", 10)
	require.NoError(t, err)
	msg := c.next(messages.MessageTypeServerCurrencyChanged)
	changed := &messages.ServerCurrencyChanged{}
	require.NoError(t, msg.DecodeJSON(changed))
	assert.Equal(t, "p1", changed.Player)
	assert.Equal(t, int64(10), changed.Currency)
}

func TestNetworkManager_LoginFailure(t *testing.T) {
	s := newTestServer(t)
	c := s.dial(t)

	c.send(messages.MessageTypeClientLogin, &messages.ClientLogin{Token: "forged"})
	msg := c.next(messages.MessageTypeServerLoginFailure)
	failure := &messages.ServerLoginFailure{}
	require.NoError(t, msg.DecodeJSON(failure))
	assert.NotEmpty(t, failure.Reason)
}

func TestNetworkManager_DisconnectLeaves(t *testing.T) {
	s := newTestServer(t)
	token, err := s.provider.IssueToken("p1")
	require.NoError(t, err)

	first := s.dial(t)
	first.login(token.IDToken)
	first.snapshotWith(func(s progression.Snapshot) bool { return true })
	second := s.dial(t)
	second.login(token.IDToken)
	assert.Equal(t, 2, s.clients.Connections("p1"))

	require.NoError(t, first.conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return s.clients.Connections("p1") == 1 }, time.Second, 5*time.Millisecond)
	_, err = s.authority.RequestSnapshot(context.Background(), "p1")
	assert.NoError(t, err, "the player stays joined while a connection remains")

	require.NoError(t, second.conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		_, err := s.authority.RequestSnapshot(context.Background(), "p1")
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestNetworkManager_CollectIsBounded(t *testing.T) {
	s := newTestServer(t)
	token, err := s.provider.IssueToken("p1")
	require.NoError(t, err)

	c := s.dial(t)
	c.login(token.IDToken)
	c.snapshotWith(func(s progression.Snapshot) bool { return true })

	for _, pickups := range []int64{-1, 1001, 1 << 62} {
		c.send(messages.MessageTypeClientCollect, &messages.ClientCollect{Pickups: pickups})
		msg := c.next(messages.MessageTypeServerError)
		serverErr := &messages.ServerError{}
		require.NoError(t, msg.DecodeJSON(serverErr))
		assert.Equal(t, messages.ErrorCodeBadRequest, serverErr.Code, "pickups %d", pickups)
	}

	snap, err := s.authority.RequestSnapshot(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.Currency())
}
