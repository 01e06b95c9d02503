package workers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cbodonnell/progsync/pkg/network"
	"github.com/stretchr/testify/assert"
)

type recordingSessions struct {
	lock   sync.Mutex
	joins  []string
	leaves []string
	block  chan struct{}
}

func (s *recordingSessions) OnPlayerJoin(ctx context.Context, player string) error {
	if s.block != nil {
		<-s.block
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.joins = append(s.joins, player)
	return nil
}

func (s *recordingSessions) OnPlayerLeave(player string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.leaves = append(s.leaves, player)
}

func (s *recordingSessions) snapshot() ([]string, []string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]string(nil), s.joins...), append([]string(nil), s.leaves...)
}

type fixedConnections map[string]int

func (c fixedConnections) Connections(player string) int {
	return c[player]
}

func startWorker(t *testing.T, opts NewConnectionEventWorkerOptions) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewConnectionEventWorker(opts).Start(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestConnectionEventWorker_JoinAndLeave(t *testing.T) {
	events := make(chan network.ConnectionEvent, 2)
	sessions := &recordingSessions{}
	startWorker(t, NewConnectionEventWorkerOptions{
		ConnectionEventChan: events,
		Sessions:            sessions,
		Connections:         fixedConnections{"p1": 1},
	})

	events <- network.ConnectionEvent{ClientID: 1, Player: "p1", Type: network.ConnectionEventTypeConnect}
	assert.Eventually(t, func() bool {
		joins, _ := sessions.snapshot()
		return len(joins) == 1
	}, time.Second, 5*time.Millisecond)

	events <- network.ConnectionEvent{ClientID: 1, Player: "p1", Type: network.ConnectionEventTypeDisconnect}
	assert.Eventually(t, func() bool {
		_, leaves := sessions.snapshot()
		return len(leaves) == 1 && leaves[0] == "p1"
	}, time.Second, 5*time.Millisecond)
}

func TestConnectionEventWorker_LeaveDuringJoin(t *testing.T) {
	events := make(chan network.ConnectionEvent, 2)
	sessions := &recordingSessions{block: make(chan struct{})}
	startWorker(t, NewConnectionEventWorkerOptions{
		ConnectionEventChan: events,
		Sessions:            sessions,
		Connections:         fixedConnections{},
	})

	events <- network.ConnectionEvent{ClientID: 1, Player: "p1", Type: network.ConnectionEventTypeConnect}
	events <- network.ConnectionEvent{ClientID: 1, Player: "p1", Type: network.ConnectionEventTypeDisconnect}
	assert.Eventually(t, func() bool {
		_, leaves := sessions.snapshot()
		return len(leaves) == 1
	}, time.Second, 5*time.Millisecond)

	close(sessions.block)
	assert.Eventually(t, func() bool {
		joins, leaves := sessions.snapshot()
		return len(joins) == 1 && len(leaves) == 2
	}, time.Second, 5*time.Millisecond, "a join that finishes after the last disconnect is evicted")
}
