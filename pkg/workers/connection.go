package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/network"
)

const DefaultJoinTimeout = 30 * time.Second

// Sessions is notified when a player's first connection opens and when the
// last one closes.
type Sessions interface {
	OnPlayerJoin(ctx context.Context, player string) error
	OnPlayerLeave(player string)
}

// Connections reports how many connections a player currently holds.
type Connections interface {
	Connections(player string) int
}

type ConnectionEventWorker struct {
	connectionEventChan <-chan network.ConnectionEvent
	sessions            Sessions
	connections         Connections
	joinTimeout         time.Duration
}

type NewConnectionEventWorkerOptions struct {
	ConnectionEventChan <-chan network.ConnectionEvent
	Sessions            Sessions
	// Connections, when set, is checked after a join completes so a player
	// that disconnected while loading is evicted again.
	Connections Connections
	JoinTimeout time.Duration
}

// NewConnectionEventWorker creates a new ConnectionEventWorker.
// The worker turns connect and disconnect events into player joins and leaves.
func NewConnectionEventWorker(opts NewConnectionEventWorkerOptions) *ConnectionEventWorker {
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = DefaultJoinTimeout
	}
	return &ConnectionEventWorker{
		connectionEventChan: opts.ConnectionEventChan,
		sessions:            opts.Sessions,
		connections:         opts.Connections,
		joinTimeout:         opts.JoinTimeout,
	}
}

func (w *ConnectionEventWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.connectionEventChan:
			switch event.Type {
			case network.ConnectionEventTypeConnect:
				w.handleClientConnect(ctx, event)
			case network.ConnectionEventTypeDisconnect:
				w.handleClientDisconnect(event)
			default:
				log.Error("Unknown connection event type: %v", event.Type)
			}
		}
	}
}

// handleClientConnect joins in the background so one slow store read does not
// hold up other players. Joins of the same player are collapsed by the
// authority.
func (w *ConnectionEventWorker) handleClientConnect(ctx context.Context, event network.ConnectionEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, w.joinTimeout)
		defer cancel()
		if err := w.sessions.OnPlayerJoin(ctx, event.Player); err != nil {
			log.Error("Failed to join player %s for client %d: %v", event.Player, event.ClientID, err)
			return
		}
		if w.connections != nil && w.connections.Connections(event.Player) == 0 {
			log.Debug("Player %s left while joining", event.Player)
			w.sessions.OnPlayerLeave(event.Player)
		}
	}()
}

func (w *ConnectionEventWorker) handleClientDisconnect(event network.ConnectionEvent) {
	w.sessions.OnPlayerLeave(event.Player)
}
