package network

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cbodonnell/progsync/pkg/authority"
	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/messages"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/cbodonnell/progsync/pkg/queue"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultServerURL  = "ws://localhost:8888/"
	DefaultLoginWait  = 10 * time.Second
	writeWait         = 5 * time.Second
	messageQueueLimit = 0
)

var ErrClosed = errors.New("connection closed")

// NetworkManager is a client connection to the progression server. It is a
// replica source, and every snapshot or currency signal the server pushes is
// republished on a local bus so several replicas can share one connection.
type NetworkManager struct {
	conn         *websocket.Conn
	writeLock    sync.Mutex
	messageQueue queue.Queue
	bus          *bus.Bus

	clientID uint32
	player   string

	lock      sync.Mutex
	purchases map[string]chan purchaseReply
	snapshots map[string]chan snapshotReply
	closed    bool
	done      chan struct{}
	cancel    context.CancelFunc
	logger    *log.Logger
}

type purchaseReply struct {
	result progression.PurchaseResult
	err    error
}

type snapshotReply struct {
	snapshot progression.Snapshot
	err      error
}

type NewNetworkManagerOptions struct {
	URL   string
	Token string
	// Bus receives every pushed snapshot and currency signal. One is created
	// when nil.
	Bus       *bus.Bus
	LoginWait time.Duration
}

// Connect dials the server, logs in and starts receiving.
func Connect(ctx context.Context, opts NewNetworkManagerOptions) (*NetworkManager, error) {
	if opts.URL == "" {
		opts.URL = DefaultServerURL
	}
	if opts.Bus == nil {
		opts.Bus = bus.New()
	}
	if opts.LoginWait <= 0 {
		opts.LoginWait = DefaultLoginWait
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %v", err)
	}

	m := &NetworkManager{
		conn:         conn,
		messageQueue: queue.NewInMemoryQueue(messageQueueLimit),
		bus:          opts.Bus,
		purchases:    make(map[string]chan purchaseReply),
		snapshots:    make(map[string]chan snapshotReply),
		done:         make(chan struct{}),
		logger:       log.With("component", "client"),
	}

	if err := m.login(opts.Token, opts.LoginWait); err != nil {
		conn.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.receive()
	go m.dispatch(runCtx)
	return m, nil
}

func (m *NetworkManager) login(token string, wait time.Duration) error {
	msg, err := messages.NewJSONMessage(0, messages.MessageTypeClientLogin, &messages.ClientLogin{Token: token})
	if err != nil {
		return err
	}
	if err := m.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send login: %v", err)
	}

	m.conn.SetReadDeadline(time.Now().Add(wait))
	defer m.conn.SetReadDeadline(time.Time{})
	for {
		reply, err := ReadMessage(m.conn)
		if err != nil {
			return fmt.Errorf("failed to read login reply: %v", err)
		}
		switch reply.Type {
		case messages.MessageTypeServerLoginSuccess:
			success := &messages.ServerLoginSuccess{}
			if err := reply.DecodeJSON(success); err != nil {
				return err
			}
			m.clientID = success.ClientID
			m.player = success.Player
			m.logger = m.logger.With("player", success.Player)
			m.logger.Info("Logged in as client %d", success.ClientID)
			return nil
		case messages.MessageTypeServerLoginFailure:
			failure := &messages.ServerLoginFailure{}
			if err := reply.DecodeJSON(failure); err != nil {
				return err
			}
			return fmt.Errorf("login failed: %s", failure.Reason)
		default:
			m.logger.Debug("Ignoring %s before login", reply.Type)
		}
	}
}

// Player returns the player the server authenticated.
func (m *NetworkManager) Player() string {
	return m.player
}

// Bus returns the local bus carrying pushed updates.
func (m *NetworkManager) Bus() *bus.Bus {
	return m.bus
}

// Done is closed when the connection is gone.
func (m *NetworkManager) Done() <-chan struct{} {
	return m.done
}

// receive reads from the connection and queues every message for dispatch.
func (m *NetworkManager) receive() {
	defer m.shutdown()
	for {
		msg, err := ReadMessage(m.conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Error("Failed to read message: %v", err)
			}
			return
		}
		if err := m.messageQueue.Enqueue(msg); err != nil {
			m.logger.Error("Failed to enqueue message: %v", err)
			return
		}
	}
}

func (m *NetworkManager) dispatch(ctx context.Context) {
	for {
		item, err := m.messageQueue.Dequeue(ctx)
		if err != nil {
			return
		}
		msg, ok := item.(*messages.Message)
		if !ok {
			m.logger.Error("Unexpected queue item %T", item)
			continue
		}
		if err := m.handleMessage(msg); err != nil {
			m.logger.Error("Failed to handle %s: %v", msg.Type, err)
		}
	}
}

func (m *NetworkManager) handleMessage(msg *messages.Message) error {
	switch msg.Type {
	case messages.MessageTypeServerSnapshot:
		snapshot, err := messages.DeserializeSnapshot(msg.Payload)
		if err != nil {
			return err
		}
		m.bus.Publish(snapshot)
		m.resolveSnapshots(snapshot)
	case messages.MessageTypeServerCurrencyChanged:
		changed := &messages.ServerCurrencyChanged{}
		if err := msg.DecodeJSON(changed); err != nil {
			return err
		}
		m.bus.PublishCurrencyChanged(bus.CurrencyChanged{
			Player:   changed.Player,
			Currency: changed.Currency,
			Epoch:    changed.Epoch,
			Version:  changed.Version,
		})
	case messages.MessageTypeServerPurchaseResult:
		result, err := messages.DeserializePurchaseResult(msg.Payload)
		if err != nil {
			return err
		}
		m.resolvePurchase(result.RequestID, purchaseReply{result: result.PurchaseResult})
	case messages.MessageTypeServerError:
		serverError := &messages.ServerError{}
		if err := msg.DecodeJSON(serverError); err != nil {
			return err
		}
		err := remoteError(serverError)
		if serverError.RequestID == "" {
			m.logger.Warn("Server error: %v", err)
			return nil
		}
		m.resolvePurchase(serverError.RequestID, purchaseReply{err: err})
		m.resolveSnapshot(serverError.RequestID, snapshotReply{err: err})
	case messages.MessageTypeServerPong:
	default:
		m.logger.Debug("Ignoring %s", msg.Type)
	}
	return nil
}

// remoteError maps server error codes back to the errors the authority
// returns in process, so callers can branch on them the same way.
func remoteError(e *messages.ServerError) error {
	switch e.Code {
	case messages.ErrorCodeNotReady:
		return fmt.Errorf("%w: %s", authority.ErrPlayerNotReady, e.Message)
	case messages.ErrorCodeBadRequest:
		return &authority.ErrInvalidRequest{Err: errors.New(e.Message)}
	default:
		return fmt.Errorf("server error: %s", e.Message)
	}
}

// RequestSnapshot asks the server for the player's snapshot. Any snapshot that
// arrives after the request answers it.
func (m *NetworkManager) RequestSnapshot(ctx context.Context, player string) (progression.Snapshot, error) {
	if player != m.player {
		return progression.Snapshot{}, fmt.Errorf("connection is logged in as %s, not %s", m.player, player)
	}
	id := uuid.NewString()
	reply := make(chan snapshotReply, 1)
	if err := m.register(func() { m.snapshots[id] = reply }); err != nil {
		return progression.Snapshot{}, err
	}
	defer m.unregister(func() { delete(m.snapshots, id) })

	msg, err := messages.NewJSONMessage(m.clientID, messages.MessageTypeClientSnapshotRequest, &messages.ClientSnapshotRequest{RequestID: id})
	if err != nil {
		return progression.Snapshot{}, err
	}
	if err := m.SendMessage(msg); err != nil {
		return progression.Snapshot{}, err
	}

	select {
	case <-ctx.Done():
		return progression.Snapshot{}, ctx.Err()
	case <-m.done:
		return progression.Snapshot{}, ErrClosed
	case r := <-reply:
		return r.snapshot, r.err
	}
}

// Purchase sends req to the server and waits for its decision.
func (m *NetworkManager) Purchase(ctx context.Context, req progression.PurchaseRequest) (progression.PurchaseResult, error) {
	if req.Player != m.player {
		return progression.PurchaseResult{}, fmt.Errorf("connection is logged in as %s, not %s", m.player, req.Player)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	reply := make(chan purchaseReply, 1)
	if err := m.register(func() { m.purchases[req.ID] = reply }); err != nil {
		return progression.PurchaseResult{}, err
	}
	defer m.unregister(func() { delete(m.purchases, req.ID) })

	msg, err := messages.NewJSONMessage(m.clientID, messages.MessageTypeClientPurchase, &messages.ClientPurchase{
		RequestID: req.ID,
		Key:       string(req.Key),
		Cost:      req.Cost,
	})
	if err != nil {
		return progression.PurchaseResult{}, err
	}
	if err := m.SendMessage(msg); err != nil {
		return progression.PurchaseResult{}, err
	}

	select {
	case <-ctx.Done():
		return progression.PurchaseResult{}, ctx.Err()
	case <-m.done:
		return progression.PurchaseResult{}, ErrClosed
	case r := <-reply:
		return r.result, r.err
	}
}

// Collect reports coin pickups. The credit arrives as a pushed snapshot.
func (m *NetworkManager) Collect(pickups int64) error {
	msg, err := messages.NewJSONMessage(m.clientID, messages.MessageTypeClientCollect, &messages.ClientCollect{Pickups: pickups})
	if err != nil {
		return err
	}
	return m.SendMessage(msg)
}

func (m *NetworkManager) register(add func()) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.closed {
		return ErrClosed
	}
	add()
	return nil
}

func (m *NetworkManager) unregister(remove func()) {
	m.lock.Lock()
	defer m.lock.Unlock()
	remove()
}

func (m *NetworkManager) resolvePurchase(id string, r purchaseReply) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if reply, ok := m.purchases[id]; ok {
		reply <- r
		delete(m.purchases, id)
	}
}

func (m *NetworkManager) resolveSnapshot(id string, r snapshotReply) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if reply, ok := m.snapshots[id]; ok {
		reply <- r
		delete(m.snapshots, id)
	}
}

func (m *NetworkManager) resolveSnapshots(snapshot progression.Snapshot) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for id, reply := range m.snapshots {
		reply <- snapshotReply{snapshot: snapshot}
		delete(m.snapshots, id)
	}
}

// SendMessage sends a message to the server.
func (m *NetworkManager) SendMessage(msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	m.writeLock.Lock()
	defer m.writeLock.Unlock()
	m.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := m.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}
	return nil
}

// Close closes the connection. Pending requests fail with ErrClosed.
func (m *NetworkManager) Close() error {
	m.writeLock.Lock()
	err := m.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	m.writeLock.Unlock()
	m.shutdown()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to close connection: %v", err)
	}
	return nil
}

func (m *NetworkManager) shutdown() {
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.lock.Unlock()

	m.conn.Close()
	m.messageQueue.Close()
	m.cancel()
}

// ReadMessage reads a Message from a WebSocket connection
func ReadMessage(conn *websocket.Conn) (*messages.Message, error) {
	_, b, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	msg, err := messages.DeserializeMessage(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return msg, nil
}
