package network

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/metrics"
	"nhooyr.io/websocket"
)

const (
	// ClientIDMaxRetries represents the maximum number of retries when generating a unique ID
	ClientIDMaxRetries = 1024
	// ConnectionEventChannelSize represents the size of the connection event channel
	ConnectionEventChannelSize = 1024
)

// Client represents a logged in websocket connection
type Client struct {
	ID     uint32
	Player string
	WSConn *websocket.Conn

	subs []*bus.Subscription
}

// ConnectionEvent represents an event that happened to a player's connections
type ConnectionEvent struct {
	ClientID uint32
	Player   string
	Type     ConnectionEventType
}

// ConnectionEventType represents the type of a connection event
type ConnectionEventType int

const (
	ConnectionEventTypeConnect ConnectionEventType = iota
	ConnectionEventTypeDisconnect
)

func (t ConnectionEventType) String() string {
	switch t {
	case ConnectionEventTypeConnect:
		return "connect"
	case ConnectionEventTypeDisconnect:
		return "disconnect"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ClientManager manages connected clients. A player may hold several
// connections; a disconnect event is only raised when the last one closes.
type ClientManager struct {
	clients             map[uint32]*Client
	connections         map[string]int
	clientsLock         sync.RWMutex
	connectionEventChan chan ConnectionEvent
}

// NewClientManager creates a new ClientManager
func NewClientManager() *ClientManager {
	return &ClientManager{
		clients:             make(map[uint32]*Client),
		connections:         make(map[string]int),
		connectionEventChan: make(chan ConnectionEvent, ConnectionEventChannelSize),
	}
}

// GetConnectionEventChan returns a one-way channel for receiving connection events
func (cm *ClientManager) GetConnectionEventChan() <-chan ConnectionEvent {
	return cm.connectionEventChan
}

func (cm *ClientManager) GetClient(clientID uint32) (*Client, error) {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	client, ok := cm.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("client %d not found", clientID)
	}
	return client, nil
}

// ConnectClient registers conn for player and returns the new client. The
// connect event is raised separately by Announce so that callers can
// subscribe to the player's snapshots first.
func (cm *ClientManager) ConnectClient(conn *websocket.Conn, player string) (*Client, error) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	if id := cm.clientIDByWSConn(conn); id != 0 {
		return nil, fmt.Errorf("connection already logged in as client %d", id)
	}

	clientID, err := cm.generateUniqueID(ClientIDMaxRetries)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a unique ID: %v", err)
	}
	client := &Client{
		ID:     clientID,
		Player: player,
		WSConn: conn,
	}
	cm.clients[clientID] = client
	cm.connections[player]++
	metrics.ConnectedClients.Inc()

	return client, nil
}

// SetSubscriptions records the bus subscriptions owned by a client so they are
// released on disconnect.
func (cm *ClientManager) SetSubscriptions(clientID uint32, subs ...*bus.Subscription) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()
	if client, ok := cm.clients[clientID]; ok {
		client.subs = append(client.subs, subs...)
		return
	}
	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

// Announce raises the connect event for a client.
func (cm *ClientManager) Announce(client *Client) {
	cm.connectionEventChan <- ConnectionEvent{
		ClientID: client.ID,
		Player:   client.Player,
		Type:     ConnectionEventTypeConnect,
	}
}

// GetClientIDByWSConn returns the ID of a client by its websocket connection.
// Returns 0 if the client is not found
func (cm *ClientManager) GetClientIDByWSConn(conn *websocket.Conn) uint32 {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return cm.clientIDByWSConn(conn)
}

func (cm *ClientManager) clientIDByWSConn(conn *websocket.Conn) uint32 {
	for _, client := range cm.clients {
		if client.WSConn == conn {
			return client.ID
		}
	}
	return 0
}

// DisconnectClient removes a client from the manager and releases its subscriptions.
func (cm *ClientManager) DisconnectClient(clientID uint32) {
	cm.clientsLock.Lock()
	client, ok := cm.clients[clientID]
	if !ok {
		cm.clientsLock.Unlock()
		return
	}
	delete(cm.clients, clientID)
	metrics.ConnectedClients.Dec()
	cm.connections[client.Player]--
	last := cm.connections[client.Player] <= 0
	if last {
		delete(cm.connections, client.Player)
	}
	subs := client.subs
	cm.clientsLock.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	if last {
		cm.connectionEventChan <- ConnectionEvent{
			ClientID: client.ID,
			Player:   client.Player,
			Type:     ConnectionEventTypeDisconnect,
		}
	}
}

// Connections returns how many clients are logged in as player.
func (cm *ClientManager) Connections(player string) int {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return cm.connections[player]
}

// generateUniqueID generates a unique client ID with a maximum number of retries
// it reads from the clients, so it needs to be locked before calling
func (cm *ClientManager) generateUniqueID(maxRetries int) (uint32, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		id := rand.Uint32()
		if id == 0 {
			continue
		}
		if _, ok := cm.clients[id]; !ok {
			return id, nil
		}
	}

	return 0, fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}
