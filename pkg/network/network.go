package network

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/cbodonnell/progsync/pkg/authority"
	authproviders "github.com/cbodonnell/progsync/pkg/auth/providers"
	"github.com/cbodonnell/progsync/pkg/bus"
	"github.com/cbodonnell/progsync/pkg/log"
	"github.com/cbodonnell/progsync/pkg/messages"
	"github.com/cbodonnell/progsync/pkg/metrics"
	"github.com/cbodonnell/progsync/pkg/progression"
	"github.com/go-playground/validator/v10"
	"nhooyr.io/websocket"
)

const DefaultCoinPickupValue int64 = 10

var validate = validator.New(validator.WithRequiredStructEnabled())

// Authority is the part of the progression authority exposed to clients.
type Authority interface {
	CreditCurrency(ctx context.Context, player string, amount int64) (progression.Snapshot, error)
	Purchase(ctx context.Context, req progression.PurchaseRequest) (progression.PurchaseResult, error)
	RequestSnapshot(ctx context.Context, player string) (progression.Snapshot, error)
}

// Subscriber is the read side of the snapshot bus.
type Subscriber interface {
	Subscribe(player string, fn func(progression.Snapshot)) *bus.Subscription
	SubscribeCurrency(player string, fn func(bus.CurrencyChanged)) *bus.Subscription
}

type NetworkManager struct {
	AuthProvider    authproviders.AuthProvider
	ClientManager   *ClientManager
	Authority       Authority
	Subscriber      Subscriber
	WSServer        *WSServer
	CoinPickupValue int64
}

type NewNetworkManagerOptions struct {
	AuthProvider  authproviders.AuthProvider
	ClientManager *ClientManager
	Authority     Authority
	Subscriber    Subscriber
	WSPort        int
	WSServerTLS   *TLSConfig
	// CoinPickupValue is credited for each collected coin.
	CoinPickupValue int64
}

func NewNetworkManager(options NewNetworkManagerOptions) *NetworkManager {
	if options.CoinPickupValue <= 0 {
		options.CoinPickupValue = DefaultCoinPickupValue
	}
	return &NetworkManager{
		AuthProvider:  options.AuthProvider,
		ClientManager: options.ClientManager,
		Authority:     options.Authority,
		Subscriber:    options.Subscriber,
		WSServer: NewWSServer(NewWSServerOptions{
			Port: options.WSPort,
			TLS:  options.WSServerTLS,
		}),
		CoinPickupValue: options.CoinPickupValue,
	}
}

func (n *NetworkManager) Start(ctx context.Context) {
	n.WSServer.Start(ctx, n.handleControlDisconnect, n.handleControlMessage)
}

// Handler serves websocket clients without starting a listener.
func (n *NetworkManager) Handler(ctx context.Context) http.Handler {
	return n.WSServer.Handler(ctx, n.handleControlDisconnect, n.handleControlMessage)
}

func (n *NetworkManager) handleControlDisconnect(wsConn *websocket.Conn) {
	clientID := n.ClientManager.GetClientIDByWSConn(wsConn)
	if clientID != 0 {
		n.ClientManager.DisconnectClient(clientID)
		log.Info("Client %d disconnected", clientID)
		return
	}

	log.Debug("Connection closed before login")
}

func (n *NetworkManager) handleControlMessage(ctx context.Context, wsConn *websocket.Conn, message *messages.Message) {
	metrics.MessagesReceived.WithLabelValues(message.Type.String()).Inc()

	if message.Type == messages.MessageTypeClientLogin {
		client, err := n.handleClientLogin(ctx, wsConn, message)
		if err != nil {
			log.Error("Failed to handle client login: %v", err)
			if err := n.sendServerLoginFailure(ctx, wsConn, err.Error()); err != nil {
				log.Error("Failed to send server login failure: %v", err)
			}
			return
		}
		log.Info("Client %d connected as %s", client.ID, client.Player)
		return
	}

	clientID := n.ClientManager.GetClientIDByWSConn(wsConn)
	if clientID == 0 || clientID != message.ClientID {
		log.Warn("Received %s message from unknown client %d, ignoring", message.Type, message.ClientID)
		return
	}
	client, err := n.ClientManager.GetClient(clientID)
	if err != nil {
		log.Warn("Received %s message from disconnected client %d", message.Type, clientID)
		return
	}

	switch message.Type {
	case messages.MessageTypeClientPing:
		err = n.send(ctx, client, &messages.Message{Type: messages.MessageTypeServerPong})
	case messages.MessageTypeClientCollect:
		err = n.handleClientCollect(ctx, client, message)
	case messages.MessageTypeClientPurchase:
		err = n.handleClientPurchase(ctx, client, message)
	case messages.MessageTypeClientSnapshotRequest:
		err = n.handleClientSnapshotRequest(ctx, client, message)
	default:
		log.Warn("Unhandled message type %s from client %d", message.Type, clientID)
	}
	if err != nil {
		log.Error("Failed to handle %s from client %d: %v", message.Type, clientID, err)
	}
}

// handleClientLogin verifies the token, registers the client and subscribes it
// to its player's snapshots before announcing the connection, so the snapshot
// published by the join is not missed.
func (n *NetworkManager) handleClientLogin(ctx context.Context, wsConn *websocket.Conn, message *messages.Message) (*Client, error) {
	clientLogin := &messages.ClientLogin{}
	if err := message.DecodeJSON(clientLogin); err != nil {
		return nil, err
	}

	token, err := n.AuthProvider.VerifyToken(ctx, clientLogin.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to verify token: %v", err)
	}

	client, err := n.ClientManager.ConnectClient(wsConn, token.UID)
	if err != nil {
		return nil, fmt.Errorf("failed to connect client: %v", err)
	}

	msg, err := messages.NewJSONMessage(0, messages.MessageTypeServerLoginSuccess, &messages.ServerLoginSuccess{
		ClientID: client.ID,
		Player:   client.Player,
	})
	if err != nil {
		return nil, err
	}
	if err := n.send(ctx, client, msg); err != nil {
		n.ClientManager.DisconnectClient(client.ID)
		return nil, fmt.Errorf("failed to send server login success: %v", err)
	}

	snapshots := n.Subscriber.Subscribe(client.Player, func(snapshot progression.Snapshot) {
		if err := n.sendSnapshot(ctx, client, snapshot); err != nil {
			log.Debug("Failed to forward snapshot to client %d: %v", client.ID, err)
		}
	})
	currency := n.Subscriber.SubscribeCurrency(client.Player, func(event bus.CurrencyChanged) {
		if err := n.sendCurrencyChanged(ctx, client, event); err != nil {
			log.Debug("Failed to forward currency change to client %d: %v", client.ID, err)
		}
	})
	n.ClientManager.SetSubscriptions(client.ID, snapshots, currency)
	n.ClientManager.Announce(client)

	return client, nil
}

func (n *NetworkManager) handleClientCollect(ctx context.Context, client *Client, message *messages.Message) error {
	collect := &messages.ClientCollect{}
	if err := message.DecodeJSON(collect); err != nil {
		return n.sendError(ctx, client, "", messages.ErrorCodeBadRequest, err)
	}
	if err := validate.Struct(collect); err != nil {
		return n.sendError(ctx, client, "", messages.ErrorCodeBadRequest, err)
	}
	if collect.Pickups == 0 {
		collect.Pickups = 1
	}
	if collect.Pickups > math.MaxInt64/n.CoinPickupValue {
		return n.sendError(ctx, client, "", messages.ErrorCodeBadRequest, authority.ErrInvalidAmount)
	}
	// the credited snapshot reaches the client through its subscription
	if _, err := n.Authority.CreditCurrency(ctx, client.Player, collect.Pickups*n.CoinPickupValue); err != nil {
		return n.sendError(ctx, client, "", errorCode(err), err)
	}
	return nil
}

func (n *NetworkManager) handleClientPurchase(ctx context.Context, client *Client, message *messages.Message) error {
	purchase := &messages.ClientPurchase{}
	if err := message.DecodeJSON(purchase); err != nil {
		return n.sendError(ctx, client, "", messages.ErrorCodeBadRequest, err)
	}

	result, err := n.Authority.Purchase(ctx, progression.PurchaseRequest{
		ID:     purchase.RequestID,
		Player: client.Player,
		Key:    progression.Key(purchase.Key),
		Cost:   purchase.Cost,
	})
	if err != nil {
		return n.sendError(ctx, client, purchase.RequestID, errorCode(err), err)
	}

	payload, err := messages.SerializePurchaseResult(messages.PurchaseResult{
		RequestID:      purchase.RequestID,
		PurchaseResult: result,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize purchase result: %v", err)
	}
	return n.send(ctx, client, &messages.Message{
		Type:    messages.MessageTypeServerPurchaseResult,
		Payload: payload,
	})
}

func (n *NetworkManager) handleClientSnapshotRequest(ctx context.Context, client *Client, message *messages.Message) error {
	request := &messages.ClientSnapshotRequest{}
	if err := message.DecodeJSON(request); err != nil {
		return n.sendError(ctx, client, "", messages.ErrorCodeBadRequest, err)
	}
	snapshot, err := n.Authority.RequestSnapshot(ctx, client.Player)
	if err != nil {
		return n.sendError(ctx, client, request.RequestID, errorCode(err), err)
	}
	return n.sendSnapshot(ctx, client, snapshot)
}

func (n *NetworkManager) sendSnapshot(ctx context.Context, client *Client, snapshot progression.Snapshot) error {
	payload, err := messages.SerializeSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %v", err)
	}
	return n.send(ctx, client, &messages.Message{
		Type:    messages.MessageTypeServerSnapshot,
		Payload: payload,
	})
}

func (n *NetworkManager) sendCurrencyChanged(ctx context.Context, client *Client, event bus.CurrencyChanged) error {
	msg, err := messages.NewJSONMessage(0, messages.MessageTypeServerCurrencyChanged, &messages.ServerCurrencyChanged{
		Player:   event.Player,
		Currency: event.Currency,
		Epoch:    event.Epoch,
		Version:  event.Version,
	})
	if err != nil {
		return err
	}
	return n.send(ctx, client, msg)
}

func (n *NetworkManager) sendError(ctx context.Context, client *Client, requestID, code string, cause error) error {
	msg, err := messages.NewJSONMessage(0, messages.MessageTypeServerError, &messages.ServerError{
		RequestID: requestID,
		Code:      code,
		Message:   cause.Error(),
	})
	if err != nil {
		return err
	}
	if err := n.send(ctx, client, msg); err != nil {
		return fmt.Errorf("failed to send error %q: %v", cause, err)
	}
	if code == messages.ErrorCodeInternal {
		return cause
	}
	return nil
}

func (n *NetworkManager) sendServerLoginFailure(ctx context.Context, wsConn *websocket.Conn, reason string) error {
	msg, err := messages.NewJSONMessage(0, messages.MessageTypeServerLoginFailure, &messages.ServerLoginFailure{
		Reason: reason,
	})
	if err != nil {
		return err
	}
	return WriteMessageToWS(ctx, wsConn, msg)
}

func (n *NetworkManager) send(ctx context.Context, client *Client, msg *messages.Message) error {
	if err := WriteMessageToWS(ctx, client.WSConn, msg); err != nil {
		return fmt.Errorf("failed to send %s to client %d: %v", msg.Type, client.ID, err)
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, authority.ErrPlayerNotReady):
		return messages.ErrorCodeNotReady
	case errors.Is(err, authority.ErrInvalidAmount), authority.IsInvalidRequest(err):
		return messages.ErrorCodeBadRequest
	default:
		return messages.ErrorCodeInternal
	}
}
