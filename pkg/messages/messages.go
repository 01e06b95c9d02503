package messages

import (
	"encoding/json"
	"fmt"
)

const (
	// MessageBufferSize represents the maximum size of a message
	MessageBufferSize = 4096
)

type MessageType byte

// Message types
const (
	MessageTypeClientPing MessageType = iota + 1
	MessageTypeServerPong
	MessageTypeClientLogin
	MessageTypeServerLoginSuccess
	MessageTypeServerLoginFailure
	MessageTypeServerSnapshot
	MessageTypeServerCurrencyChanged
	MessageTypeClientCollect
	MessageTypeClientPurchase
	MessageTypeServerPurchaseResult
	MessageTypeClientSnapshotRequest
	MessageTypeServerError
)

func (t MessageType) String() string {
	switch t {
	case MessageTypeClientPing:
		return "ping"
	case MessageTypeServerPong:
		return "pong"
	case MessageTypeClientLogin:
		return "login"
	case MessageTypeServerLoginSuccess:
		return "login_success"
	case MessageTypeServerLoginFailure:
		return "login_failure"
	case MessageTypeServerSnapshot:
		return "snapshot"
	case MessageTypeServerCurrencyChanged:
		return "currency_changed"
	case MessageTypeClientCollect:
		return "collect"
	case MessageTypeClientPurchase:
		return "purchase"
	case MessageTypeServerPurchaseResult:
		return "purchase_result"
	case MessageTypeClientSnapshotRequest:
		return "snapshot_request"
	case MessageTypeServerError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// Message represents a generic message for serialization/deserialization.
// Snapshot and purchase result payloads are flatbuffers; the rest are JSON.
type Message struct {
	ClientID uint32      `json:"clientID"`
	Type     MessageType `json:"type"`
	Payload  []byte      `json:"payload"`
}

type ClientLogin struct {
	Token string `json:"token"`
}

type ServerLoginSuccess struct {
	ClientID uint32 `json:"clientID"`
	Player   string `json:"player"`
}

type ServerLoginFailure struct {
	Reason string `json:"reason"`
}

// ClientCollect reports coin pickups. Each pickup is credited at the server's
// configured value; the client never names an amount.
type ClientCollect struct {
	Pickups int64 `json:"pickups" validate:"gte=0,lte=1000"`
}

type ClientPurchase struct {
	RequestID string `json:"requestID"`
	Key       string `json:"key"`
	Cost      int64  `json:"cost"`
}

type ClientSnapshotRequest struct {
	RequestID string `json:"requestID"`
}

type ServerCurrencyChanged struct {
	Player   string `json:"player"`
	Currency int64  `json:"currency"`
	Epoch    int64  `json:"epoch"`
	Version  uint64 `json:"version"`
}

// ServerError answers a request that could not be handled. RequestID is empty
// when the error is not tied to a request.
type ServerError struct {
	RequestID string `json:"requestID,omitempty"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

const (
	ErrorCodeNotReady   = "not_ready"
	ErrorCodeBadRequest = "bad_request"
	ErrorCodeInternal   = "internal"
)

// NewJSONMessage builds a message whose payload is v encoded as JSON.
func NewJSONMessage(clientID uint32, t MessageType, v interface{}) (*Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %v", t, err)
	}
	return &Message{
		ClientID: clientID,
		Type:     t,
		Payload:  payload,
	}, nil
}

// DecodeJSON unmarshals a JSON payload into v.
func (m *Message) DecodeJSON(v interface{}) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %v", m.Type, err)
	}
	return nil
}
