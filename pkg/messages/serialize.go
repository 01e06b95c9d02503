package messages

import (
	"fmt"

	messagefb "github.com/cbodonnell/progsync/flatbuffers/message"
	progressionfb "github.com/cbodonnell/progsync/flatbuffers/progression"
	"github.com/cbodonnell/progsync/pkg/progression"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/klauspost/compress/zstd"
)

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd writer: %v", err))
	}
	decoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(1<<20))
	if err != nil {
		panic(fmt.Sprintf("failed to create zstd reader: %v", err))
	}
}

// SerializeMessage encodes m as a flatbuffer and compresses it with zstd.
func SerializeMessage(m *Message) ([]byte, error) {
	b, err := SerializeMessageFlatbuffer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %v", err)
	}
	return encoder.EncodeAll(b, nil), nil
}

func DeserializeMessage(data []byte) (*Message, error) {
	b, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress message: %v", err)
	}

	message, err := DeserializeMessageFlatbuffer(b)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return message, nil
}

func SerializeMessageFlatbuffer(m *Message) ([]byte, error) {
	builder := flatbuffers.NewBuilder(len(m.Payload) + 32)

	payload := builder.CreateByteVector(m.Payload)

	messagefb.MessageStart(builder)
	messagefb.MessageAddClientId(builder, m.ClientID)
	messagefb.MessageAddType(builder, byte(m.Type))
	messagefb.MessageAddPayload(builder, payload)
	messageOffset := messagefb.MessageEnd(builder)
	builder.Finish(messageOffset)

	return builder.FinishedBytes(), nil
}

func DeserializeMessageFlatbuffer(b []byte) (m *Message, err error) {
	// a truncated buffer makes the generated accessors index out of range
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed message: %v", r)
		}
	}()
	if len(b) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("message too short: %d bytes", len(b))
	}
	messageFlatbuffer := messagefb.GetRootAsMessage(b, 0)
	payload := messageFlatbuffer.PayloadBytes()
	m = &Message{
		ClientID: messageFlatbuffer.ClientId(),
		Type:     MessageType(messageFlatbuffer.Type()),
		Payload:  append([]byte(nil), payload...),
	}
	return m, nil
}

func SerializeSnapshot(snapshot progression.Snapshot) ([]byte, error) {
	builder := flatbuffers.NewBuilder(0)
	offset := SerializeSnapshotFlatbuffer(builder, snapshot)
	builder.Finish(offset)
	return builder.FinishedBytes(), nil
}

func DeserializeSnapshot(b []byte) (snapshot progression.Snapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed snapshot: %v", r)
		}
	}()
	if len(b) < flatbuffers.SizeUOffsetT {
		return progression.Snapshot{}, fmt.Errorf("snapshot too short: %d bytes", len(b))
	}
	return SnapshotFlatbufferToSnapshot(progressionfb.GetRootAsSnapshot(b, 0))
}

// SerializeSnapshotFlatbuffer writes every upgrade level in display order.
func SerializeSnapshotFlatbuffer(builder *flatbuffers.Builder, snapshot progression.Snapshot) flatbuffers.UOffsetT {
	keys := progression.UpgradeKeys()
	levelOffsets := make([]flatbuffers.UOffsetT, 0, len(keys))
	for _, k := range keys {
		key := builder.CreateString(string(k))
		progressionfb.LevelStart(builder)
		progressionfb.LevelAddKey(builder, key)
		progressionfb.LevelAddValue(builder, snapshot.Level(k))
		levelOffsets = append(levelOffsets, progressionfb.LevelEnd(builder))
	}
	progressionfb.SnapshotStartLevelsVector(builder, len(levelOffsets))
	for i := len(levelOffsets) - 1; i >= 0; i-- {
		builder.PrependUOffsetT(levelOffsets[i])
	}
	levels := builder.EndVector(len(levelOffsets))

	player := builder.CreateString(snapshot.Player())

	progressionfb.SnapshotStart(builder)
	progressionfb.SnapshotAddPlayer(builder, player)
	progressionfb.SnapshotAddEpoch(builder, snapshot.Epoch())
	progressionfb.SnapshotAddVersion(builder, snapshot.Version())
	progressionfb.SnapshotAddCurrency(builder, snapshot.Currency())
	progressionfb.SnapshotAddLevels(builder, levels)
	return progressionfb.SnapshotEnd(builder)
}

func SnapshotFlatbufferToSnapshot(fb *progressionfb.Snapshot) (progression.Snapshot, error) {
	state := progression.NewState()
	state.Currency = fb.Currency()
	level := &progressionfb.Level{}
	for i := 0; i < fb.LevelsLength(); i++ {
		if !fb.Levels(level, i) {
			return progression.Snapshot{}, fmt.Errorf("failed to get level at index %d", i)
		}
		key, err := progression.ParseKey(string(level.Key()))
		if err != nil {
			return progression.Snapshot{}, err
		}
		if !key.IsUpgrade() {
			return progression.Snapshot{}, fmt.Errorf("%s is not an upgrade key", key)
		}
		state.Set(key, level.Value())
	}
	return progression.NewSnapshot(string(fb.Player()), fb.Epoch(), fb.Version(), state), nil
}

// PurchaseResult is a purchase decision addressed to the request that caused it.
type PurchaseResult struct {
	RequestID string
	progression.PurchaseResult
}

func SerializePurchaseResult(result PurchaseResult) ([]byte, error) {
	builder := flatbuffers.NewBuilder(0)
	snapshot := SerializeSnapshotFlatbuffer(builder, result.Snapshot)
	requestID := builder.CreateString(result.RequestID)
	reason := builder.CreateString(string(result.Reason))

	progressionfb.PurchaseResultStart(builder)
	progressionfb.PurchaseResultAddRequestId(builder, requestID)
	progressionfb.PurchaseResultAddAccepted(builder, result.Accepted)
	progressionfb.PurchaseResultAddReason(builder, reason)
	progressionfb.PurchaseResultAddSnapshot(builder, snapshot)
	builder.Finish(progressionfb.PurchaseResultEnd(builder))
	return builder.FinishedBytes(), nil
}

func DeserializePurchaseResult(b []byte) (result PurchaseResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed purchase result: %v", r)
		}
	}()
	if len(b) < flatbuffers.SizeUOffsetT {
		return PurchaseResult{}, fmt.Errorf("purchase result too short: %d bytes", len(b))
	}
	fb := progressionfb.GetRootAsPurchaseResult(b, 0)
	result.RequestID = string(fb.RequestId())
	result.Accepted = fb.Accepted()
	result.Reason = progression.RejectReason(fb.Reason())
	snapshotFlatbuffer := fb.Snapshot(nil)
	if snapshotFlatbuffer == nil {
		return PurchaseResult{}, fmt.Errorf("purchase result %s has no snapshot", result.RequestID)
	}
	result.Snapshot, err = SnapshotFlatbufferToSnapshot(snapshotFlatbuffer)
	if err != nil {
		return PurchaseResult{}, fmt.Errorf("failed to deserialize purchase result snapshot: %v", err)
	}
	return result, nil
}
