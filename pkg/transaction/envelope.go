package transaction

import (
	"encoding/json"
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"

	"github.com/uhyunpark/fermitrade/pkg/types"
	"github.com/uhyunpark/fermitrade/pkg/util"
)

const (
	PayloadVersion   = "1.0"
	PayloadPrefix    = "FRM_v" + PayloadVersion + ":"
	LocalSequencerID = "fermi_trade_sdk"
)

// Envelope is the transport transaction handed to the sequencer
type Envelope struct {
	TxID      string
	Payload   []byte
	Signature []byte // raw 64 bytes
	PublicKey []byte // raw 32 bytes
	Nonce     uint64 // order id
	Timestamp uint64 // unix microseconds
}

// Builder wraps signed artifacts into envelopes. The clock supplies the
// microsecond timestamp used for the tx id and timestamp_ms.
type Builder struct {
	clock util.Clock
	log   *zap.Logger
}

func NewBuilder(clock util.Clock, logger *zap.Logger) *Builder {
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{clock: clock, log: logger}
}

// BuildOrder wraps a signed order
func (b *Builder) BuildOrder(s *SignedOrder) (*Envelope, error) {
	request, err := s.JSON()
	if err != nil {
		return nil, err
	}
	return b.build(s.Kind(), s.OrderID, request, s.Signature[:], s.OwnerBytes[:])
}

// BuildCancel wraps a signed cancel
func (b *Builder) BuildCancel(s *SignedCancel) (*Envelope, error) {
	request, err := s.JSON()
	if err != nil {
		return nil, err
	}
	return b.build(s.Kind(), s.OrderID, request, s.Signature[:], s.OwnerBytes[:])
}

func (b *Builder) build(kind types.IntentKind, orderID uint64, request, signature, owner []byte) (*Envelope, error) {
	ts := util.NowMicros(b.clock)

	payload, err := BuildPayload(kind, request, ts)
	if err != nil {
		return nil, err
	}

	env := &Envelope{
		TxID:      TxID(kind, orderID, ts),
		Payload:   payload,
		Signature: append([]byte(nil), signature...),
		PublicKey: append([]byte(nil), owner...),
		Nonce:     orderID,
		Timestamp: ts,
	}

	b.log.Debug("envelope_built",
		zap.String("tx_id", env.TxID),
		zap.Int("payload_len", len(env.Payload)),
		zap.ByteString("payload", env.Payload))

	return env, nil
}

// TxID formats frm_<kind>_<order id>_<micros>
func TxID(kind types.IntentKind, orderID, tsMicros uint64) string {
	return fmt.Sprintf("frm_%s_%d_%d", kind, orderID, tsMicros)
}

// BuildPayload renders FRM_v1.0:<json>. The request object's keys keep their
// order and raw number text; local_sequencer_id and timestamp_ms are set,
// type is set only when the request has none, and version leads the object.
func BuildPayload(kind types.IntentKind, request []byte, tsMicros uint64) ([]byte, error) {
	fields := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(request, fields); err != nil {
		return nil, fmt.Errorf("%w: request is not a JSON object: %v", types.ErrSerialization, err)
	}

	fields.Set("local_sequencer_id", quote(LocalSequencerID))
	if _, ok := fields.Get("type"); !ok {
		fields.Set("type", quote(string(kind)))
	}
	fields.Set("timestamp_ms", quote(strconv.FormatUint(tsMicros/1000, 10)))

	top := orderedmap.New[string, json.RawMessage]()
	top.Set("version", quote(PayloadVersion))
	for pair := fields.Oldest(); pair != nil; pair = pair.Next() {
		top.Set(pair.Key, pair.Value)
	}

	body, err := json.Marshal(top)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSerialization, err)
	}

	payload := make([]byte, 0, len(PayloadPrefix)+len(body))
	payload = append(payload, PayloadPrefix...)
	return append(payload, body...), nil
}

func quote(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
