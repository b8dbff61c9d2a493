package sequencer

import (
	"fmt"
	"math"

	"google.golang.org/grpc/encoding"
	"google.golang.org/protobuf/encoding/protowire"
)

// Service and method names of continuum.sequencer.v1
const (
	ServiceName             = "continuum.sequencer.v1.SequencerService"
	SubmitTransactionMethod = "/" + ServiceName + "/SubmitTransaction"
	GetStatusMethod         = "/" + ServiceName + "/GetStatus"
)

// Message is a protobuf message with a hand-written wire form
type Message interface {
	MarshalProto() []byte
	UnmarshalProto(b []byte) error
}

// Transaction field numbers
const (
	txFieldTxID      protowire.Number = 1
	txFieldPayload   protowire.Number = 2
	txFieldSignature protowire.Number = 3
	txFieldPublicKey protowire.Number = 4
	txFieldNonce     protowire.Number = 5
	txFieldTimestamp protowire.Number = 6
)

// Transaction mirrors continuum.sequencer.v1.Transaction
type Transaction struct {
	TxID      string
	Payload   []byte
	Signature []byte
	PublicKey []byte
	Nonce     uint64
	Timestamp uint64
}

func (m *Transaction) MarshalProto() []byte {
	var b []byte
	if m.TxID != "" {
		b = protowire.AppendTag(b, txFieldTxID, protowire.BytesType)
		b = protowire.AppendString(b, m.TxID)
	}
	if len(m.Payload) > 0 {
		b = protowire.AppendTag(b, txFieldPayload, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Payload)
	}
	if len(m.Signature) > 0 {
		b = protowire.AppendTag(b, txFieldSignature, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Signature)
	}
	if len(m.PublicKey) > 0 {
		b = protowire.AppendTag(b, txFieldPublicKey, protowire.BytesType)
		b = protowire.AppendBytes(b, m.PublicKey)
	}
	if m.Nonce != 0 {
		b = protowire.AppendTag(b, txFieldNonce, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Nonce)
	}
	if m.Timestamp != 0 {
		b = protowire.AppendTag(b, txFieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Timestamp)
	}
	return b
}

func (m *Transaction) UnmarshalProto(b []byte) error {
	*m = Transaction{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == txFieldTxID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.TxID = v
			return n, nil
		case num == txFieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			m.Payload = clone(v)
			return n, nil
		case num == txFieldSignature && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			m.Signature = clone(v)
			return n, nil
		case num == txFieldPublicKey && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			m.PublicKey = clone(v)
			return n, nil
		case num == txFieldNonce && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Nonce = v
			return n, nil
		case num == txFieldTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Timestamp = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// SubmitTransactionRequest wraps one transaction
type SubmitTransactionRequest struct {
	Transaction *Transaction
}

func (m *SubmitTransactionRequest) MarshalProto() []byte {
	var b []byte
	if m.Transaction != nil {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Transaction.MarshalProto())
	}
	return b
}

func (m *SubmitTransactionRequest) UnmarshalProto(b []byte) error {
	*m = SubmitTransactionRequest{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 && typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			tx := &Transaction{}
			if err := tx.UnmarshalProto(v); err != nil {
				return 0, fmt.Errorf("transaction: %w", err)
			}
			m.Transaction = tx
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// SubmitTransactionResponse is the sequencer's acceptance receipt
type SubmitTransactionResponse struct {
	SequenceNumber uint64
	ExpectedTick   uint64
	TxHash         string
}

func (m *SubmitTransactionResponse) MarshalProto() []byte {
	var b []byte
	if m.SequenceNumber != 0 {
		b = protowire.AppendTag(b, 1, protowire.VarintType)
		b = protowire.AppendVarint(b, m.SequenceNumber)
	}
	if m.ExpectedTick != 0 {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, m.ExpectedTick)
	}
	if m.TxHash != "" {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, m.TxHash)
	}
	return b
}

func (m *SubmitTransactionResponse) UnmarshalProto(b []byte) error {
	*m = SubmitTransactionResponse{}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.SequenceNumber = v
			return n, nil
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.ExpectedTick = v
			return n, nil
		case num == 3 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.TxHash = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// GetStatusRequest has no fields
type GetStatusRequest struct{}

func (m *GetStatusRequest) MarshalProto() []byte { return nil }

func (m *GetStatusRequest) UnmarshalProto(b []byte) error {
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// GetStatusResponse carries the sequencer's aggregate counters
type GetStatusResponse struct {
	CurrentTick           uint64
	TotalTransactions     uint64
	PendingTransactions   uint64
	UptimeSeconds         uint64
	TransactionsPerSecond float64
}

func (m *GetStatusResponse) MarshalProto() []byte {
	var b []byte
	for i, v := range []uint64{m.CurrentTick, m.TotalTransactions, m.PendingTransactions, m.UptimeSeconds} {
		if v != 0 {
			b = protowire.AppendTag(b, protowire.Number(i+1), protowire.VarintType)
			b = protowire.AppendVarint(b, v)
		}
	}
	if m.TransactionsPerSecond != 0 {
		b = protowire.AppendTag(b, 5, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(m.TransactionsPerSecond))
	}
	return b
}

func (m *GetStatusResponse) UnmarshalProto(b []byte) error {
	*m = GetStatusResponse{}
	counters := []*uint64{&m.CurrentTick, &m.TotalTransactions, &m.PendingTransactions, &m.UptimeSeconds}
	return walkFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num >= 1 && num <= 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			*counters[num-1] = v
			return n, nil
		case num == 5 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			m.TransactionsPerSecond = math.Float64frombits(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
}

// walkFields iterates the tagged fields of b. fn consumes one field value
// and returns the byte count, or a negative protowire error code.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// Codec is a grpc codec for Message values. It is forced per call rather
// than registered, and reports "proto" so peers see application/grpc+proto.
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Name() string { return "proto" }

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("sequencer codec: unsupported type %T", v)
	}
	return m.MarshalProto(), nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("sequencer codec: unsupported type %T", v)
	}
	return m.UnmarshalProto(data)
}
