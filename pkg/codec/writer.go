// Package codec produces the canonical binary layout of order and cancel
// intents. The layout is borsh-compatible and must match the sequencer's
// schema byte for byte:
//
//	u64     8 bytes little-endian
//	enum    1 byte discriminant from an explicit code table
//	pubkey  32 raw bytes
//	bool    1 byte, 0 or 1
//	option  1 tag byte (0 = none, 1 = some) followed by the value when some
package codec

import (
	"encoding/binary"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

// Enum is a value with a fixed single-byte discriminant
type Enum interface {
	Code() (uint8, error)
}

const (
	optionNone uint8 = 0
	optionSome uint8 = 1
)

// Writer appends canonical values to a byte buffer
type Writer struct {
	buf []byte
}

func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteU64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) WritePubkey(p types.Pubkey) {
	w.buf = append(w.buf, p[:]...)
}

func (w *Writer) WriteEnum(e Enum) error {
	code, err := e.Code()
	if err != nil {
		return err
	}
	w.WriteU8(code)
	return nil
}

// Bytes returns the encoded buffer. The writer must not be used afterwards.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// WriteOption writes the presence tag and, when present, the value via write
func WriteOption[T any](w *Writer, o types.Option[T], write func(*Writer, T) error) error {
	v, ok := o.Get()
	if !ok {
		w.WriteU8(optionNone)
		return nil
	}
	w.WriteU8(optionSome)
	return write(w, v)
}

func writeU64(w *Writer, v uint64) error {
	w.WriteU64(v)
	return nil
}

func writeEnum[E Enum](w *Writer, e E) error {
	return w.WriteEnum(e)
}
