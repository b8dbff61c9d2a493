package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

func testOwner() types.Pubkey {
	var p types.Pubkey
	for i := range p {
		p[i] = byte(i + 1)
	}
	return p
}

func sampleOrder() types.OrderIntent {
	return types.OrderIntent{
		OrderID:        12345,
		Owner:          testOwner(),
		Side:           types.Buy,
		Price:          185_500_000,
		Quantity:       1_000_000_000,
		Expiry:         1_700_000_000,
		BaseMint:       types.MustParsePubkey(types.TestnetSOL),
		QuoteMint:      types.MustParsePubkey(types.TestnetUSDC),
		MarketKind:     types.Perp,
		Leverage:       types.Some[uint64](10),
		PositionEffect: types.Some(types.Open),
		ReduceOnly:     false,
		MarginMode:     types.Some(types.Cross),
		MarginAmount:   types.Some[uint64](18_550_000),
		Liquidation:    false,
	}
}

func le64(v uint64) []byte {
	return binary.LittleEndian.AppendUint64(nil, v)
}

func TestEncodeOrderIntent_Layout(t *testing.T) {
	in := sampleOrder()
	got, err := EncodeOrderIntent(&in)
	require.NoError(t, err)
	require.Len(t, got, OrderIntentMaxSize)

	var want bytes.Buffer
	want.Write(le64(12345))
	want.Write(in.Owner[:])
	want.WriteByte(0) // Buy
	want.Write(le64(185_500_000))
	want.Write(le64(1_000_000_000))
	want.Write(le64(1_700_000_000))
	want.Write(in.BaseMint[:])
	want.Write(in.QuoteMint[:])
	want.WriteByte(0) // Perp
	want.WriteByte(1) // leverage some
	want.Write(le64(10))
	want.Write([]byte{1, 0}) // position_effect some(Open)
	want.WriteByte(0)        // reduce_only
	want.Write([]byte{1, 0}) // margin_mode some(Cross)
	want.WriteByte(1)        // margin_amount some
	want.Write(le64(18_550_000))
	want.WriteByte(0) // liquidation

	assert.Equal(t, want.Bytes(), got)
}

func TestEncodeOrderIntent_AbsentOptions(t *testing.T) {
	in := sampleOrder()
	in.Leverage = types.None[uint64]()
	in.PositionEffect = types.None[types.PositionEffect]()
	in.MarginMode = types.None[types.MarginMode]()
	in.MarginAmount = types.None[uint64]()
	in.ReduceOnly = true

	got, err := EncodeOrderIntent(&in)
	require.NoError(t, err)
	require.Len(t, got, OrderIntentMinSize)

	// tail after market_kind: leverage none, pe none, reduce_only, mm none, ma none, liquidation
	assert.Equal(t, []byte{0, 0, 1, 0, 0, 0}, got[130:])
}

func TestEncodeOrderIntent_EnumCodes(t *testing.T) {
	in := sampleOrder()
	in.Side = types.Sell
	in.PositionEffect = types.Some(types.Close)
	in.MarginMode = types.Some(types.Isolated)

	got, err := EncodeOrderIntent(&in)
	require.NoError(t, err)

	assert.Equal(t, byte(1), got[40], "side")
	assert.Equal(t, byte(0), got[129], "market_kind")
	assert.Equal(t, []byte{1, 1}, got[139:141], "position_effect")
	assert.Equal(t, []byte{1, 1}, got[142:144], "margin_mode")
}

func TestEncodeOrderIntent_MaxValues(t *testing.T) {
	in := sampleOrder()
	in.Price = ^uint64(0)
	in.Quantity = ^uint64(0)

	got, err := EncodeOrderIntent(&in)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0xff}, 16), got[41:57])
}

func TestEncodeOrderIntent_UnknownEnum(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.OrderIntent)
	}{
		{"side", func(o *types.OrderIntent) { o.Side = "" }},
		{"market kind", func(o *types.OrderIntent) { o.MarketKind = "spot" }},
		{"position effect", func(o *types.OrderIntent) { o.PositionEffect = types.Some(types.PositionEffect("flip")) }},
		{"margin mode", func(o *types.OrderIntent) { o.MarginMode = types.Some(types.MarginMode("portfolio")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sampleOrder()
			tt.mutate(&in)
			_, err := EncodeOrderIntent(&in)
			assert.True(t, errors.Is(err, types.ErrSerialization), "error = %v", err)
		})
	}
}

func TestEncodeOrderIntent_Deterministic(t *testing.T) {
	in := sampleOrder()
	a, err := EncodeOrderIntent(&in)
	require.NoError(t, err)
	b, err := EncodeOrderIntent(&in)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEncodeCancelIntent(t *testing.T) {
	in := types.CancelIntent{
		OrderID:   12345,
		Owner:     testOwner(),
		BaseMint:  types.MustParsePubkey(types.TestnetSOL),
		QuoteMint: types.MustParsePubkey(types.TestnetUSDC),
	}
	got, err := EncodeCancelIntent(&in)
	require.NoError(t, err)
	require.Len(t, got, CancelIntentSize)

	want := append(le64(12345), in.Owner[:]...)
	want = append(want, in.BaseMint[:]...)
	want = append(want, in.QuoteMint[:]...)
	assert.Equal(t, want, got)
}
