package transaction

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/fermitrade/pkg/types"
)

func TestVerifyOrderRequest(t *testing.T) {
	signer := newTestSigner(t)
	signed, err := SignPerpOrder(signer, sampleParams())
	require.NoError(t, err)

	data, err := signed.JSON()
	require.NoError(t, err)
	req, err := ParseOrderRequest(data)
	require.NoError(t, err)

	v := NewVerifier()
	owner, ok, err := v.VerifyOrderRequest(req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, signer.Pubkey(), owner)

	assert.NoError(t, v.VerifySignedOrder(signed))
}

func TestVerifyOrderRequestTampered(t *testing.T) {
	signer := newTestSigner(t)
	signed, err := SignPerpOrder(signer, sampleParams())
	require.NoError(t, err)

	req := signed.Request
	req.Intent.Price++

	_, ok, err := NewVerifier().VerifyOrderRequest(&req)
	assert.False(t, ok)
	assert.True(t, errors.Is(err, types.ErrSigning))
}

func TestVerifyRejectsCrossCategorySignature(t *testing.T) {
	signer := newTestSigner(t)
	cancel, err := SignCancel(signer, 12345, testBase, testQuote)
	require.NoError(t, err)

	// Reuse a cancel signature on an order for the same id
	order, err := SignPerpOrder(signer, sampleParams())
	require.NoError(t, err)
	req := order.Request
	req.Signature = cancel.Request.Signature

	_, ok, err := NewVerifier().VerifyOrderRequest(&req)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestVerifyCancelRequest(t *testing.T) {
	signer := newTestSigner(t)
	signed, err := SignCancel(signer, 99, testBase, testQuote)
	require.NoError(t, err)

	data, err := signed.JSON()
	require.NoError(t, err)
	req, err := ParseCancelRequest(data)
	require.NoError(t, err)

	owner, ok, err := NewVerifier().VerifyCancelRequest(req)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, signer.Pubkey(), owner)

	req.OrderID = 100
	_, ok, _ = NewVerifier().VerifyCancelRequest(req)
	assert.False(t, ok)
}

func TestVerifyMalformedSignature(t *testing.T) {
	signer := newTestSigner(t)
	signed, err := SignCancel(signer, 1, testBase, testQuote)
	require.NoError(t, err)

	tests := []struct {
		name string
		sig  string
	}{
		{"not hex", "zz"},
		{"short", "abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := signed.Request
			req.Signature = tt.sig
			_, ok, err := NewVerifier().VerifyCancelRequest(&req)
			assert.False(t, ok)
			assert.True(t, errors.Is(err, types.ErrSigning))
		})
	}

	// 0x prefix is tolerated
	req := signed.Request
	req.Signature = "0x" + req.Signature
	_, ok, err := NewVerifier().VerifyCancelRequest(&req)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestParseRequestErrors(t *testing.T) {
	_, err := ParseOrderRequest([]byte("{"))
	assert.True(t, errors.Is(err, types.ErrSerialization))

	_, err = ParseOrderRequest([]byte(`{"intent":{}}`))
	assert.True(t, errors.Is(err, types.ErrSerialization))

	_, err = ParseCancelRequest([]byte(`{"order_id":1}`))
	assert.True(t, errors.Is(err, types.ErrSerialization))
}
