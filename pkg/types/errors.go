package types

import (
	"errors"
	"fmt"
)

// Error kinds returned by the SDK. Callers match them with errors.Is; every
// error produced on the signing/submission path wraps exactly one of these.
var (
	ErrKey               = errors.New("keypair error")
	ErrSerialization     = errors.New("serialization error")
	ErrSigning           = errors.New("signing error")
	ErrConnection        = errors.New("continuum connection error")
	ErrSubmission        = errors.New("continuum submission error")
	ErrRPC               = errors.New("rpc error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidPubkey     = errors.New("invalid pubkey")
	ErrDecimalConversion = errors.New("decimal conversion error")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrAirdrop           = errors.New("airdrop error")
	ErrConfig            = errors.New("configuration error")
)

// SubmissionError is a rejection reported by the sequencer.
// Code is the remote status code name (e.g. "InvalidArgument").
type SubmissionError struct {
	Code    string
	Message string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSubmission, e.Code, e.Message)
}

func (e *SubmissionError) Unwrap() error {
	return ErrSubmission
}
