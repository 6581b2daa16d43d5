// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package types

import "errors"

// Kind classifies an error by the subsystem that raised it, so callers
// (chainmgr, the API layer, cmd/qnetd's exit codes) can react without
// string-matching error messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindState
	KindStorage
	KindNetwork
	KindConsensus
	KindKeyCorruption
	KindSchemaMismatch
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindStorage:
		return "storage"
	case KindNetwork:
		return "network"
	case KindConsensus:
		return "consensus"
	case KindKeyCorruption:
		return "key_corruption"
	case KindSchemaMismatch:
		return "schema_mismatch"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so it can be classified
// without inspecting its message.
type Error struct {
	Kind Kind
	Op   string // the operation that failed, e.g. "chainmgr.Apply"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Kind.String() + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func ValidationError(op string, err error) *Error    { return newErr(KindValidation, op, err) }
func StateError(op string, err error) *Error         { return newErr(KindState, op, err) }
func StorageError(op string, err error) *Error       { return newErr(KindStorage, op, err) }
func NetworkError(op string, err error) *Error       { return newErr(KindNetwork, op, err) }
func ConsensusError(op string, err error) *Error     { return newErr(KindConsensus, op, err) }
func KeyCorruptionError(op string, err error) *Error { return newErr(KindKeyCorruption, op, err) }
func SchemaMismatchError(op string, err error) *Error {
	return newErr(KindSchemaMismatch, op, err)
}

// IsKind reports whether err (or something it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	for err != nil {
		if as, ok := err.(*Error); ok {
			e = as
			break
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = unwrapper.Unwrap()
	}
	return e != nil && e.Kind == k
}

// Sentinel errors for conditions with no useful wrapped cause.
var (
	ErrBlockNotFound     = errors.New("block not found")
	ErrTxNotFound        = errors.New("transaction not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrInvalidBlock      = errors.New("invalid block")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrNoQuorum          = errors.New("no quorum")
	ErrNotProducer       = errors.New("node is not the scheduled producer")
	ErrNotValidator      = errors.New("not a registered validator")
	ErrTimeout           = errors.New("operation timeout")
	ErrNotInitialized    = errors.New("engine not initialized")
	ErrMempoolFull       = errors.New("mempool full")
	ErrNonceTooLow       = errors.New("nonce too low")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAlreadyJailed     = errors.New("node already jailed")
)
