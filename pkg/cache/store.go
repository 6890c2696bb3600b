package cache

import (
	"context"
	"errors"
)

var (
	// ErrMiss indicates the requested key was not found, was expired,
	// was unreadable, or was rejected by the validator.
	ErrMiss = errors.New("cache miss")
)

// Validator inspects a cached payload at read time. A payload that fails
// validation is treated as absent, never as an error.
type Validator func(payload []byte) bool

// Store maps deterministic request keys to previously fetched JSON
// payloads. Implementations must treat every read-side failure (missing
// entry, expired entry, corrupt record, storage error, validator
// rejection) as ErrMiss, and must keep write failures non-fatal for the
// caller's fetch.
type Store interface {
	// Get returns the payload stored under key, or ErrMiss.
	// A nil validator accepts every payload.
	Get(ctx context.Context, key Key, validate Validator) ([]byte, error)

	// Put stores payload under key. A returned error only signals that
	// subsequent Gets for this key will miss; callers log and continue.
	Put(ctx context.Context, key Key, payload []byte) error
}
