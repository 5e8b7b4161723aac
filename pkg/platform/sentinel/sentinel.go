package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Document stores, object storage and
// the revocation list return these (optionally wrapped) so services can
// translate them into domain errors.
//
//   - ErrNotFound: document or object does not exist
//   - ErrConflict: a document with the same id or unique key already exists
//   - ErrInvalidState: entity is in the wrong state for the requested operation
//   - ErrUnavailable: backing service temporarily unavailable
//   - ErrRevisionMismatch: optimistic write lost a race and exhausted its retries
//
// For validation errors (bad input, missing fields) use pkg/domain-errors directly.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrUnavailable      = errors.New("unavailable")
	ErrRevisionMismatch = errors.New("revision mismatch")
)
