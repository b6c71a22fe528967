package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and upstream clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique constraint hit (e.g. duplicate external id)
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: store or upstream temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
