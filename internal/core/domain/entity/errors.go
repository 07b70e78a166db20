package entity

import "errors"

// Sentinel errors for the taxonomy in spec.md §7. Adapters wrap these
// with context via fmt.Errorf("...: %w", Err...); callers compare with
// errors.Is.
var (
	ErrNotFound      = errors.New("azrael: body not found")
	ErrConflict      = errors.New("azrael: version conflict")
	ErrBackpressure  = errors.New("azrael: command queue full")
	ErrWorkerTimeout = errors.New("azrael: worker timed out")
	ErrWorkerFailed  = errors.New("azrael: worker returned an error")
	ErrShutdown      = errors.New("azrael: orchestrator is shutting down")
	ErrValidation    = errors.New("azrael: invalid command payload")
	ErrUnknownShape  = errors.New("azrael: unknown collision shape tag")
	ErrUnknownTemplate = errors.New("azrael: unknown spawn template")
)
