// Package apperr defines the sentinel errors shared across the engine.
package apperr

import "errors"

var (
	// ErrNotFound means the path exists in neither the base nor the overlay tree.
	ErrNotFound = errors.New("not found")
	// ErrNameCollision means a copy target already exists in the overlay tree.
	ErrNameCollision = errors.New("name collision")
	// ErrSchemaMissing means no schema is registered for the requested kind.
	// Callers degrade to opaque editable values; this is never fatal.
	ErrSchemaMissing = errors.New("schema missing")
	// ErrManifestInconsistency flags an overlay file present but unmanifested,
	// or manifested but missing on disk. Surfaced as a warning, never blocks load.
	ErrManifestInconsistency = errors.New("manifest inconsistency")
	// ErrInvalidMutation means the path or operation is incompatible with the
	// current schema or document shape. The document is left unmodified.
	ErrInvalidMutation = errors.New("invalid mutation")
	// ErrRecording means a command is already being assembled for the document.
	ErrRecording = errors.New("command already recording")
	// ErrNotRecording means commit/cancel was called with no command in flight.
	ErrNotRecording = errors.New("no command recording")
)
