// Package common defines the sentinel errors shared by the store, the render
// cache and the services built on top of them. Callers should use errors.Is
// to match these values; lower layers wrap them with operation detail.
package common

import "errors"

var (
	// Store-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrorDuplicateID = errors.New("duplicate id")
	ErrorStoreIO     = errors.New("store i/o error")
	ErrorStoreInit   = errors.New("store initialization failed")

	// Codec errors.
	ErrorCompression = errors.New("compression error")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
)

// Public reduces err to one of the errors that may be shown to an untrusted
// caller. Anything that is not a "not found" or "unauthorized" condition is
// reported as ErrorInternal so diagnostic detail never leaves the process.
func Public(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrorNotFound):
		return ErrorNotFound
	case errors.Is(err, ErrorUnauthorized):
		return ErrorUnauthorized
	default:
		return ErrorInternal
	}
}
