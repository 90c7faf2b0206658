package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers branch on these with IsKind; the
// wrapped cause carries the upstream detail.
var (
	// ErrFilingNotFound: the registry has no filing with the given id.
	ErrFilingNotFound = errors.New("filing not found")

	// ErrInvalidInput: the request itself is malformed (empty question,
	// missing file, bad topk).
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig: startup configuration is unusable. Fail fast, never
	// fall back silently.
	ErrConfig = errors.New("invalid configuration")

	// ErrValidation: a structured model response did not match the
	// required schema. Retryable with a corrective message.
	ErrValidation = errors.New("response validation failed")

	// ErrTemporary: a transient upstream failure (timeouts, 5xx,
	// connection resets). Retryable.
	ErrTemporary = errors.New("temporary failure")
)

// WrapError attaches an operation name and an error kind to a cause.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return fmt.Errorf("%s: %w", operation, kind)
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

// IsKind reports whether err carries the given sentinel kind.
func IsKind(err, kind error) bool {
	return errors.Is(err, kind)
}
