package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for provider operations. The coordinator and repositories
// branch on these with errors.Is; everything else is treated as unknown.
var (
	// ErrTimeout indicates a request exceeded its deadline.
	ErrTimeout = errors.New("provider request timed out")

	// ErrUnreachable indicates the provider could not be reached at all.
	ErrUnreachable = errors.New("provider is unreachable")

	// ErrAuthFailed indicates the provider rejected the credentials. This is
	// the one class callers are expected to surface, since it breaks every
	// related repository, not just the guide.
	ErrAuthFailed = errors.New("provider rejected credentials")

	// ErrMalformedDocument indicates a payload that could not be parsed.
	// Always absorbed into an empty or partial result, never surfaced.
	ErrMalformedDocument = errors.New("malformed provider document")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")
)

// classifyStatus maps an HTTP status code onto the error taxonomy.
func classifyStatus(code int) error {
	switch {
	case code == 401 || code == 403:
		return fmt.Errorf("%w (status %d)", ErrAuthFailed, code)
	case code == 404:
		return fmt.Errorf("%w (status %d)", ErrNotFound, code)
	default:
		return fmt.Errorf("unexpected provider status %d", code)
	}
}

// classifyTransport maps a transport-level error onto the taxonomy.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

// Transient reports whether the error is worth retrying on a short lookup.
func Transient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnreachable)
}
