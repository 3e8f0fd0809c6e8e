package bridge

import "errors"

// WebSocket close codes used when refusing a carrier connection.
// They sit in the private-use range so the carrier's logs can tell
// the rejection reasons apart.
const (
	// CloseCodeBadToken is sent when the shared-secret token does not
	// match.
	CloseCodeBadToken = 4401

	// CloseCodeEnvMismatch is sent when the start message names a
	// different deployment environment.
	CloseCodeEnvMismatch = 4403

	// CloseCodeCapacity is sent when all capacity tickets are in use.
	CloseCodeCapacity = 4429
)

var (
	// ErrBadToken rejects a connection whose token does not match the
	// configured shared secret.
	ErrBadToken = errors.New("bridge: authorization token mismatch")

	// ErrEnvMismatch rejects a connection for the wrong environment.
	ErrEnvMismatch = errors.New("bridge: environment mismatch")

	// ErrCapacityExceeded rejects a connection when no capacity
	// ticket is free. No ticket is consumed.
	ErrCapacityExceeded = errors.New("bridge: capacity exceeded")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("bridge: session closed")
)

// closeCodeFor maps a rejection reason to its close code.
func closeCodeFor(err error) int {
	switch {
	case errors.Is(err, ErrBadToken):
		return CloseCodeBadToken
	case errors.Is(err, ErrEnvMismatch):
		return CloseCodeEnvMismatch
	case errors.Is(err, ErrCapacityExceeded):
		return CloseCodeCapacity
	}
	return 1011 // internal error
}
