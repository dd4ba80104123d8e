// Package protoerr defines the sentinel error kinds used across the
// connection handler, session, and world packages, following the
// teacher's habit of pairing a sentinel with an Is* classifier rather
// than a bespoke error type per package.
package protoerr

import "github.com/NebulousLabs/errors"

var (
	// ErrProtocol indicates a malformed frame or a packet that is not
	// valid in the session's current protocol state.
	ErrProtocol = errors.New("")

	// ErrCrypto indicates a failed verify-token check or a shared-secret
	// decryption failure during the login handshake.
	ErrCrypto = errors.New("")

	// ErrIO indicates a socket read/write failure, including a stalled
	// connection that exceeded its I/O deadline.
	ErrIO = errors.New("")

	// ErrSerialization indicates a persisted column blob with the wrong
	// decompressed length, or any other malformed on-disk encoding.
	ErrSerialization = errors.New("")

	// ErrNotFound indicates a requested resource (most commonly a
	// dimension generator) has no registered implementation.
	ErrNotFound = errors.New("")

	// ErrInternalPanic indicates a task recovered from a panic; the
	// original panic value is extended onto this sentinel.
	ErrInternalPanic = errors.New("")
)

// IsProtocolFault reports whether err is, or wraps, ErrProtocol.
func IsProtocolFault(err error) bool {
	return errors.Contains(err, ErrProtocol)
}

// IsCryptoFault reports whether err is, or wraps, ErrCrypto.
func IsCryptoFault(err error) bool {
	return errors.Contains(err, ErrCrypto)
}

// IsIOFault reports whether err is, or wraps, ErrIO.
func IsIOFault(err error) bool {
	return errors.Contains(err, ErrIO)
}

// IsSerializationFault reports whether err is, or wraps, ErrSerialization.
func IsSerializationFault(err error) bool {
	return errors.Contains(err, ErrSerialization)
}

// IsNotFoundFault reports whether err is, or wraps, ErrNotFound.
func IsNotFoundFault(err error) bool {
	return errors.Contains(err, ErrNotFound)
}
