// Package crypto supplies the cryptographic primitives required by the
// login handshake: a CSPRNG for verify tokens, server-ID strings, and
// world seeds; RSA keypair generation and decryption for the shared-secret
// exchange; and the AES-128/CFB-8 stream cipher pair used once encryption
// is enabled.
package crypto

import "github.com/NebulousLabs/fastrand"

// Read fills b completely with cryptographically secure random bytes. It
// is used for verify tokens, server-ID strings, and CSPRNG-sourced world
// seeds when no explicit seed is configured.
func Read(b []byte) { fastrand.Read(b) }

// Bytes returns n cryptographically secure random bytes.
func Bytes(n int) []byte { return fastrand.Bytes(n) }

// Uint64 returns a cryptographically secure random uint64, used to seed a
// world when no seed setting is configured.
func Uint64() uint64 {
	b := Bytes(8)
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}
