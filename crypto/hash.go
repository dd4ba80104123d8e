package crypto

import "crypto/sha1"

// ServerIDHash computes the login handshake's server-ID digest: SHA-1
// over the (empty) server ID string, the shared secret, and the DER
// public key, interpreted as a signed big-endian integer and rendered in
// hex by the caller before it is sent to the session-server join check.
// The wire protocol's quirky hex rendering (a leading "-" for a negative
// two's-complement digest, no padding) is a formatting concern, not a
// hashing one, so it lives in the session package alongside the rest of
// the join-check flow.
func ServerIDHash(serverID string, sharedSecret, publicKeyDER []byte) []byte {
	h := sha1.New()
	h.Write([]byte(serverID))
	h.Write(sharedSecret)
	h.Write(publicKeyDER)
	return h.Sum(nil)
}
