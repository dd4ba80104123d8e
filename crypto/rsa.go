package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
)

// RSAKeyBits is the modulus size used for the server's login keypair,
// matching the 1024-bit key the wire protocol's encryption request
// expects in its DER-encoded public key field.
const RSAKeyBits = 1024

// KeyPair holds the server's RSA keypair, generated once at startup and
// used only during the login handshake to decrypt the client's shared
// secret and verify token.
type KeyPair struct {
	private *rsa.PrivateKey
}

// GenerateKeyPair creates a new RSA keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, RSAKeyBits)
	if err != nil {
		return nil, err
	}
	return &KeyPair{private: priv}, nil
}

// PublicKeyDER returns the ASN.1 DER encoding of the public key, the form
// sent to the client in the encryption request packet.
func (kp *KeyPair) PublicKeyDER() ([]byte, error) {
	return x509.MarshalPKIXPublicKey(&kp.private.PublicKey)
}

// Decrypt decrypts a PKCS#1 v1.5-padded value — the shared secret or
// verify token the client encrypted with the server's public key in its
// encryption response packet.
func (kp *KeyPair) Decrypt(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, kp.private, ciphertext)
}
