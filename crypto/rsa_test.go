package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyPairDecryptRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	der, err := kp.PublicKeyDER()
	require.NoError(t, err)
	require.NotEmpty(t, der)

	secret := Bytes(16)
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, &kp.private.PublicKey, secret)
	require.NoError(t, err)

	decrypted, err := kp.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, secret, decrypted)
}

func TestGenerateKeyPairUnique(t *testing.T) {
	a, err := GenerateKeyPair()
	require.NoError(t, err)
	b, err := GenerateKeyPair()
	require.NoError(t, err)

	aDER, err := a.PublicKeyDER()
	require.NoError(t, err)
	bDER, err := b.PublicKeyDER()
	require.NoError(t, err)
	require.NotEqual(t, aDER, bDER)
}
