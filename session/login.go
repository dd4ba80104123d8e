package session

import (
	"bytes"
	"math/big"

	"github.com/NebulousLabs/errors"
	"github.com/google/uuid"

	"github.com/nebulouslabs/blockserver/crypto"
	"github.com/nebulouslabs/blockserver/protocol"
	"github.com/nebulouslabs/blockserver/protoerr"
)

// ErrVerifyTokenMismatch is the disconnect reason when the client's
// encryption response echoes back a verify token that does not match
// what the server sent.
var ErrVerifyTokenMismatch = errors.Extend(errors.New("verify token mismatch"), protoerr.ErrCrypto)

// serverIDAlphabet matches the printable-ASCII alphabet the original
// authentication module draws its random server-ID characters from.
const serverIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// randomServerID generates a fresh ~20-character server-ID string, drawn
// per login rather than read from configuration, the way the original
// authentication module generates one per handshake instead of reusing a
// fixed value.
func randomServerID() string {
	raw := crypto.Bytes(20)
	id := make([]byte, len(raw))
	for i, b := range raw {
		id[i] = serverIDAlphabet[int(b)%len(serverIDAlphabet)]
	}
	return string(id)
}

func (s *Session) handleLoginStart(ev *protocol.ReceiveEvent) error {
	ls, err := protocol.DecodeLoginStart(protocol.NewReader(ev.Payload))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.username = ls.Username
	s.mu.Unlock()

	if s.cfg.KeyPair == nil {
		// Encryption disabled: skip straight to LoginSuccess.
		return s.finishLogin(uuidForUsername(ls.Username))
	}

	der, err := s.cfg.KeyPair.PublicKeyDER()
	if err != nil {
		return err
	}
	serverID := randomServerID()
	token := crypto.Bytes(16)
	s.mu.Lock()
	s.serverID = serverID
	s.verifyToken = token
	s.mu.Unlock()

	s.SendPacket(&protocol.EncryptionRequest{
		ServerID:    serverID,
		PublicKey:   der,
		VerifyToken: token,
	})
	return nil
}

func (s *Session) handleEncryptionResponse(ev *protocol.ReceiveEvent) error {
	resp, err := protocol.DecodeEncryptionResponse(protocol.NewReader(ev.Payload))
	if err != nil {
		return err
	}

	decryptedToken, err := s.cfg.KeyPair.Decrypt(resp.VerifyToken)
	if err != nil {
		return errors.Extend(err, protoerr.ErrCrypto)
	}
	s.mu.Lock()
	expected := s.verifyToken
	s.mu.Unlock()
	if !bytes.Equal(decryptedToken, expected) {
		return ErrVerifyTokenMismatch
	}

	sharedSecret, err := s.cfg.KeyPair.Decrypt(resp.SharedSecret)
	if err != nil {
		return errors.Extend(err, protoerr.ErrCrypto)
	}

	cipher, err := crypto.NewCipherPair(sharedSecret)
	if err != nil {
		return errors.Extend(err, protoerr.ErrCrypto)
	}
	s.mu.Lock()
	s.cipher = cipher
	username := s.username
	serverID := s.serverID
	s.mu.Unlock()

	der, err := s.cfg.KeyPair.PublicKeyDER()
	if err != nil {
		return err
	}
	digest := crypto.ServerIDHash(serverID, sharedSecret, der)

	s.log.WithField("auth_digest", mojangHexDigest(digest)).Debug("login encryption established")

	return s.finishLogin(uuidForUsername(username))
}

func (s *Session) finishLogin(playerUUID uuid.UUID) error {
	s.mu.Lock()
	s.uuid = playerUUID.String()
	username := s.username
	threshold := s.cfg.CompressionThreshold
	s.mu.Unlock()

	s.SendPacket(&protocol.LoginSuccess{UUID: playerUUID.String(), Username: username})
	if threshold >= 0 {
		s.mu.Lock()
		s.compressionThreshold = threshold
		s.mu.Unlock()
	}

	s.setState(protocol.Play)
	if s.cfg.OnLogin != nil {
		s.cfg.OnLogin(s)
	}
	s.startKeepAlive()
	return nil
}

// uuidForUsername derives a deterministic offline-mode UUID the way
// vanilla servers do when skipping Mojang session verification: version
// 3 (name-based, MD5) over "OfflinePlayer:<username>".
func uuidForUsername(username string) uuid.UUID {
	return uuid.NewMD5(uuid.Nil, []byte("OfflinePlayer:"+username))
}

// mojangHexDigest renders a SHA-1 digest the way the Mojang session
// service expects it: a signed two's-complement big integer in hex, with
// a leading '-' if negative and no zero padding.
func mojangHexDigest(digest []byte) string {
	n := new(big.Int).SetBytes(digest)
	if len(digest) > 0 && digest[0]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), uint(len(digest)*8)))
	}
	return n.Text(16)
}
