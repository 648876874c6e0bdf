// Package phi encrypts protected health information at rest.
//
// Payloads are sealed with AES-256-GCM under a key derived from the master
// secret. The stored form is
//
//	base64( nonce[16] || tag[16] || ciphertext )
//
// so a blob is malformed when its decoded length is below 32 bytes. Any
// modification of nonce, tag or ciphertext fails authentication on open and
// surfaces as ErrIntegrityFailure, never as partial plaintext.
package phi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// NonceSize is the GCM nonce length used in the stored blob layout.
	NonceSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16

	keySize = 32
)

// kekSalt pins key derivation for the current blob format. Changing it (or
// the argon2 parameters) makes every stored blob undecryptable, so both are
// versioned together.
var kekSalt = []byte("cardioai.phi.kek.v1")

// deriveKey stretches the master secret into an AES-256 key with argon2id.
func deriveKey(master []byte) []byte {
	return argon2.IDKey(master, kekSalt, 3, 64*1024, 2, keySize)
}

// Cipher seals and opens PHI payloads with a key derived from the master
// secret. It is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives the data key from master and prepares the AEAD. An empty
// master secret is rejected with ErrMissingKey.
func NewCipher(master []byte) (*Cipher, error) {
	if len(master) == 0 {
		return nil, ErrMissingKey
	}
	block, err := aes.NewCipher(deriveKey(master))
	if err != nil {
		return nil, fmt.Errorf("phi: init cipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, fmt.Errorf("phi: init gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce and returns the blob in
// the stored base64 form. Empty plaintext is valid and produces a 32-byte
// envelope.
func (c *Cipher) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("phi: nonce: %w", err)
	}

	// Seal appends the tag after the ciphertext; the stored layout wants
	// the tag first, so re-splice.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	blob := make([]byte, 0, NonceSize+TagSize+len(ct))
	blob = append(blob, nonce...)
	blob = append(blob, tag...)
	blob = append(blob, ct...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt opens a stored blob and returns the plaintext. Structural problems
// (bad base64, too short) surface as ErrMalformedBlob; any authentication
// problem, including truncated or bit-flipped ciphertext and a wrong key,
// surfaces as ErrIntegrityFailure.
func (c *Cipher) Decrypt(blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	if len(raw) < NonceSize+TagSize {
		return nil, ErrMalformedBlob
	}

	nonce := raw[:NonceSize]
	tag := raw[NonceSize : NonceSize+TagSize]
	ct := raw[NonceSize+TagSize:]

	sealed := make([]byte, 0, len(ct)+TagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrIntegrityFailure
	}
	return plaintext, nil
}

// Digest returns the lowercase hex SHA-256 of data. Digests are computed
// over plaintext before encryption and are safe to store and compare in the
// clear.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
