package phi

import (
	"encoding/json"
	"fmt"
)

// Codec marshals typed payloads to JSON and seals them with the cipher. The
// digest of the plaintext is returned alongside the blob so callers can store
// it for deduplication and tamper evidence without decrypting.
type Codec struct {
	cipher *Cipher
}

// NewCodec wraps a cipher with JSON encoding.
func NewCodec(c *Cipher) *Codec {
	return &Codec{cipher: c}
}

// EncryptJSON marshals v, digests the plaintext and seals it. The returned
// digest identifies the payload content, not the blob: re-encrypting the same
// payload yields a different blob but the same digest.
func (c *Codec) EncryptJSON(v any) (blob, digest string, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", "", fmt.Errorf("phi: marshal payload: %w", err)
	}
	blob, err = c.cipher.Encrypt(plaintext)
	if err != nil {
		return "", "", err
	}
	return blob, Digest(plaintext), nil
}

// DecryptJSON opens a blob and unmarshals the plaintext into v.
func (c *Codec) DecryptJSON(blob string, v any) error {
	plaintext, err := c.cipher.Decrypt(blob)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(plaintext, v); err != nil {
		return fmt.Errorf("phi: unmarshal payload: %w", err)
	}
	return nil
}
