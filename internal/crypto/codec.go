package crypto

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrDecryption is returned when a stored blob cannot be decrypted, either
// because it is corrupt or because it was sealed under a different secret.
// It is distinct from an empty blob, which decrypts to "".
var ErrDecryption = errors.New("credential decryption failed")

// keyPadByte fills secrets shorter than KeySize
const keyPadByte = '0'

// credentialAD binds every blob to this codec's purpose
var credentialAD = []byte("onboard:credential:v1")

// canaryPlaintext is sealed once and stored so a changed secret is detected at boot
const canaryPlaintext = "onboard-key-check"

// DeriveKey turns a server-wide secret into an AES-256 key. Secrets longer
// than KeySize are truncated, shorter ones are padded with '0'. The result is
// deterministic, so rotating the secret makes existing blobs unreadable.
func DeriveKey(secret string) []byte {
	key := make([]byte, KeySize)
	n := copy(key, secret)
	for i := n; i < KeySize; i++ {
		key[i] = keyPadByte
	}
	return key
}

// Codec encrypts and decrypts individual credential strings. It holds only
// the derived key and is safe for concurrent use.
type Codec struct {
	key []byte
}

// NewCodec creates a codec keyed from the given secret
func NewCodec(secret string) *Codec {
	return &Codec{key: DeriveKey(secret)}
}

// Encrypt seals plaintext and returns a URL-safe base64 blob that embeds
// its own nonce and authentication tag.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	sealed, err := Seal([]byte(plaintext), c.key, credentialAD)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt credential: %w", err)
	}
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a blob produced by Encrypt. An empty blob returns "" without
// invoking the cipher.
func (c *Codec) Decrypt(blob string) (string, error) {
	if blob == "" {
		return "", nil
	}

	sealed, err := base64.URLEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("%w: malformed blob: %v", ErrDecryption, err)
	}

	plaintext, err := Open(sealed, c.key, credentialAD)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryption, err)
	}

	return string(plaintext), nil
}

// Canary returns a freshly sealed key-check blob
func (c *Codec) Canary() (string, error) {
	return c.Encrypt(canaryPlaintext)
}

// VerifyCanary reports whether the canary was sealed under this codec's key
func (c *Codec) VerifyCanary(blob string) error {
	plaintext, err := c.Decrypt(blob)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(plaintext), []byte(canaryPlaintext)) != 1 {
		return fmt.Errorf("%w: key check mismatch", ErrDecryption)
	}
	return nil
}
