// Package crypto provides the symmetric encryption used to keep onboarding
// credentials (SMTP password, S3 access and secret keys) encrypted at rest.
// It includes AES-256-GCM sealing with a random nonce per call, deterministic
// key derivation from a server-wide secret, and a string-oriented Codec that
// produces self-contained, URL-safe ciphertext blobs.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
)

// KeySize is the AES-256 key length in bytes
const KeySize = 32

// Seal encrypts plaintext using AES-256-GCM and prepends the nonce
func Seal(plaintext []byte, key []byte, associatedData []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// nonce || ciphertext || tag
	return gcm.Seal(nonce, nonce, plaintext, associatedData), nil
}

// Open decrypts data produced by Seal
func Open(sealed []byte, key []byte, associatedData []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize+gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, associatedData)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}

	return plaintext, nil
}

