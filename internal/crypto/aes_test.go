package crypto

import (
	"bytes"
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomKey returns a fresh AES-256 key for tests
func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := io.ReadFull(rand.Reader, key)
	require.NoError(t, err)
	return key
}

func TestSealOpen(t *testing.T) {
	key := randomKey(t)

	t.Run("Seal and open successfully", func(t *testing.T) {
		plaintext := []byte("smtp password")
		ad := []byte("test-ad")

		sealed, err := Seal(plaintext, key, ad)
		require.NoError(t, err)
		assert.Greater(t, len(sealed), len(plaintext), "Sealed data should be larger than plaintext")

		opened, err := Open(sealed, key, ad)
		require.NoError(t, err)
		assert.Equal(t, plaintext, opened)
	})

	t.Run("Seal produces different output each time", func(t *testing.T) {
		plaintext := []byte("same plaintext")

		sealed1, err := Seal(plaintext, key, nil)
		require.NoError(t, err)

		sealed2, err := Seal(plaintext, key, nil)
		require.NoError(t, err)

		assert.NotEqual(t, sealed1, sealed2, "Each seal should use a fresh nonce")
	})

	t.Run("Open with wrong key fails", func(t *testing.T) {
		sealed, err := Seal([]byte("secret data"), key, nil)
		require.NoError(t, err)

		wrongKey := randomKey(t)

		_, err = Open(sealed, wrongKey, nil)
		assert.Error(t, err)
	})

	t.Run("Open with wrong associated data fails", func(t *testing.T) {
		sealed, err := Seal([]byte("secret data"), key, []byte("correct"))
		require.NoError(t, err)

		_, err = Open(sealed, key, []byte("wrong"))
		assert.Error(t, err)
	})

	t.Run("Open empty data fails", func(t *testing.T) {
		_, err := Open([]byte{}, key, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "ciphertext too short")
	})

	t.Run("Open truncated data fails", func(t *testing.T) {
		sealed, err := Seal([]byte("secret data"), key, nil)
		require.NoError(t, err)

		_, err = Open(sealed[:5], key, nil)
		assert.Error(t, err)
	})

	t.Run("Seal with invalid key fails", func(t *testing.T) {
		_, err := Seal([]byte("secret data"), []byte("too-short"), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create cipher")
	})

	t.Run("Open with invalid key fails", func(t *testing.T) {
		_, err := Open([]byte("some-data"), []byte("too-short"), nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create cipher")
	})

	t.Run("Seal and open large data", func(t *testing.T) {
		plaintext := make([]byte, 1024*1024)
		_, err := io.ReadFull(rand.Reader, plaintext)
		require.NoError(t, err)

		sealed, err := Seal(plaintext, key, nil)
		require.NoError(t, err)

		opened, err := Open(sealed, key, nil)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(plaintext, opened))
	})

	t.Run("Tampered ciphertext fails", func(t *testing.T) {
		sealed, err := Seal([]byte("secret data"), key, nil)
		require.NoError(t, err)

		sealed[len(sealed)-1] ^= 0xFF

		_, err = Open(sealed, key, nil)
		assert.Error(t, err)
	})
}
