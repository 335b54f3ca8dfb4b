package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankfeed/internal/config"
)

const testKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestNewCredentialCipher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Cipher
		wantErr bool
	}{
		{
			name: "valid hex key",
			cfg:  config.Cipher{KeyHex: testKeyHex},
		},
		{
			name: "passphrase",
			cfg:  config.Cipher{Passphrase: "correct horse battery staple"},
		},
		{
			name:    "short hex key",
			cfg:     config.Cipher{KeyHex: "deadbeef"},
			wantErr: true,
		},
		{
			name:    "invalid hex",
			cfg:     config.Cipher{KeyHex: strings.Repeat("zz", 32)},
			wantErr: true,
		},
		{
			name:    "no key material",
			cfg:     config.Cipher{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCredentialCipher(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c)
		})
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewCredentialCipher(config.Cipher{KeyHex: testKeyHex})
	require.NoError(t, err)

	plaintexts := []string{
		"",
		"access-sandbox-1234",
		"a rather longer credential token with spaces and unicode: ключ",
	}

	for _, pt := range plaintexts {
		blob, err := c.Encrypt([]byte(pt))
		require.NoError(t, err)

		got, err := c.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, pt, string(got))
	}
}

func TestEncryptProducesDistinctBlobs(t *testing.T) {
	c, err := NewCredentialCipher(config.Cipher{KeyHex: testKeyHex})
	require.NoError(t, err)

	first, err := c.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)
	second, err := c.Encrypt([]byte("same plaintext"))
	require.NoError(t, err)

	// Fresh nonce per encryption means identical plaintexts must not
	// produce identical blobs.
	assert.NotEqual(t, first, second)
}

func TestDecryptCorruptBlob(t *testing.T) {
	c, err := NewCredentialCipher(config.Cipher{KeyHex: testKeyHex})
	require.NoError(t, err)

	blob, err := c.Encrypt([]byte("secret"))
	require.NoError(t, err)

	t.Run("flipped byte", func(t *testing.T) {
		bad := append([]byte{}, blob...)
		bad[len(bad)-1] ^= 0xff
		_, err := c.Decrypt(bad)
		assert.ErrorIs(t, err, ErrCredentialCorrupt)
	})

	t.Run("truncated below nonce size", func(t *testing.T) {
		_, err := c.Decrypt(blob[:4])
		assert.ErrorIs(t, err, ErrCredentialCorrupt)
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := NewCredentialCipher(config.Cipher{Passphrase: "different"})
		require.NoError(t, err)
		_, err = other.Decrypt(blob)
		assert.ErrorIs(t, err, ErrCredentialCorrupt)
	})
}

func TestPassphraseDerivationIsStable(t *testing.T) {
	a, err := NewCredentialCipher(config.Cipher{Passphrase: "stable"})
	require.NoError(t, err)
	b, err := NewCredentialCipher(config.Cipher{Passphrase: "stable"})
	require.NoError(t, err)

	blob, err := a.Encrypt([]byte("token"))
	require.NoError(t, err)

	got, err := b.Decrypt(blob)
	require.NoError(t, err)
	assert.Equal(t, "token", string(got))
}
