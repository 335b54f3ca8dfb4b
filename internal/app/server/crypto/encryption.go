package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"

	"bankfeed/internal/config"
)

// ErrCredentialCorrupt is returned when a stored credential blob cannot
// be decrypted: wrong key, truncated blob, or failed authentication tag.
// Callers must treat it as fatal for the owning connection.
var ErrCredentialCorrupt = errors.New("credential corrupt")

const (
	keySize          = 32
	pbkdf2Iterations = 100_000
)

// pbkdf2Salt is fixed: the passphrase is an operator-supplied process
// secret, not a per-user password, so there is exactly one derivation.
var pbkdf2Salt = []byte("bankfeed.credential.v1")

// CredentialCipher encrypts aggregator access credentials for storage
// at rest using AES-256-GCM. Each encryption draws a fresh random
// nonce which is prepended to the ciphertext, so a stored blob is
// self-contained.
type CredentialCipher struct {
	key []byte
}

// NewCredentialCipher builds a cipher from process configuration:
// either a 32-byte hex key, or a passphrase run through PBKDF2.
// The key never derives from user input.
func NewCredentialCipher(cfg config.Cipher) (*CredentialCipher, error) {
	switch {
	case cfg.KeyHex != "":
		key, err := hex.DecodeString(cfg.KeyHex)
		if err != nil || len(key) != keySize {
			return nil, fmt.Errorf("CIPHER_KEY must be %d bytes hex encoded", keySize)
		}
		return &CredentialCipher{key: key}, nil
	case cfg.Passphrase != "":
		key := pbkdf2.Key([]byte(cfg.Passphrase), pbkdf2Salt, pbkdf2Iterations, keySize, sha256.New)
		return &CredentialCipher{key: key}, nil
	default:
		return nil, errors.New("either CIPHER_KEY or CIPHER_PASSPHRASE must be set")
	}
}

// Encrypt seals plaintext into a nonce||ciphertext blob.
func (c *CredentialCipher) Encrypt(plaintext []byte) ([]byte, error) {
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Any failure to authenticate
// or parse the blob is reported as ErrCredentialCorrupt.
func (c *CredentialCipher) Decrypt(blob []byte) ([]byte, error) {
	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(blob) < nonceSize {
		return nil, fmt.Errorf("%w: blob shorter than nonce", ErrCredentialCorrupt)
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialCorrupt, err)
	}

	return plaintext, nil
}

func (c *CredentialCipher) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return gcm, nil
}
