// Package crypto provides AES-256-GCM authenticated encryption for sensitive
// values that must be stored at rest in the database, specifically the Power BI
// service-principal client secret. That secret grants tenant-wide access to
// every workspace the principal can reach, so a leaked value is far more
// damaging than any single user credential (which are bcrypt-hashed and never
// recoverable). AES-256-GCM is chosen because it provides both confidentiality
// and authenticated integrity, ensuring a stored secret cannot be silently
// tampered with even if the database is partially compromised.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrKeyLengthInvalid is returned when the key is not exactly 32 bytes (required for AES-256).
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the blob fails base64 decoding or is too short to contain the salt and nonce.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	// ErrDecryptionFailed is returned when AES-GCM authentication or decryption fails, indicating tampering or a wrong key.
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
	// ErrSaltTooShort is returned when the provided salt is fewer than 16 bytes, which would weaken PBKDF2 key derivation.
	ErrSaltTooShort = errors.New("crypto: salt must be at least 16 bytes")
)

// saltSize is the length of the random salt prepended to every blob. The salt
// is reserved for per-record key derivation; the static-key path ignores it on
// decrypt but always writes one so the blob layout never changes.
const saltSize = 16

// KeyFunc supplies the 32-byte encryption key. It is called on every Seal and
// Open so a key rotated in configuration takes effect without recreating the
// cipher.
type KeyFunc func() ([]byte, error)

// StaticKey returns a KeyFunc that always yields the given key.
func StaticKey(key []byte) KeyFunc {
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	return func() ([]byte, error) {
		if len(keyCopy) != 32 {
			return nil, ErrKeyLengthInvalid
		}
		return keyCopy, nil
	}
}

// SecretCipher encrypts and decrypts sensitive credential data
type SecretCipher struct {
	keyFunc KeyFunc
}

// NewSecretCipher creates a cipher whose key is looked up per call
func NewSecretCipher(keyFunc KeyFunc) *SecretCipher {
	return &SecretCipher{keyFunc: keyFunc}
}

// DeriveKey derives a 32-byte key from a passphrase using PBKDF2-SHA256
func DeriveKey(passphrase string, salt []byte, iterations int) ([]byte, error) {
	if len(salt) < saltSize {
		return nil, ErrSaltTooShort
	}
	if iterations < 10000 {
		iterations = 100000 // Secure default
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, 32, sha256.New), nil
}

// Seal encrypts plaintext and returns a base64-encoded blob of the form
// salt ‖ nonce ‖ ciphertext+tag. A fresh random nonce is drawn per call, so
// sealing the same plaintext twice yields different blobs.
func (sc *SecretCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	key, err := sc.keyFunc()
	if err != nil {
		return "", err
	}
	if len(key) != 32 {
		return "", ErrKeyLengthInvalid
	}

	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	aead, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return "", err
	}

	blob := make([]byte, saltSize+aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, blob); err != nil {
		return "", err
	}

	nonce := blob[saltSize:]
	sealed := aead.Seal(blob, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a blob produced by Seal and returns the plaintext
func (sc *SecretCipher) Open(encodedCiphertext string) (string, error) {
	if encodedCiphertext == "" {
		return "", nil
	}

	blob, err := base64.URLEncoding.DecodeString(encodedCiphertext)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}

	key, err := sc.keyFunc()
	if err != nil {
		return "", err
	}
	if len(key) != 32 {
		return "", ErrKeyLengthInvalid
	}

	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	aead, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return "", err
	}

	if len(blob) < saltSize+aead.NonceSize() {
		return "", ErrCiphertextCorrupted
	}

	nonce := blob[saltSize : saltSize+aead.NonceSize()]
	actualCiphertext := blob[saltSize+aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, actualCiphertext, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	return string(plaintext), nil
}

// GenerateKey creates a cryptographically secure random 32-byte key
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// GenerateSalt creates a cryptographically secure random salt
func GenerateSalt(length int) ([]byte, error) {
	if length < saltSize {
		length = saltSize
	}
	salt := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}
