package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

// testKey returns a valid 32-byte key for use in tests.
func testKey() []byte {
	return bytes.Repeat([]byte("k"), 32)
}

func testCipher() *SecretCipher {
	return NewSecretCipher(StaticKey(testKey()))
}

func TestStaticKey(t *testing.T) {
	t.Run("valid 32-byte key", func(t *testing.T) {
		key, err := StaticKey(testKey())()
		if err != nil {
			t.Fatalf("StaticKey() unexpected error: %v", err)
		}
		if len(key) != 32 {
			t.Fatalf("StaticKey() len = %d, want 32", len(key))
		}
	})

	tests := []struct {
		name   string
		keyLen int
	}{
		{"too short (16 bytes)", 16},
		{"too long (64 bytes)", 64},
		{"empty key", 0},
		{"31 bytes", 31},
		{"33 bytes", 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := StaticKey(make([]byte, tt.keyLen))()
			if err != ErrKeyLengthInvalid {
				t.Errorf("StaticKey(len=%d) error = %v, want %v", tt.keyLen, err, ErrKeyLengthInvalid)
			}
		})
	}
}

func TestStaticKeyIsolatesKey(t *testing.T) {
	// Modifying the original key slice must not affect the cipher.
	key := testKey()
	sc := NewSecretCipher(StaticKey(key))
	plaintext := "sensitive-data"
	sealed, _ := sc.Seal(plaintext)

	// Corrupt the original key
	for i := range key {
		key[i] = 0
	}

	// The cipher should still work with its own copy
	got, err := sc.Open(sealed)
	if err != nil {
		t.Errorf("Open() after key corruption error: %v", err)
	}
	if got != plaintext {
		t.Errorf("Open() = %q, want %q", got, plaintext)
	}
}

func TestKeyFuncErrorsPropagate(t *testing.T) {
	wantErr := errors.New("key unavailable")
	sc := NewSecretCipher(func() ([]byte, error) { return nil, wantErr })

	if _, err := sc.Seal("secret"); err != wantErr {
		t.Errorf("Seal() error = %v, want %v", err, wantErr)
	}
	if _, err := sc.Open("aGVsbG8="); err != wantErr {
		t.Errorf("Open() error = %v, want %v", err, wantErr)
	}
}

func TestKeyFuncCalledPerOperation(t *testing.T) {
	// A rotated key must take effect on the next call without a new cipher.
	current := testKey()
	sc := NewSecretCipher(func() ([]byte, error) { return current, nil })

	sealed, err := sc.Seal("secret")
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	current = bytes.Repeat([]byte("x"), 32)
	if _, err := sc.Open(sealed); err != ErrDecryptionFailed {
		t.Errorf("Open() after key rotation error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestDeriveKey(t *testing.T) {
	t.Run("valid passphrase and salt", func(t *testing.T) {
		salt := bytes.Repeat([]byte("s"), 16)
		key, err := DeriveKey("my-secret-passphrase", salt, 100000)
		if err != nil {
			t.Fatalf("DeriveKey() unexpected error: %v", err)
		}
		if len(key) != 32 {
			t.Fatalf("DeriveKey() len = %d, want 32", len(key))
		}
	})

	t.Run("salt too short", func(t *testing.T) {
		_, err := DeriveKey("passphrase", make([]byte, 8), 100000)
		if err != ErrSaltTooShort {
			t.Errorf("DeriveKey() error = %v, want %v", err, ErrSaltTooShort)
		}
	})

	t.Run("low iteration count uses secure default", func(t *testing.T) {
		salt := bytes.Repeat([]byte("s"), 16)
		// Should not error; low count is silently bumped to 100000
		key, err := DeriveKey("pass", salt, 1)
		if err != nil {
			t.Fatalf("DeriveKey() error: %v", err)
		}
		if len(key) != 32 {
			t.Fatal("DeriveKey() returned short key")
		}
	})

	t.Run("different passphrases produce different keys", func(t *testing.T) {
		salt := bytes.Repeat([]byte("s"), 16)
		k1, _ := DeriveKey("passphrase-one", salt, 100000)
		k2, _ := DeriveKey("passphrase-two", salt, 100000)

		sc1 := NewSecretCipher(StaticKey(k1))
		sc2 := NewSecretCipher(StaticKey(k2))

		sealed, _ := sc1.Seal("secret")
		// sc2 should NOT be able to decrypt what sc1 sealed
		if _, err := sc2.Open(sealed); err == nil {
			t.Error("different-key cipher decrypted ciphertext; expected failure")
		}
	})
}

func TestSealAndOpen(t *testing.T) {
	sc := testCipher()

	plaintexts := []string{
		"hello",
		"a-very-long-client-secret-value-that-exceeds-normal-length-for-service-principal-secrets-8Q~abcДЕF",
		"unicode: 日本語テスト",
		"special chars: !@#$%^&*()",
		"newline\nand\ttabs",
	}

	for _, pt := range plaintexts {
		t.Run("roundtrip/"+pt[:min(len(pt), 20)], func(t *testing.T) {
			sealed, err := sc.Seal(pt)
			if err != nil {
				t.Fatalf("Seal() error: %v", err)
			}
			if sealed == "" {
				t.Fatal("Seal() returned empty string for non-empty plaintext")
			}
			if sealed == pt {
				t.Error("Seal() returned plaintext unchanged")
			}

			opened, err := sc.Open(sealed)
			if err != nil {
				t.Fatalf("Open() error: %v", err)
			}
			if opened != pt {
				t.Errorf("Open() = %q, want %q", opened, pt)
			}
		})
	}
}

func TestSealEmptyString(t *testing.T) {
	sc := testCipher()

	sealed, err := sc.Seal("")
	if err != nil {
		t.Fatalf("Seal(\"\") error: %v", err)
	}
	if sealed != "" {
		t.Errorf("Seal(\"\") = %q, want empty string", sealed)
	}

	opened, err := sc.Open("")
	if err != nil {
		t.Fatalf("Open(\"\") error: %v", err)
	}
	if opened != "" {
		t.Errorf("Open(\"\") = %q, want empty string", opened)
	}
}

func TestSealNonDeterministic(t *testing.T) {
	// Each call to Seal should produce a different blob (random salt + nonce).
	sc := testCipher()
	pt := "same-plaintext"

	s1, _ := sc.Seal(pt)
	s2, _ := sc.Seal(pt)
	if s1 == s2 {
		t.Error("Seal() produced identical blobs; nonce is not random")
	}
}

func TestOpenErrors(t *testing.T) {
	sc := testCipher()

	tests := []struct {
		name       string
		ciphertext string
		wantErr    error
	}{
		{"not base64", "!!!not-base64!!!", ErrCiphertextCorrupted},
		{"too short after decode", "YQ==", ErrCiphertextCorrupted}, // decodes to 1 byte, shorter than salt+nonce
		{"salt only", base64.URLEncoding.EncodeToString(make([]byte, saltSize)), ErrCiphertextCorrupted},
		{"random bytes of valid length", base64.URLEncoding.EncodeToString(bytes.Repeat([]byte{0xAB}, 48)), ErrDecryptionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sc.Open(tt.ciphertext)
			if err != tt.wantErr {
				t.Errorf("Open(%q) error = %v, want %v", tt.ciphertext, err, tt.wantErr)
			}
		})
	}
}

func TestOpenTamperedBlob(t *testing.T) {
	// Flipping any single byte of the sealed blob must fail authentication.
	sc := testCipher()
	sealed, err := sc.Seal("tamper-target")
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	raw, err := base64.URLEncoding.DecodeString(sealed)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	for _, idx := range []int{saltSize, saltSize + 5, len(raw) - 1} {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[idx] ^= 0x01
		if _, err := sc.Open(base64.URLEncoding.EncodeToString(tampered)); err != ErrDecryptionFailed {
			t.Errorf("Open() with byte %d flipped error = %v, want %v", idx, err, ErrDecryptionFailed)
		}
	}
}

func TestOpenWrongKey(t *testing.T) {
	sc1 := NewSecretCipher(StaticKey(bytes.Repeat([]byte("a"), 32)))
	sc2 := NewSecretCipher(StaticKey(bytes.Repeat([]byte("b"), 32)))

	sealed, err := sc1.Seal("secret-data")
	if err != nil {
		t.Fatalf("Seal() error: %v", err)
	}

	_, err = sc2.Open(sealed)
	if err != ErrDecryptionFailed {
		t.Errorf("Open() with wrong key error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("GenerateKey() len = %d, want 32", len(key))
	}

	// Two calls should produce different keys
	key2, _ := GenerateKey()
	if bytes.Equal(key, key2) {
		t.Error("GenerateKey() produced identical keys on consecutive calls")
	}

	// Generated key must be usable with StaticKey
	if _, err := StaticKey(key)(); err != nil {
		t.Errorf("StaticKey(GenerateKey()) error: %v", err)
	}
}

func TestGenerateSalt(t *testing.T) {
	tests := []struct {
		name    string
		length  int
		wantLen int
	}{
		{"default minimum", 0, 16},
		{"below minimum", 8, 16},
		{"exact minimum", 16, 16},
		{"custom length", 32, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			salt, err := GenerateSalt(tt.length)
			if err != nil {
				t.Fatalf("GenerateSalt(%d) error: %v", tt.length, err)
			}
			if len(salt) != tt.wantLen {
				t.Errorf("GenerateSalt(%d) len = %d, want %d", tt.length, len(salt), tt.wantLen)
			}
		})
	}

	// Two salts must differ
	s1, _ := GenerateSalt(16)
	s2, _ := GenerateSalt(16)
	if bytes.Equal(s1, s2) {
		t.Error("GenerateSalt() produced identical salts on consecutive calls")
	}
}
