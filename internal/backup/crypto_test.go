package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)

	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("other", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := []byte("This is test database content with some data in it.")

	enc, err := Encrypt(original, "secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(enc) <= saltSize+nonceSize+len(original) {
		t.Errorf("encrypted length = %d, too short", len(enc))
	}
	if bytes.Contains(enc, original) {
		t.Error("ciphertext contains plaintext")
	}

	got, err := Decrypt(enc, "secret")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("decrypted = %q, want %q", got, original)
	}

	again, err := Encrypt(original, "secret")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(enc[:saltSize], again[:saltSize]) {
		t.Error("each encryption should use a fresh salt")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	enc, err := Encrypt([]byte("data"), "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(enc, "wrong"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("err = %v, want ErrDecrypt", err)
	}

	enc[len(enc)-1] ^= 0xff
	if _, err := Decrypt(enc, "right"); !errors.Is(err, ErrDecrypt) {
		t.Errorf("tampered err = %v, want ErrDecrypt", err)
	}
}

func TestDecryptTooSmall(t *testing.T) {
	if _, err := Decrypt([]byte("short"), "x"); err == nil {
		t.Error("expected error for truncated input")
	}
}
