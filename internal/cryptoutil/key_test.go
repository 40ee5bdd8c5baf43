package cryptoutil

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func TestParseKeyBase64(t *testing.T) {
	key := make([]byte, 32)
	parsed, err := ParseKey(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed) != 32 {
		t.Fatalf("unexpected key length: %d", len(parsed))
	}
}

func TestParseKeyHexPrefix(t *testing.T) {
	key := bytes.Repeat([]byte{0xab}, 32)
	parsed, err := ParseKey("hex:" + hex.EncodeToString(key))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(parsed, key) {
		t.Fatalf("key mismatch")
	}
}

func TestParseKeyWrongLength(t *testing.T) {
	if _, err := ParseKey(base64.StdEncoding.EncodeToString(make([]byte, 16))); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestConfigRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	plain := []byte("github:\n  username: octocat\n")

	sealed, err := EncryptConfig(plain, key)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	opened, err := DecryptConfig(sealed, key)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("round trip mismatch: %q", opened)
	}
}

func TestDecryptConfigRejectsGarbage(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, 32)
	if _, err := DecryptConfig([]byte("github:\n  token: x\n"), key); err == nil {
		t.Fatal("expected error for plaintext input")
	}
}
