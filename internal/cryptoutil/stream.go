package cryptoutil

import (
	"bytes"
	"fmt"
	"io"

	"github.com/minio/sio"
)

// Encrypted config payloads are a small magic header followed by a DARE
// stream. The header lets config loading distinguish "wrong key" from
// "not an encrypted file".
var configMagic = []byte("SBK1")

// EncryptConfig seals a config payload with the given 32-byte key.
func EncryptConfig(plain, key []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.Write(configMagic)
	w, err := sio.EncryptWriter(buf, sio.Config{Key: key})
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(plain); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecryptConfig opens a payload produced by EncryptConfig.
func DecryptConfig(ciphertext, key []byte) ([]byte, error) {
	if len(ciphertext) < len(configMagic) || !bytes.Equal(ciphertext[:len(configMagic)], configMagic) {
		return nil, fmt.Errorf("invalid config header")
	}
	r, err := sio.DecryptReader(bytes.NewReader(ciphertext[len(configMagic):]), sio.Config{Key: key})
	if err != nil {
		return nil, err
	}
	plain, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt config: %w", err)
	}
	return plain, nil
}
