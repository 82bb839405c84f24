package source

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Encrypted-at-rest envelope for stored sources:
// magic(8) + salt(16) + nonce(12) + ciphertext||tag(16).
const envelopeMagic = "GCM3NCR0"

const (
	saltLen   = 16
	nonceLen  = 12
	kdfIters  = 100000
	keyLen    = 32
	minEnvLen = len(envelopeMagic) + saltLen + nonceLen + 16
)

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfIters, keyLen, sha256.New)
}

// decryptEnvelope unwraps an encrypted source. Data without the envelope
// magic is returned unchanged so plaintext objects work with a password set.
func decryptEnvelope(data []byte, password string) ([]byte, error) {
	if len(data) < len(envelopeMagic) || string(data[:len(envelopeMagic)]) != envelopeMagic {
		return data, nil
	}
	if len(data) < minEnvLen {
		return nil, fmt.Errorf("encrypted source too short: %d bytes", len(data))
	}

	salt := data[8:24]
	nonce := data[24:36]
	sealed := data[36:]

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("gcm open: %w", err)
	}
	return plain, nil
}

// EncryptEnvelope wraps data in the stored-source envelope. Used by tooling
// that stages encrypted objects and by tests.
func EncryptEnvelope(data []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	out := make([]byte, 0, minEnvLen+len(data))
	out = append(out, envelopeMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, data, nil)
	return out, nil
}
