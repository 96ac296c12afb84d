// Package crypto seals small secrets such as OAuth token caches at rest.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

const (
	// Magic identifies a sealed file.
	Magic = "RRTK"

	// FormatVersion of the sealed layout.
	FormatVersion = 1

	// Argon2id parameters (OWASP recommended)
	Argon2Time    = 3
	Argon2Memory  = 64 * 1024 // 64 MB
	Argon2Threads = 4
	Argon2KeyLen  = 32 // AES-256

	SaltSize  = 16
	NonceSize = 12 // GCM standard nonce size

	// HeaderSize is magic(4) + version(4) + salt + nonce.
	HeaderSize = 4 + 4 + SaltSize + NonceSize
)

var (
	ErrNotSealed          = errors.New("data is not sealed")
	ErrInvalidVersion     = errors.New("unsupported sealed format version")
	ErrOpenFailed         = errors.New("unseal failed: wrong passphrase or corrupted data")
	ErrPassphraseRequired = errors.New("file is sealed but no passphrase is configured")
)

// deriveKey derives an AES-256 key from a passphrase using Argon2id.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, Argon2Time, Argon2Memory, Argon2Threads, Argon2KeyLen)
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts plaintext with AES-256-GCM under passphrase.
func Seal(plaintext []byte, passphrase string) ([]byte, error) {
	header := make([]byte, HeaderSize)
	copy(header[0:4], Magic)
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)

	salt := header[8 : 8+SaltSize]
	nonce := header[8+SaltSize : HeaderSize]
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	// The header is authenticated as additional data.
	aad := append([]byte(nil), header...)
	return gcm.Seal(header, nonce, plaintext, aad), nil
}

// Open decrypts data produced by Seal.
func Open(data []byte, passphrase string) ([]byte, error) {
	if !IsSealed(data) || len(data) < HeaderSize {
		return nil, ErrNotSealed
	}
	if binary.LittleEndian.Uint32(data[4:8]) != FormatVersion {
		return nil, ErrInvalidVersion
	}

	header := data[:HeaderSize]
	salt := header[8 : 8+SaltSize]
	nonce := header[8+SaltSize:]

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, data[HeaderSize:], header)
	if err != nil {
		return nil, ErrOpenFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data starts with the sealed magic.
func IsSealed(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == Magic
}

// WriteFile writes data to path with 0600 permissions, sealing it first
// when passphrase is non-empty.
func WriteFile(path string, data []byte, passphrase string) error {
	out := data
	if passphrase != "" {
		sealed, err := Seal(data, passphrase)
		if err != nil {
			return err
		}
		out = sealed
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// ReadFile reads path and unseals it when needed. Plain files are returned
// as-is so existing caches keep working after a passphrase is introduced.
func ReadFile(path, passphrase string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !IsSealed(data) {
		return data, nil
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	return Open(data, passphrase)
}
