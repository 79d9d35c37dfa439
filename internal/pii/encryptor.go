// Package pii encrypts customer contact fields before they reach storage.
package pii

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/risecheckout/orderengine/pkg/errors"
)

// Prefix marks a value produced by Encrypt
const Prefix = "enc:v1:"

// Encryptor seals strings with XChaCha20-Poly1305
type Encryptor struct {
	key []byte
}

// NewEncryptor builds an encryptor from a hex encoded 32 byte key
func NewEncryptor(hexKey string) (*Encryptor, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &Encryptor{key: key}, nil
}

// Encrypt returns Prefix followed by base64(nonce || ciphertext)
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", &errors.EncryptionFailure{Err: err}
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", &errors.EncryptionFailure{Err: err}
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) Decrypt(value string) (string, error) {
	if !IsEncrypted(value) {
		return "", &errors.EncryptionFailure{Err: fmt.Errorf("value is not encrypted")}
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", &errors.EncryptionFailure{Err: err}
	}

	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", &errors.EncryptionFailure{Err: err}
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", &errors.EncryptionFailure{Err: fmt.Errorf("ciphertext too short")}
	}

	plain, err := aead.Open(nil, raw[:aead.NonceSize()], raw[aead.NonceSize():], nil)
	if err != nil {
		return "", &errors.EncryptionFailure{Err: err}
	}
	return string(plain), nil
}

// EncryptOptional encrypts a possibly absent field. Blank values stay absent.
func (e *Encryptor) EncryptOptional(value *string) (*string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	enc, err := e.Encrypt(*value)
	if err != nil {
		return nil, err
	}
	return &enc, nil
}

func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, Prefix)
}
