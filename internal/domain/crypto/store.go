// Package crypto seals and opens the credential blobs that back third-party
// provider configuration (transcription API keys, Zoom OAuth tokens, ...).
//
// AES-256-GCM is used directly from the standard library: nothing in the
// retrieved pack wraps credential-at-rest encryption, so there is no
// ecosystem convention to follow here beyond stdlib primitives.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	apperr "github.com/meetbot/lifecycle-engine/pkg/errors"
)

// Store seals and opens credential payloads under a single 32-byte key.
// The key is provided by config.CryptoConfig (base64-encoded in YAML/env).
type Store struct {
	gcm cipher.AEAD
}

// NewStore builds a Store from a raw 32-byte AES-256 key.
func NewStore(key []byte) (*Store, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("crypto: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: new gcm: %w", err)
	}
	return &Store{gcm: gcm}, nil
}

// Seal encrypts an arbitrary JSON-serializable credential payload and returns
// a base64-encoded ciphertext suitable for storing in a text column.
func (s *Store) Seal(payload any) (string, error) {
	plaintext, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("crypto: marshal payload: %w", err)
	}
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: read nonce: %w", err)
	}
	ciphertext := s.gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open decrypts a blob produced by Seal and unmarshals it into out.
func (s *Store) Open(blob string, out any) error {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return apperr.NewDecryptionFailedError("crypto: malformed ciphertext encoding", err)
	}
	nonceSize := s.gcm.NonceSize()
	if len(raw) < nonceSize {
		return apperr.NewDecryptionFailedError("crypto: ciphertext too short", nil)
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return apperr.NewDecryptionFailedError("crypto: auth tag mismatch, cannot decrypt", err)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(plaintext, out)
}
