// Package e2e implements the conversation key-derivation contract shared with clients.
// The server treats message content as opaque; these helpers exist so operators and
// tests can produce and read the same ciphertext a client would.
//
// Key: PBKDF2-HMAC-SHA256 over "<lower id>:<higher id>:<conversation id>:e2e" with a
// 16-byte zero salt. Ciphertext wire form: base64(sealed) + "|" + base64(nonce), AES-256-GCM.
package e2e

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strings"

	"friendchat/backend/internal/config"

	"golang.org/x/crypto/pbkdf2"
)

const (
	separator = "|"
	nonceSize = 12
	saltSize  = 16
)

var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// DeriveConversationKey returns the AES-256 key both participants derive for a
// conversation. Argument order of the user ids does not matter.
func DeriveConversationKey(userA, userB, conversationID string) []byte {
	ids := []string{userA, userB}
	sort.Strings(ids)
	material := ids[0] + ":" + ids[1] + ":" + conversationID + ":e2e"
	return pbkdf2.Key([]byte(material), make([]byte, saltSize), config.E2EIterations, config.E2EKeyLength, sha256.New)
}

// Encrypt seals plaintext under key with a random nonce.
func Encrypt(key []byte, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed) + separator + base64.StdEncoding.EncodeToString(nonce), nil
}

// Decrypt opens a wire-form ciphertext. Content without a separator is plaintext and is
// returned unchanged.
func Decrypt(key []byte, wire string) (string, error) {
	if !strings.Contains(wire, separator) {
		return wire, nil
	}
	parts := strings.Split(wire, separator)
	if len(parts) != 2 {
		return "", ErrMalformedCiphertext
	}
	sealed, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil || len(nonce) != nonceSize {
		return "", ErrMalformedCiphertext
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes key: %w", err)
	}
	return cipher.NewGCM(block)
}
