// Package cryptox holds the authenticated-encryption primitives used by the
// vault: versioned AES-256-GCM blobs, HKDF sub-key derivation and the text
// encoding used for keys and ciphertexts at rest.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/sbetterfy/internal/common"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the length of every symmetric key handled here (AES-256).
const KeySize = 32

const (
	blobVersion = 0x01
	nonceSize   = 12
)

var (
	// ErrMalformed means the blob is too short or carries an unknown version.
	ErrMalformed = errors.New("malformed ciphertext")
	// ErrAuthFailed means the blob did not authenticate under the given key
	// and associated data.
	ErrAuthFailed = errors.New("message authentication failed")
	// ErrInvalidKey means the key is not KeySize bytes long.
	ErrInvalidKey = errors.New("invalid key size")
)

// GenerateKey returns a fresh random key.
func GenerateKey() []byte {
	return common.GenerateRandByteArray(KeySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal encrypts plaintext with AES-256-GCM and returns
// version || nonce || ciphertext+tag. aad is authenticated but not stored,
// so the same aad must be supplied to Open.
//
// A new random 12-byte nonce is generated on every call.
func Seal(key, plaintext, aad []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 1+nonceSize, 1+nonceSize+len(plaintext)+aesgcm.Overhead())
	out[0] = blobVersion
	copy(out[1:], common.GenerateRandByteArray(nonceSize))

	return aesgcm.Seal(out, out[1:1+nonceSize], plaintext, aad), nil
}

// Open reverses Seal. Tampering, a wrong key or a different aad all yield
// ErrAuthFailed; structurally invalid input yields ErrMalformed.
func Open(key, blob, aad []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < 1+nonceSize+aesgcm.Overhead() {
		return nil, ErrMalformed
	}
	if blob[0] != blobVersion {
		return nil, fmt.Errorf("%w: version %d", ErrMalformed, blob[0])
	}

	plaintext, err := aesgcm.Open(nil, blob[1:1+nonceSize], blob[1+nonceSize:], aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	// Open on an empty message returns nil; callers distinguish nil from "".
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// DeriveKey derives a KeySize sub-key from master using HKDF-SHA256 with the
// given info label. Distinct labels give independent keys.
func DeriveKey(master []byte, info string) ([]byte, error) {
	if len(master) != KeySize {
		return nil, ErrInvalidKey
	}
	out := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fingerprint returns a short non-secret identifier for key. It is stored
// next to wrapped keys to record which master key produced them.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(append([]byte("sbetterfy/fingerprint/v1:"), key...))
	return hex.EncodeToString(sum[:8])
}

// EncodeText renders a binary blob for a TEXT column.
func EncodeText(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeText parses a value produced by EncodeText.
func DecodeText(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return b, nil
}

// ParseKey decodes textual key material. Standard and URL-safe base64, with
// or without padding, are accepted as long as the result is KeySize bytes,
// which also covers Fernet-formatted keys.
func ParseKey(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	}
	for _, enc := range encodings {
		b, err := enc.DecodeString(text)
		if err == nil && len(b) == KeySize {
			return b, nil
		}
	}
	return nil, ErrInvalidKey
}

// FormatKey renders key the way ParseKey expects it (URL-safe base64).
func FormatKey(key []byte) string {
	return base64.URLEncoding.EncodeToString(key)
}
