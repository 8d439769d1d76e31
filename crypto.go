package main

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/awnumar/memguard"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

// Cipher suites accepted by the "cipher" config key.
const (
	SuiteAESGCM   = "aes-256-gcm"
	SuiteChaCha20 = "chacha20-poly1305"
)

var (
	ErrKeySize        = errors.New("key must be exactly 32 bytes")
	ErrNonceSize      = errors.New("nonce must be exactly 12 bytes")
	ErrAuthentication = errors.New("message authentication failed")
	ErrUnknownSuite   = errors.New("unknown cipher suite")
)

// Cipher is a stateless AEAD codec over a fixed 256-bit key. It is safe for
// concurrent use by the channel, discovery and UI goroutines.
type Cipher struct {
	aead  cipher.AEAD
	suite string
}

// NewCipher builds a Cipher for the given suite. An empty suite selects
// AES-256-GCM.
func NewCipher(key []byte, suite string) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d", ErrKeySize, len(key))
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch strings.ToLower(suite) {
	case "", SuiteAESGCM:
		suite = SuiteAESGCM
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create AES block: %w", err)
		}
		aead, err = cipher.NewGCM(block)
	case SuiteChaCha20:
		suite = SuiteChaCha20
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuite, suite)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}

	return &Cipher{aead: aead, suite: suite}, nil
}

// NewCipherFromEnclave opens the sealed key just long enough to expand it
// into the AEAD state.
func NewCipherFromEnclave(enclave *memguard.Enclave, suite string) (*Cipher, error) {
	if enclave == nil {
		return nil, fmt.Errorf("%w: got 0", ErrKeySize)
	}
	buf, err := enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open key enclave: %w", err)
	}
	defer buf.Destroy()

	return NewCipher(buf.Bytes(), suite)
}

// Suite returns the canonical suite name.
func (c *Cipher) Suite() string {
	return c.suite
}

// Seal encrypts plaintext under nonce and returns ciphertext||tag. The caller
// must never reuse a nonce with the same key.
func (c *Cipher) Seal(nonce, plaintext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrNonceSize
	}
	return c.aead.Seal(nil, nonce, plaintext, nil), nil
}

// Open verifies and decrypts ciphertext||tag. Any verification failure,
// including truncation or a foreign key, yields ErrAuthentication.
func (c *Cipher) Open(nonce, ciphertext []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrNonceSize
	}
	if len(ciphertext) < TagSize {
		return nil, ErrAuthentication
	}
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthentication
	}
	return plaintext, nil
}

// NewNonce draws a fresh nonce from crypto/rand.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return nonce, nil
}

// GenerateKey returns a fresh random key in hex, for --gen-key.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	defer memguard.WipeBytes(key)
	return EncodeWireString(key), nil
}
