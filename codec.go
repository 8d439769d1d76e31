package main

import (
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrDecode       = errors.New("datagram is not valid hex")
	ErrShortPayload = errors.New("decoded payload shorter than a nonce")
)

// EncodeWire maps an envelope (nonce||ciphertext) to its lower-case hex wire form.
func EncodeWire(envelope []byte) []byte {
	out := make([]byte, hex.EncodedLen(len(envelope)))
	hex.Encode(out, envelope)
	return out
}

// EncodeWireString is EncodeWire returning a string.
func EncodeWireString(envelope []byte) string {
	return hex.EncodeToString(envelope)
}

// DecodeWire reverses EncodeWire. Non-hex characters or an odd length give
// ErrDecode; the caller treats that as foreign traffic, not a fault.
func DecodeWire(data []byte) ([]byte, error) {
	out := make([]byte, hex.DecodedLen(len(data)))
	n, err := hex.Decode(out, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return out[:n], nil
}

// SealDatagram encrypts plaintext under a fresh nonce and returns the wire bytes.
func SealDatagram(c *Cipher, plaintext []byte) ([]byte, error) {
	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}
	ciphertext, err := c.Seal(nonce, plaintext)
	if err != nil {
		return nil, err
	}

	envelope := make([]byte, 0, len(nonce)+len(ciphertext))
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)
	return EncodeWire(envelope), nil
}

// OpenDatagram decodes and decrypts wire bytes. The error is one of
// ErrDecode, ErrShortPayload or ErrAuthentication (use errors.Is). A payload
// shorter than a nonce never reaches the cipher.
func OpenDatagram(c *Cipher, data []byte) ([]byte, error) {
	envelope, err := DecodeWire(data)
	if err != nil {
		return nil, err
	}
	if len(envelope) < NonceSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPayload, len(envelope))
	}
	return c.Open(envelope[:NonceSize], envelope[NonceSize:])
}
