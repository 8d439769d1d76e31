package main

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWire_RoundTrip(t *testing.T) {
	inputs := [][]byte{{}, {0x00}, {0xff, 0x00, 0x7f}}
	for i := 0; i < 50; i++ {
		b := make([]byte, i*7)
		_, err := rand.Read(b)
		require.NoError(t, err)
		inputs = append(inputs, b)
	}

	for _, in := range inputs {
		encoded := EncodeWire(in)
		assert.Len(t, encoded, len(in)*2)

		out, err := DecodeWire(encoded)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(in, out))
	}
}

func TestWire_LowerCaseHex(t *testing.T) {
	assert.Equal(t, "00ff10ab", string(EncodeWire([]byte{0x00, 0xff, 0x10, 0xab})))
}

func TestDecodeWire_Rejects(t *testing.T) {
	for _, s := range []string{
		"hello",
		"abc",    // odd length
		"zz",     // non-hex
		"00ff\n", // trailing newline
		"0x00ff", // prefix
		"안녕",     // multibyte
	} {
		_, err := DecodeWire([]byte(s))
		assert.ErrorIs(t, err, ErrDecode, "%q", s)
	}
}

func TestSealDatagram_OpenDatagram(t *testing.T) {
	c := newTestCipher(t, SuiteAESGCM)

	wire, err := SealDatagram(c, []byte("hello"))
	require.NoError(t, err)
	assert.Len(t, wire, (NonceSize+len("hello")+TagSize)*2)

	got, err := OpenDatagram(c, wire)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestSealDatagram_FreshNonce(t *testing.T) {
	c := newTestCipher(t, SuiteAESGCM)

	a, err := SealDatagram(c, []byte("same"))
	require.NoError(t, err)
	b, err := SealDatagram(c, []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a[:NonceSize*2], b[:NonceSize*2])
}

func TestOpenDatagram_Classification(t *testing.T) {
	c := newTestCipher(t, SuiteAESGCM)
	other, err := NewCipher(testKey(0x09), SuiteAESGCM)
	require.NoError(t, err)

	foreign, err := SealDatagram(other, []byte("hello"))
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"plain text", []byte("hi there"), ErrDecode},
		{"empty", []byte{}, ErrShortPayload},
		{"short", EncodeWire(make([]byte, NonceSize-1)), ErrShortPayload},
		{"nonce only", EncodeWire(make([]byte, NonceSize)), ErrAuthentication},
		{"foreign key", foreign, ErrAuthentication},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OpenDatagram(c, tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
