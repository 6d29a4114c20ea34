package protocol

import (
	"bytes"
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/uologin/internal/constants"
	"github.com/udisondev/uologin/internal/crypto"
)

var testKey = crypto.DeriveKey(crypto.Version{Major: 6, Minor: 0, Patch: 14})

func TestWritePacket_ReadPacket_RoundTrip(t *testing.T) {
	payload := []byte("post-handshake payload")

	var wire bytes.Buffer
	buf := make([]byte, 64)
	require.NoError(t, WritePacket(&wire, crypto.NewLoginCrypt(1, testKey), buf, payload))
	require.Equal(t, len(payload), wire.Len())
	assert.NotEqual(t, payload, wire.Bytes())

	got, err := ReadPacket(&wire, crypto.NewLoginCrypt(1, testKey), make([]byte, len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWritePacket_BufferTooSmall(t *testing.T) {
	var wire bytes.Buffer
	err := WritePacket(&wire, crypto.NewLoginCrypt(1, testKey), make([]byte, 2), []byte{1, 2, 3})

	require.ErrorIs(t, err, ErrBufferOverflow)
	assert.Zero(t, wire.Len())
}

func TestReadPacket_ShortInput(t *testing.T) {
	_, err := ReadPacket(bytes.NewReader([]byte{1, 2}), crypto.NewLoginCrypt(1, testKey), make([]byte, 4))
	require.Error(t, err)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWritePacket_WriterError(t *testing.T) {
	err := WritePacket(failingWriter{}, crypto.NewLoginCrypt(1, testKey), make([]byte, 4), []byte{1})
	require.ErrorContains(t, err, "broken pipe")
}

func TestEncryptingWriter_DecryptingReader(t *testing.T) {
	original := make([]byte, 500)
	for i := range original {
		original[i] = byte(i * 13)
	}
	input := bytes.Clone(original)

	var wire bytes.Buffer
	w := NewEncryptingWriter(&wire, crypto.NewLoginCrypt(0xCAFE, testKey))
	for chunk := range slices.Chunk(input, 37) {
		n, err := w.Write(chunk)
		require.NoError(t, err)
		require.Equal(t, len(chunk), n)
	}
	assert.Equal(t, original, input, "Write must not modify its argument")

	// Одним вызовом через свежий шифр: тот же поток
	oneShot := make([]byte, len(original))
	crypto.NewLoginCrypt(0xCAFE, testKey).Transform(oneShot, original)
	require.Equal(t, oneShot, wire.Bytes())

	r := NewDecryptingReader(&wire, crypto.NewLoginCrypt(0xCAFE, testKey))
	got := make([]byte, len(original))
	_, err := r.Read(got[:100])
	require.NoError(t, err)
	_, err = r.Read(got[100:])
	require.NoError(t, err)
	assert.Equal(t, original, got)
}

func TestBuildLoginRequest(t *testing.T) {
	buf := make([]byte, constants.LoginRequestSize)
	n, err := BuildLoginRequest(buf, "admin", "secret", 0xFF)
	require.NoError(t, err)
	require.Equal(t, constants.LoginRequestSize, n)

	assert.Equal(t, byte(0x80), buf[0])
	assert.Equal(t, "admin", string(buf[1:6]))
	assert.Equal(t, make([]byte, 25), buf[6:31])
	assert.Equal(t, "secret", string(buf[31:37]))
	assert.Equal(t, make([]byte, 24), buf[37:61])
	assert.Equal(t, byte(0xFF), buf[61])
}

func TestBuildLoginRequest_Errors(t *testing.T) {
	tests := []struct {
		name     string
		bufSize  int
		account  string
		password string
	}{
		{name: "buffer too small", bufSize: 40, account: "a", password: "b"},
		{name: "account too long", bufSize: 62, account: string(make([]byte, 31)), password: "b"},
		{name: "password too long", bufSize: 62, account: "a", password: string(make([]byte, 31))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildLoginRequest(make([]byte, tt.bufSize), tt.account, tt.password, 0)
			assert.ErrorIs(t, err, ErrBufferOverflow)
		})
	}
}

func TestPacketWriter(t *testing.T) {
	buf := make([]byte, 16)
	w := NewPacketWriter(buf)

	require.NoError(t, w.WriteByte(0x01))
	require.NoError(t, w.WriteUint16(0x0203))
	require.NoError(t, w.WriteUint32(0x04050607))
	require.NoError(t, w.WriteInt32(-1))
	n, err := w.Write([]byte{0x08, 0x09})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	assert.Equal(t, 13, w.Position())
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0xFF, 0xFF, 0xFF, 0xFF, 0x08, 0x09}, w.Bytes())

	err = w.WriteUint32(0)
	require.ErrorIs(t, err, ErrBufferOverflow)
	assert.Equal(t, 13, w.Position(), "failed write must not advance")
}

func TestPacketWriter_FixedStringPadsStaleBytes(t *testing.T) {
	buf := bytes.Repeat([]byte{0xEE}, 8)
	w := NewPacketWriter(buf)

	require.NoError(t, w.WriteFixedString("ab", 8))
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0, 0, 0}, buf)
}
