package login

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/uologin/internal/crypto"
	"github.com/udisondev/uologin/internal/handshake"
	"github.com/udisondev/uologin/internal/protocol"
	"github.com/udisondev/uologin/internal/testutil"
)

func TestSession_StateTransitions(t *testing.T) {
	_, server := testutil.PipeConn(t)
	s := newSession(1, server, bufio.NewReader(server), "127.0.0.1")
	assert.Equal(t, StateConnected, s.State())

	s.setSeed(protocol.Seed{Value: 5})
	assert.Equal(t, StateSeeded, s.State())
	assert.Equal(t, uint32(5), s.Seed().Value)

	tests := []struct {
		name string
		res  handshake.Result
		want ConnectionState
	}{
		{name: "detected", res: handshake.Result{Cipher: crypto.NewLoginCrypt(5, crypto.KeyTriple{})}, want: StateDetected},
		{name: "unencrypted", res: handshake.Result{Unencrypted: true}, want: StateUnencrypted},
		{name: "undetected", res: handshake.Result{}, want: StateUndetected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.setResult(tt.res)
			assert.Equal(t, tt.want, s.State())
		})
	}
}

func TestSession_ReadDecryptsWithLiveCipher(t *testing.T) {
	client, server := testutil.PipeConn(t)
	key := crypto.DeriveKey(crypto.Version{Major: 6, Minor: 0, Patch: 5})
	const seed = 0xDEADBEEF

	plain := []byte("login request followed by more traffic")
	wire := make([]byte, len(plain))
	crypto.NewLoginCrypt(seed, key).Encrypt(wire, plain)

	// The server side already consumed the first 8 bytes as the probe.
	dec := crypto.NewLoginCrypt(seed, key)
	probe := make([]byte, 8)
	dec.Decrypt(probe, wire[:8])

	s := newSession(2, server, bufio.NewReader(server), "10.1.1.1")
	s.setResult(handshake.Result{Data: probe, Cipher: dec, Key: key})

	go func() {
		_, _ = client.Write(wire[8:])
		_ = client.Close()
	}()

	rest, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, plain[8:], rest)
	assert.Equal(t, plain[:8], s.Probe())
	assert.Equal(t, "10.1.1.1", s.RemoteIP())
	assert.Equal(t, uint64(2), s.ID())
}

func TestSession_ReaderFollowsResult(t *testing.T) {
	_, server := testutil.PipeConn(t)
	r := bufio.NewReader(server)
	s := newSession(7, server, r, "127.0.0.1")
	assert.Same(t, r, s.in)

	s.setResult(handshake.Result{Cipher: crypto.NewLoginCrypt(1, crypto.KeyTriple{K1: 1, K2: 2, K3: 3})})
	assert.IsType(t, &protocol.DecryptingReader{}, s.in)

	s.setResult(handshake.Result{Unencrypted: true})
	assert.Same(t, r, s.in)
}

func TestSession_ReadPassesThroughWithoutCipher(t *testing.T) {
	client, server := testutil.PipeConn(t)
	s := newSession(3, server, bufio.NewReader(server), "127.0.0.1")
	s.setResult(handshake.Result{Data: []byte{0xFF}})

	go func() {
		_, _ = client.Write([]byte{1, 2, 3})
		_ = client.Close()
	}()

	got, err := io.ReadAll(s)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestSession_WriteIsRaw(t *testing.T) {
	client, server := testutil.PipeConn(t)
	s := newSession(4, server, bufio.NewReader(server), "127.0.0.1")
	s.setResult(handshake.Result{Cipher: crypto.NewLoginCrypt(1, crypto.DeriveKey(crypto.Version{Major: 2}))})

	go func() { _, _ = s.Write([]byte{0xA8, 0x00}) }()

	got := make([]byte, 2)
	_, err := io.ReadFull(client, got)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA8, 0x00}, got)
	assert.Same(t, server, s.Conn())
}

func TestDumpHandler(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client, server := testutil.PipeConn(t)
	s := newSession(5, server, bufio.NewReader(server), "127.0.0.1")
	s.setResult(handshake.Result{})

	go func() {
		_, _ = client.Write([]byte("AB"))
		_ = client.Close()
	}()

	err := NewDumpHandler(logger).HandleSession(context.Background(), s)
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, "packet dump")
	assert.Contains(t, out, "0x41, 0x42")
	assert.Contains(t, out, "session finished")
	assert.Contains(t, out, "bytes=2")
}

func TestDumpHandler_ReadError(t *testing.T) {
	client, server := testutil.PipeConn(t)
	s := newSession(6, server, bufio.NewReader(server), "127.0.0.1")
	_ = client.Close()
	_ = server.Close()

	err := NewDumpHandler(nil).HandleSession(context.Background(), s)
	assert.Error(t, err, "a closed connection outside shutdown is reported")
}

func TestSessionHandlerFunc(t *testing.T) {
	var called *Session
	h := SessionHandlerFunc(func(_ context.Context, s *Session) error {
		called = s
		return nil
	})

	s := &Session{id: 9}
	require.NoError(t, h.HandleSession(context.Background(), s))
	assert.Same(t, s, called)
}
