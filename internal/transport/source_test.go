package transport

import (
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/uologin/internal/testutil"
)

func TestBufferSource(t *testing.T) {
	src := NewBufferSource([]byte{1, 2, 3})

	var got []byte
	for src.DataAvailable() {
		b, err := src.ReadByte()
		require.NoError(t, err)
		got = append(got, b)
	}

	assert.Equal(t, []byte{1, 2, 3}, got)
	assert.Empty(t, src.Remaining())

	_, err := src.ReadByte()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestBufferSource_Remaining(t *testing.T) {
	src := NewBufferSource([]byte{1, 2, 3, 4})
	_, _ = src.ReadByte()

	assert.Equal(t, []byte{2, 3, 4}, src.Remaining())
}

func TestConnSource_ReadsWrittenBytes(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	go func() {
		_, _ = client.Write([]byte{0xAA, 0xBB, 0xCC})
	}()

	src := NewConnSource(server, time.Second)

	var got []byte
	for len(got) < 3 && src.DataAvailable() {
		b, err := src.ReadByte()
		require.NoError(t, err)
		got = append(got, b)
	}

	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, got)
	assert.NoError(t, src.Err())
}

func TestConnSource_NoDataIsNotAnError(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	src := NewConnSource(server, 10*time.Millisecond)

	assert.False(t, src.DataAvailable())
	assert.NoError(t, src.Err(), "timeout means nothing right now")

	// Данные, пришедшие позже, всё равно читаются
	go func() {
		_, _ = client.Write([]byte{0x01})
	}()
	src.wait = time.Second
	require.True(t, src.DataAvailable())
	b, err := src.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), b)
}

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()

	ln, addr := testutil.ListenTCP(t)
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	client, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server = <-accepted:
		require.NotNil(t, server)
	case <-time.After(5 * time.Second):
		t.Fatal("accept timed out")
	}
	t.Cleanup(func() { _ = server.Close() })

	return client, server
}

func TestConnSource_PeerClosed(t *testing.T) {
	client, server := tcpPair(t)
	require.NoError(t, client.Close())

	src := NewConnSource(server, time.Second)

	assert.False(t, src.DataAvailable())
	assert.ErrorIs(t, src.Err(), io.EOF)
	assert.False(t, src.DataAvailable(), "error is sticky")
}

func TestConnSource_PeerClosedAfterData(t *testing.T) {
	client, server := tcpPair(t)
	_, err := client.Write([]byte{0x80, 0x01})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	src := NewConnSource(server, time.Second)

	var got []byte
	for src.DataAvailable() {
		b, err := src.ReadByte()
		require.NoError(t, err)
		got = append(got, b)
	}
	assert.Equal(t, []byte{0x80, 0x01}, got, "buffered bytes come before EOF")
	assert.ErrorIs(t, src.Err(), io.EOF)
}

func TestConnSource_DeadlineBoundsSlowSender(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	src := NewConnSource(server, time.Second)
	require.NoError(t, src.SetDeadline(time.Now().Add(200*time.Millisecond)))

	// Один байт на каждые 40ms: каждое ожидание укладывается в wait
	go func() {
		for range 62 {
			if _, err := client.Write([]byte{0x80}); err != nil {
				return
			}
			time.Sleep(40 * time.Millisecond)
		}
	}()

	start := time.Now()
	n := 0
	for n < 62 && src.DataAvailable() {
		_, err := src.ReadByte()
		require.NoError(t, err)
		n++
	}
	elapsed := time.Since(start)

	assert.Less(t, n, 62)
	assert.Less(t, elapsed, time.Second, "the deadline ends the exchange, not the per-byte wait")
	assert.NoError(t, src.Err(), "an expired deadline reads as no data")
}

func TestConnSource_RestoresDeadline(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	src := NewConnSource(server, 10*time.Millisecond)
	require.NoError(t, src.SetDeadline(time.Now().Add(150*time.Millisecond)))

	assert.False(t, src.DataAvailable())

	start := time.Now()
	_, err := src.Reader().ReadByte()
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded, "plain reads still see the deadline")
	assert.Less(t, time.Since(start), 2*time.Second)

	require.NoError(t, src.SetDeadline(time.Time{}))
	go func() { _, _ = client.Write([]byte{0x07}) }()
	src.wait = time.Second
	require.True(t, src.DataAvailable())
	b, err := src.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x07), b)
}

func TestConnSource_ReaderKeepsReadAhead(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	go func() {
		_, _ = client.Write([]byte{1, 2, 3, 4, 5})
	}()

	src := NewConnSource(server, time.Second)
	require.True(t, src.DataAvailable())
	b, err := src.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(1), b)

	rest := make([]byte, 4)
	_, err = io.ReadFull(src.Reader(), rest)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 4, 5}, rest)
}

func TestNewConnSource_DefaultWait(t *testing.T) {
	_, server := net.Pipe()
	t.Cleanup(func() { _ = server.Close() })

	src := NewConnSource(server, 0)
	assert.Equal(t, DefaultProbeWait, src.wait)
}
