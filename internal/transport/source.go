// Package transport adapts connections to the byte source consumed by the
// handshake detector.
package transport

import (
	"bufio"
	"errors"
	"net"
	"os"
	"time"
)

// ByteSource is a pull-based byte stream.
// DataAvailable reports whether a byte can be read right now; false means
// "nothing more at the moment", not "closed".
type ByteSource interface {
	DataAvailable() bool
	ReadByte() (byte, error)
}

// BufferSource serves bytes from a fixed slice.
type BufferSource struct {
	data []byte
	pos  int
}

// NewBufferSource returns a source over data. The slice is not copied.
func NewBufferSource(data []byte) *BufferSource {
	return &BufferSource{data: data}
}

// DataAvailable reports whether unread bytes remain.
func (s *BufferSource) DataAvailable() bool {
	return s.pos < len(s.data)
}

// ReadByte returns the next byte, or ErrNoData once the slice is consumed.
func (s *BufferSource) ReadByte() (byte, error) {
	if s.pos >= len(s.data) {
		return 0, ErrNoData
	}
	b := s.data[s.pos]
	s.pos++
	return b, nil
}

// Remaining returns the unread part of the slice.
func (s *BufferSource) Remaining() []byte {
	return s.data[s.pos:]
}

// ErrNoData is returned by ReadByte when no byte is available.
var ErrNoData = errors.New("no data available")

// DefaultProbeWait is how long ConnSource waits for the next byte before
// reporting that nothing is available.
const DefaultProbeWait = 50 * time.Millisecond

// ConnSource reads from a net.Conn through a buffered reader.
// DataAvailable never blocks longer than the probe wait.
//
// The buffered reader is shared with the session after the handshake, so
// bytes read ahead during the probe are not lost.
type ConnSource struct {
	conn     net.Conn
	r        *bufio.Reader
	wait     time.Duration
	deadline time.Time
	err      error
}

// NewConnSource wraps conn. A non-positive wait selects DefaultProbeWait.
func NewConnSource(conn net.Conn, wait time.Duration) *ConnSource {
	if wait <= 0 {
		wait = DefaultProbeWait
	}
	return &ConnSource{
		conn: conn,
		r:    bufio.NewReader(conn),
		wait: wait,
	}
}

// SetDeadline sets the read deadline of the whole exchange. DataAvailable
// never waits past it and restores it after each wait. A zero value
// clears it.
func (s *ConnSource) SetDeadline(t time.Time) error {
	if err := s.conn.SetReadDeadline(t); err != nil {
		return err
	}
	s.deadline = t
	return nil
}

// DataAvailable reports whether a byte is buffered or arrives within the
// probe wait, bounded by the deadline. Timeouts report false; any other
// read error is kept in Err.
func (s *ConnSource) DataAvailable() bool {
	if s.err != nil {
		return false
	}
	if s.r.Buffered() > 0 {
		return true
	}

	peekUntil := time.Now().Add(s.wait)
	if !s.deadline.IsZero() && s.deadline.Before(peekUntil) {
		peekUntil = s.deadline
	}
	if err := s.conn.SetReadDeadline(peekUntil); err != nil {
		s.err = err
		return false
	}
	_, err := s.r.Peek(1)
	// Возвращаем внешний deadline
	resetErr := s.conn.SetReadDeadline(s.deadline)
	if err != nil && !isTimeout(err) {
		s.err = err
	} else if resetErr != nil {
		s.err = resetErr
	}
	return err == nil
}

// ReadByte reads one byte.
func (s *ConnSource) ReadByte() (byte, error) {
	return s.r.ReadByte()
}

// Reader returns the buffered reader positioned after the bytes consumed so far.
func (s *ConnSource) Reader() *bufio.Reader {
	return s.r
}

// Err returns the first non-timeout error seen by DataAvailable.
func (s *ConnSource) Err() error {
	return s.err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
