package login

import (
	"bufio"
	"io"
	"net"
	"sync"

	"github.com/udisondev/uologin/internal/handshake"
	"github.com/udisondev/uologin/internal/protocol"
)

// Session is a login connection after the bootstrap handshake.
//
// Read and Write are meant for the single goroutine running the
// SessionHandler; the accessors are safe from any goroutine.
type Session struct {
	id   uint64
	conn net.Conn
	r    *bufio.Reader
	in   io.Reader
	ip   string

	seed   protocol.Seed
	result handshake.Result
	state  ConnectionState

	mu sync.Mutex
}

// newSession binds a session to conn. r must be the reader the handshake
// consumed from, so bytes read ahead are not lost.
func newSession(id uint64, conn net.Conn, r *bufio.Reader, ip string) *Session {
	return &Session{
		id:    id,
		conn:  conn,
		r:     r,
		in:    r,
		ip:    ip,
		state: StateConnected,
	}
}

// ID returns the server-local session number.
func (s *Session) ID() uint64 {
	return s.id
}

// RemoteIP returns the client's remote IP address.
func (s *Session) RemoteIP() string {
	return s.ip
}

// Seed returns the seed the client opened the stream with.
func (s *Session) Seed() protocol.Seed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seed
}

func (s *Session) setSeed(seed protocol.Seed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
	s.state = StateSeeded
}

// Result returns the handshake outcome.
func (s *Session) Result() handshake.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) setResult(res handshake.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.result = res
	s.in = s.r
	if res.Cipher != nil {
		s.in = protocol.NewDecryptingReader(s.r, res.Cipher)
	}
	switch {
	case res.Detected():
		s.state = StateDetected
	case res.Unencrypted:
		s.state = StateUnencrypted
	default:
		s.state = StateUndetected
	}
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Probe returns the probe bytes: decrypted when a key matched, raw otherwise.
func (s *Session) Probe() []byte {
	return s.Result().Data
}

// Read reads the client stream past the probe. With a detected key the
// bytes are decrypted by the matched cipher, which continues where the
// probe left off. Otherwise they are returned as received.
func (s *Session) Read(p []byte) (int, error) {
	s.mu.Lock()
	in := s.in
	s.mu.Unlock()
	return in.Read(p)
}

// Write sends p to the client unmodified. Server to client traffic of the
// login phase is not encrypted.
func (s *Session) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// Conn returns the underlying connection.
func (s *Session) Conn() net.Conn {
	return s.conn
}
