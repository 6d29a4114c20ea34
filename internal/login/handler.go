package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"

	"github.com/udisondev/uologin/internal/constants"
	"github.com/udisondev/uologin/internal/diag"
)

// SessionHandler takes over a connection once the handshake is done.
// The connection is closed by the server after HandleSession returns.
type SessionHandler interface {
	HandleSession(ctx context.Context, s *Session) error
}

// SessionHandlerFunc adapts a function to SessionHandler.
type SessionHandlerFunc func(ctx context.Context, s *Session) error

func (f SessionHandlerFunc) HandleSession(ctx context.Context, s *Session) error {
	return f(ctx, s)
}

// DumpHandler reads a session until EOF and hex-dumps the decrypted
// bytes at debug level.
type DumpHandler struct {
	logger *slog.Logger
	pool   *BytePool
}

// NewDumpHandler creates a DumpHandler. A nil logger selects slog.Default().
func NewDumpHandler(logger *slog.Logger) *DumpHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DumpHandler{
		logger: logger,
		pool:   NewBytePool(constants.DefaultReadBufSize),
	}
}

func (h *DumpHandler) HandleSession(ctx context.Context, s *Session) error {
	var total int
	defer func() {
		h.logger.Debug("session finished", "remote", s.RemoteIP(), "session", s.ID(), "bytes", total)
	}()

	for {
		buf := h.pool.Get(constants.DefaultReadBufSize)
		n, err := s.Read(buf)
		if n > 0 {
			total += n
			diag.LogBytes(ctx, h.logger, "client", s.State().String(), buf[:n],
				"remote", s.RemoteIP(), "session", s.ID())
		}
		h.pool.Put(buf)

		if err != nil {
			if errors.Is(err, io.EOF) || (ctx.Err() != nil && errors.Is(err, net.ErrClosed)) {
				return nil
			}
			return fmt.Errorf("reading session: %w", err)
		}
	}
}
