package login

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/udisondev/uologin/internal/config"
	"github.com/udisondev/uologin/internal/crypto"
	"github.com/udisondev/uologin/internal/diag"
	"github.com/udisondev/uologin/internal/handshake"
	"github.com/udisondev/uologin/internal/model"
	"github.com/udisondev/uologin/internal/protocol"
	"github.com/udisondev/uologin/internal/transport"
)

const tracerName = "uologin/login"

// ServerOption is a functional option for Server configuration.
type ServerOption func(*Server)

// WithSessionManager sets a custom SessionManager (useful for testing).
func WithSessionManager(sm *SessionManager) ServerOption {
	return func(s *Server) {
		s.sessionManager = sm
	}
}

// WithTracer replaces the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) ServerOption {
	return func(s *Server) {
		s.tracer = t
	}
}

// Server accepts client connections, detects the login key of each one
// and hands the session to a SessionHandler.
type Server struct {
	cfg            config.LoginProxy
	detector       *handshake.Detector
	repo           DetectionRepository
	handler        SessionHandler
	sessionManager *SessionManager
	tracer         trace.Tracer

	defaultVersion *crypto.Version
	nextID         atomic.Uint64

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a login gateway.
// A nil detector is built from cfg's key table, a nil repo disables the
// history and a nil handler selects DumpHandler.
func NewServer(
	cfg config.LoginProxy,
	detector *handshake.Detector,
	repo DetectionRepository,
	handler SessionHandler,
	opts ...ServerOption,
) (*Server, error) {
	defaultVersion, err := cfg.DefaultVersionHint()
	if err != nil {
		return nil, fmt.Errorf("creating login server: %w", err)
	}

	if detector == nil {
		table, err := cfg.KeyTable()
		if err != nil {
			return nil, fmt.Errorf("creating login server: %w", err)
		}
		detector = handshake.NewDetector(table)
	}
	if repo == nil {
		repo = NopDetectionRepository{}
	}
	if handler == nil {
		handler = NewDumpHandler(nil)
	}

	s := &Server{
		cfg:            cfg,
		detector:       detector,
		repo:           repo,
		handler:        handler,
		sessionManager: NewSessionManager(),
		tracer:         otel.Tracer(tracerName),
		defaultVersion: defaultVersion,
	}

	// Применяем опции
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s, nil
}

// SessionManager возвращает менеджер активных сессий.
func (s *Server) SessionManager() *SessionManager {
	return s.sessionManager
}

// Addr возвращает адрес, на котором слушает сервер.
// Возвращает nil если сервер ещё не запущен.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close закрывает listener и останавливает сервер.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run listens on cfg.BindAddress:cfg.Port and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.BindAddress, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve принимает готовый listener и запускает accept loop.
// Возвращает управление после закрытия всех соединений.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-done:
		}
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		slog.Info("login proxy started", "address", ln.Addr(), "keys", s.detector.Table().Len())
		acceptLoop(ctx, &wg, s, ln)
	})

	wg.Wait()

	return nil
}

func acceptLoop(
	ctx context.Context,
	wg *sync.WaitGroup,
	srv *Server,
	ln net.Listener,
) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("failed to accept new connection", "err", err)
				continue
			}
			wg.Go(func() {
				handleConnection(ctx, srv, conn)
			})
		}
	}
}

func handleConnection(ctx context.Context, srv *Server, conn net.Conn) {
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		slog.Error("failed to split host port", "connection", conn.RemoteAddr(), "err", err)
		return
	}

	slog.Debug("new connection", "remote", host)

	sess, err := srv.bootstrap(ctx, conn, host)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			slog.Debug("client left during handshake", "remote", host, "err", err)
			return
		}
		slog.Warn("handshake failed", "remote", host, "err", err)
		return
	}

	srv.sessionManager.Store(sess)
	defer srv.sessionManager.Remove(sess.ID())

	if err := srv.handler.HandleSession(ctx, sess); err != nil && ctx.Err() == nil {
		slog.Warn("session ended with error", "remote", host, "session", sess.ID(), "err", err)
	}
}

// bootstrap reads the seed and the probe and returns the ready session.
// The handshake deadline covers the whole exchange.
func (s *Server) bootstrap(ctx context.Context, conn net.Conn, host string) (*Session, error) {
	src := transport.NewConnSource(conn, s.cfg.ProbeWait)
	if s.cfg.HandshakeTimeout > 0 {
		if err := src.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout)); err != nil {
			return nil, fmt.Errorf("setting handshake deadline: %w", err)
		}
	}
	sess := newSession(s.nextID.Add(1), conn, src.Reader(), host)

	seed, err := protocol.ReadSeed(src.Reader())
	if err != nil {
		return nil, err
	}
	sess.setSeed(seed)

	hint, hintSource := s.versionHint(ctx, host, seed)

	ctx, span := s.tracer.Start(ctx, "login.detect",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("net.peer.ip", host),
			attribute.Int64("login.seed", int64(seed.Value)),
			attribute.String("login.hint_source", hintSource),
		),
	)
	defer span.End()

	start := time.Now()
	res, err := s.detector.Detect(seed.Value, src, hint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "probe read failed")
		return nil, fmt.Errorf("detecting login key: %w", err)
	}
	if srcErr := src.Err(); srcErr != nil {
		slog.Debug("probe cut short", "remote", host, "err", srcErr)
	}

	if err := src.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("clearing handshake deadline: %w", err)
	}

	span.SetAttributes(
		attribute.Bool("login.detected", res.Detected()),
		attribute.Bool("login.unencrypted", res.Unencrypted),
		attribute.Int("login.attempts", res.Attempts),
		attribute.Int("login.probe_length", len(res.Data)),
	)
	if res.Detected() {
		span.SetAttributes(attribute.String("login.version", res.Version.String()))
	}

	s.logResult(host, seed, res, hintSource, time.Since(start))
	if s.cfg.Diagnostics.Enabled {
		diag.LogBytes(ctx, slog.Default(), "client", "probe", res.Data, "remote", host)
	}

	if err := s.repo.RecordDetection(ctx, newDetection(host, seed, res)); err != nil {
		slog.Warn("failed to record detection", "remote", host, "err", err)
	}

	sess.setResult(res)
	return sess, nil
}

// versionHint picks the version tried before the key table: the seed
// packet version, then the last version recorded for host, then the
// configured default.
func (s *Server) versionHint(ctx context.Context, host string, seed protocol.Seed) (*crypto.Version, string) {
	if seed.Version != nil {
		return seed.Version, "seed"
	}

	v, ok, err := s.repo.LastVersion(ctx, host)
	if err != nil {
		slog.Warn("failed to load version history", "remote", host, "err", err)
	} else if ok {
		return &v, "history"
	}

	if s.defaultVersion != nil {
		return s.defaultVersion, "config"
	}
	return nil, "none"
}

func (s *Server) logResult(host string, seed protocol.Seed, res handshake.Result, hintSource string, took time.Duration) {
	attrs := []any{
		"remote", host,
		"seed", fmt.Sprintf("0x%08X", seed.Value),
		"hint", hintSource,
		"attempts", res.Attempts,
		"probe_length", len(res.Data),
		"took", took,
	}
	switch {
	case res.Detected():
		slog.Info("login key detected", append(attrs, "version", res.Version.String(), "key", res.Key.String())...)
	case res.Unencrypted:
		slog.Info("unencrypted login", attrs...)
	default:
		slog.Warn("login key not detected", attrs...)
	}
}

func newDetection(host string, seed protocol.Seed, res handshake.Result) model.Detection {
	d := model.Detection{
		RemoteIP:    host,
		Seed:        seed.Value,
		Detected:    res.Detected(),
		Unencrypted: res.Unencrypted,
		ProbeLength: len(res.Data),
		Attempts:    res.Attempts,
		CreatedAt:   time.Now(),
	}
	if res.Detected() {
		d.Version = res.Version.String()
		d.Key1, d.Key2, d.Key3 = res.Key.K1, res.Key.K2, res.Key.K3
	}
	return d
}
