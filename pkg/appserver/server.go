// Package appserver serves a built fixture over HTTP. A Server is the running
// App Instance that browser tests navigate: it renders route documents,
// answers loader data requests and serves static assets from public/.
package appserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/thesyncim/bugreport/pkg/fixture"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("appserver: closed")

const closeTimeout = 5 * time.Second

// Config holds server configuration options.
type Config struct {
	Addr         string        // Listen address (e.g., ":8080" or ":0" for random port)
	ReadTimeout  time.Duration // HTTP read timeout
	WriteTimeout time.Duration // HTTP write timeout

	// CloseFixture makes Close also remove the fixture's files.
	CloseFixture bool

	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns a configuration suitable for testing.
// Uses ":0" to bind to a random available port.
func DefaultConfig() Config {
	return Config{
		Addr:         ":0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is one App Instance wrapping one Fixture.
type Server struct {
	fx         *fixture.Fixture
	cfg        Config
	httpServer *http.Server
	listener   net.Listener
	addr       string
	log        logging.LeveledLogger

	mu      sync.Mutex
	running bool
	closed  bool

	closeOnce sync.Once
	closeErr  error
}

// NewServer creates a new server for fx.
// The server is not started until Start() is called.
func NewServer(fx *fixture.Fixture, cfg Config) (*Server, error) {
	if fx == nil {
		return nil, errors.New("appserver: nil fixture")
	}
	if fx.Closed() {
		return nil, fmt.Errorf("appserver: %w", fixture.ErrClosed)
	}
	if cfg.LoggerFactory == nil {
		cfg.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	s := &Server{
		fx:  fx,
		cfg: cfg,
		log: cfg.LoggerFactory.NewLogger("appserver"),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s, nil
}

// Create builds an App Instance for fx and starts it.
func Create(fx *fixture.Fixture, cfg Config) (*Server, error) {
	s, err := NewServer(fx, cfg)
	if err != nil {
		return nil, err
	}
	if _, err := s.Start(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins listening and serving HTTP requests.
// Returns the actual address the server is listening on (useful when port is 0).
// This method is non-blocking - the server runs in a goroutine.
func (s *Server) Start() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	if s.running {
		return s.addr, nil
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.listener = ln
	s.addr = ln.Addr().String()
	s.running = true

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("serve %s: %v", s.addr, err)
		}
	}()

	s.log.Infof("serving fixture %s on %s", s.fx.ID, s.addr)
	return s.addr, nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	return s.httpServer.Shutdown(ctx)
}

// Close releases the App Instance. It runs exactly once; later calls return
// the first result.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()

		err := s.Shutdown(ctx)
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		if s.cfg.CloseFixture {
			err = errors.Join(err, s.fx.Close())
		}
		s.closeErr = err
		s.log.Infof("closed fixture %s", s.fx.ID)
	})
	return s.closeErr
}

// Closed reports whether Close has been called.
func (s *Server) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Addr returns the address the server is listening on.
// Returns empty string if server is not running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// BaseURL returns the URL a browser should use to reach the server.
// Wildcard listen addresses are mapped to localhost.
func (s *Server) BaseURL() string {
	addr := s.Addr()
	if addr == "" {
		return ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Fixture returns the fixture being served.
func (s *Server) Fixture() *fixture.Fixture {
	return s.fx
}
