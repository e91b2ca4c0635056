// Package nntp implements the NNTP front-end: the TCP listener, the
// per-connection session state machine and the command handlers. Articles
// are served through the storage.Router the server is constructed with.
package nntp

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/papercut-news/go-papercut/internal/auth"
	"github.com/papercut-news/go-papercut/internal/config"
	"github.com/papercut-news/go-papercut/internal/eventlog"
	"github.com/papercut-news/go-papercut/internal/metrics"
	"github.com/papercut-news/go-papercut/internal/storage"
)

// Version appears in the greeting and XVERSION replies.
const Version = "1.0.0"

const (
	// NNTP protocol constants
	DOT  = "."
	CR   = "\r"
	LF   = "\n"
	CRLF = CR + LF
)

// DefaultIdleTimeout is how long a session may sit between commands
// before the connection is dropped.
var DefaultIdleTimeout = 180 * time.Second

// Server is the NNTP server: one listener, one goroutine per accepted
// connection.
type Server struct {
	Config   *config.Config
	Router   *storage.Router
	Auth     auth.Authenticator // nil unless nntp_auth is enabled
	Stats    *ServerStats
	Events   *eventlog.Logger
	Metrics  metrics.Collector
	Listener net.Listener

	// IdleTimeout overrides DefaultIdleTimeout when non-zero.
	IdleTimeout time.Duration

	shutdown chan struct{}
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
}

// NewServer creates an NNTP server instance. The main waitgroup is shared
// so the daemon can drain every handler on shutdown.
func NewServer(cfg *config.Config, router *storage.Router, authenticator auth.Authenticator, events *eventlog.Logger, collector metrics.Collector, mainWG *sync.WaitGroup) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("server config cannot be nil")
	}
	if router == nil {
		return nil, fmt.Errorf("backend router cannot be nil")
	}
	if mainWG == nil {
		return nil, fmt.Errorf("main waitgroup cannot be nil")
	}
	if cfg.AuthEnabled() && authenticator == nil {
		return nil, fmt.Errorf("nntp_auth is enabled but no authenticator was provided")
	}
	if events == nil {
		events = eventlog.New("")
	}
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	return &Server{
		Config:   cfg,
		Router:   router,
		Auth:     authenticator,
		Stats:    NewServerStats(),
		Events:   events,
		Metrics:  collector,
		shutdown: make(chan struct{}),
		wg:       mainWG,
	}, nil
}

func (s *Server) idleTimeout() time.Duration {
	if s.IdleTimeout > 0 {
		return s.IdleTimeout
	}
	return DefaultIdleTimeout
}

// Start opens the listener and begins accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	listener, err := net.Listen("tcp", s.Config.Addr())
	if err != nil {
		return fmt.Errorf("failed to start NNTP listener on %s: %w", s.Config.Addr(), err)
	}
	s.Listener = listener
	log.Printf("NNTP server listening on %s", s.Config.Addr())

	s.wg.Add(1)
	go s.serve(listener)

	s.running = true
	return nil
}

// serve accepts connections until shutdown.
func (s *Server) serve(listener net.Listener) {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.shutdown:
					return
				default:
					log.Printf("Error accepting connection: %v", err)
					continue
				}
			}

			if s.Config.MaxConnections > 0 && s.Stats.GetActiveConnections() >= s.Config.MaxConnections {
				log.Printf("Connection limit reached, rejecting connection from %s", conn.RemoteAddr())
				conn.Close()
				continue
			}

			s.wg.Add(1)
			go s.handleConnection(conn)
		}
	}
}

// handleConnection runs one client session to completion.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	s.Stats.ConnectionStarted()
	s.Metrics.ConnectionOpened()
	defer func() {
		s.Stats.ConnectionEnded()
		s.Metrics.ConnectionClosed()
	}()

	client := NewClientConnection(conn, s)
	s.Events.Printf("Connection from %s", client.remoteHost)
	client.Handle()
	s.Events.Printf("Connection closed (%s)", client.remoteHost)
}

// Stop closes the listener; active handlers drain through the shared
// waitgroup in main.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	log.Println("Shutting down NNTP server...")
	close(s.shutdown)
	if s.Listener != nil {
		s.Listener.Close()
	}
	s.running = false
	return nil
}

// IsRunning returns whether the server is currently accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
