package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/embosser-controller/controller"
	"github.com/nixxel-company-limited/embosser-controller/device"
	"github.com/nixxel-company-limited/embosser-controller/notify"
)

// Server is a line-oriented TCP console driving a print session controller
type Server struct {
	ctrl     *controller.Controller
	hub      *notify.Hub
	listener net.Listener
	address  string
	mu       sync.Mutex
	running  bool
	conns    map[net.Conn]struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   zerolog.Logger

	// DefaultPort and DefaultBaud are used by a bare "connect"
	DefaultPort string
	DefaultBaud int
	// Discover lists candidate serial ports for the "ports" command
	Discover func() ([]device.PortInfo, []device.Bridge, error)
}

// New creates a console for ctrl. Notifications published on hub are streamed
// to every client; hub may be nil
func New(ctrl *controller.Controller, hub *notify.Hub, address string, logger zerolog.Logger) *Server {
	return &Server{
		ctrl:     ctrl,
		hub:      hub,
		address:  address,
		conns:    make(map[net.Conn]struct{}),
		logger:   logger.With().Str("component", "server").Logger(),
		Discover: device.Discover,
	}
}

// Start starts the console and blocks until Stop is called
func (s *Server) Start() error {
	if err := s.listen("blocking"); err != nil {
		return err
	}
	s.logger.Info().Msg("ready to accept connections")
	s.wg.Add(1)
	s.acceptConnections()
	return nil
}

// StartAsync starts the console in a goroutine (non-blocking)
func (s *Server) StartAsync() error {
	if err := s.listen("async"); err != nil {
		return err
	}
	s.wg.Add(1)
	go s.acceptConnections()
	s.logger.Info().Msg("server started in background, ready to accept connections")
	return nil
}

func (s *Server) listen(mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info().Str("address", s.address).Str("mode", mode).Msg("starting server")

	if s.running {
		s.logger.Error().Msg("server already running")
		return fmt.Errorf("server already running")
	}

	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to start server")
		return fmt.Errorf("failed to start server: %w", err)
	}

	s.listener = listener
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.running = true
	s.logger.Info().Str("address", listener.Addr().String()).Msg("server listening")
	return nil
}

// acceptConnections handles incoming client connections
func (s *Server) acceptConnections() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()

			if !running {
				s.logger.Debug().Msg("server shutting down, stopping accept loop")
				return
			}
			s.logger.Warn().Err(err).Msg("error accepting connection")
			continue
		}

		s.mu.Lock()
		if !s.running {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		s.logger.Info().Str("client", conn.RemoteAddr().String()).Msg("client connected")
		go s.handleConnection(conn)
	}
}

// lineWriter serialises replies and streamed notifications on one connection
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) println(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := io.WriteString(l.w, line+"\n")
	return err
}

// handleConnection runs one console session
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	clientAddr := conn.RemoteAddr().String()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
		s.logger.Info().Str("client", clientAddr).Msg("client disconnected")
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	out := &lineWriter{w: conn}
	if s.hub != nil {
		notes, unsubscribe := s.hub.Subscribe(32)
		forwarded := make(chan struct{})
		go func() {
			defer close(forwarded)
			for n := range notes {
				if err := out.println(formatNotice(n)); err != nil {
					break
				}
			}
			s.logger.Debug().Str("client", clientAddr).Msg("notice stream closed")
		}()
		// The forwarder is joined before wg.Done
		defer func() {
			unsubscribe()
			conn.Close()
			<-forwarded
		}()
	}

	if err := out.println("ok embosser console ready, type help"); err != nil {
		return
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.logger.Debug().Str("client", clientAddr).Str("command", line).Msg("command received")

		replies, quit := s.dispatch(ctx, line)
		for _, r := range replies {
			if err := out.println(r); err != nil {
				s.logger.Warn().Err(err).Str("client", clientAddr).Msg("error writing to client")
				return
			}
		}
		if quit {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Debug().Err(err).Str("client", clientAddr).Msg("error reading from client")
	}
}

// Stop closes the listener and every client connection, then waits for the
// handlers to return. The controller is left running
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.logger.Debug().Msg("stop called but server is not running")
		return nil
	}

	s.logger.Info().Msg("stopping server")
	s.running = false
	listener := s.listener
	for conn := range s.conns {
		conn.Close()
	}
	s.cancel()
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}

	s.wg.Wait()
	s.logger.Info().Msg("server stopped")
	return nil
}

// IsRunning returns whether the server is running
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Address returns the configured server address
func (s *Server) Address() string {
	return s.address
}

// ListenAddr returns the bound address, or nil when not running
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.listener.Addr()
}

// Controller returns the driven controller
func (s *Server) Controller() *controller.Controller {
	return s.ctrl
}
