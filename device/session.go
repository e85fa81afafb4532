package device

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/embosser-controller/failure"
	"github.com/nixxel-company-limited/embosser-controller/notify"
)

// SupportedBaudRates lists the rates the embosser firmware accepts
var SupportedBaudRates = []int{
	9600, 14400, 19200, 28800, 38400, 56000, 57600, 76800, 111112, 115200, 128000,
	230400, 250000, 256000, 460800, 500000, 921600, 1000000, 1382400, 1500000, 2000000,
}

// IsSupportedBaud reports whether baud is in SupportedBaudRates
func IsSupportedBaud(baud int) bool {
	return slices.Contains(SupportedBaudRates, baud)
}

// Connector opens and closes the device connection on the gateway side
type Connector interface {
	// Connect opens the device on port at baud
	Connect(ctx context.Context, port string, baud int) error

	// Disconnect closes the device
	Disconnect(ctx context.Context) error
}

// State is a snapshot of the session
type State struct {
	Port      string
	BaudRate  int
	Connected bool
}

// Session tracks the single logical device connection. Notifications are sent
// with no lock held
type Session struct {
	connector Connector
	notifier  notify.Notifier
	logger    zerolog.Logger
	mu        sync.Mutex
	state     State
	inFlight  bool
}

// NewSession creates a disconnected session
func NewSession(connector Connector, notifier notify.Notifier, logger zerolog.Logger) *Session {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Session{
		connector: connector,
		notifier:  notifier,
		logger:    logger.With().Str("component", "device").Logger(),
	}
}

// Connect opens the device. A failed attempt leaves the session unchanged
func (s *Session) Connect(ctx context.Context, port string, baud int) error {
	port = strings.TrimSpace(port)

	s.mu.Lock()
	var err error
	switch {
	case port == "":
		err = failure.WithOp("connect", failure.ErrInvalidPort)
	case !IsSupportedBaud(baud):
		err = failure.WithOp("connect", failure.ErrUnsupportedBaud)
	case s.state.Connected:
		err = failure.WithOp("connect", failure.ErrAlreadyConnected)
	case s.inFlight:
		err = failure.WithOp("connect", failure.ErrBusy)
	}
	if err != nil {
		s.mu.Unlock()
		s.reject(err)
		return err
	}
	s.inFlight = true
	s.mu.Unlock()

	s.logger.Info().Str("port", port).Int("baud", baud).Msg("connecting")
	err = s.connector.Connect(ctx, port, baud)

	s.mu.Lock()
	s.inFlight = false
	if err == nil {
		s.state = State{Port: port, BaudRate: baud, Connected: true}
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Str("port", port).Msg("connect failed")
		return err
	}
	s.logger.Info().Str("port", port).Int("baud", baud).Msg("connected")
	s.notifier.Notify(notify.Success("Connected", port))
	return nil
}

// Disconnect closes the device. The request is issued even when the session already
// believes it is disconnected. It does not stop an active print job
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		err := failure.WithOp("disconnect", failure.ErrBusy)
		s.reject(err)
		return err
	}
	s.inFlight = true
	s.mu.Unlock()

	err := s.connector.Disconnect(ctx)

	s.mu.Lock()
	s.inFlight = false
	if err == nil {
		s.state.Connected = false
	}
	port := s.state.Port
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn().Err(err).Msg("disconnect failed")
		return err
	}
	s.logger.Info().Str("port", port).Msg("disconnected")
	s.notifier.Notify(notify.Info("Disconnected", port))
	return nil
}

// State returns a snapshot of the session
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected returns whether the device connection is open
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Connected
}

func (s *Session) reject(err error) {
	s.logger.Debug().Err(err).Msg("rejected")
	s.notifier.Notify(notify.Warning("Device", failure.Message(err)))
}
