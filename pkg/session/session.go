package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cuemby/stkgate/pkg/config"
	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/events"
	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/logship"
	"github.com/cuemby/stkgate/pkg/lottrack"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/cuemby/stkgate/pkg/wire"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrSessionEnd marks a failure that ends the session after the
	// current reply, if any, has been written.
	ErrSessionEnd = errors.New("session ended")
	// ErrNotConnected is returned when a stocker sends a request before
	// Connect.
	ErrNotConnected = errors.New("request before connect")
	// ErrUnexpectedType is returned for a valid type a stocker may not send.
	ErrUnexpectedType = errors.New("unexpected message type from stocker")
	// ErrIdle is returned when the stocker stays silent past the idle limit.
	ErrIdle = errors.New("session idle timeout")
)

// State is a session's protocol state.
type State int

const (
	StateAwaitingConnect State = iota
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingConnect:
		return "awaiting-connect"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Backend is the session's Ridian link. *ridian.Client satisfies it.
type Backend interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	SendRecv(ctx context.Context, req wire.Message) (wire.Message, error)
}

// BackendFactory creates the Ridian link for a stocker. bypass is set when
// backend dispatch is disabled for the stocker's carrier class.
type BackendFactory func(stocker string, bypass bool) Backend

// BarcodeReader triggers a port's barcode reader. *barcode.Scanner
// satisfies it.
type BarcodeReader interface {
	Read(ctx context.Context, stocker, readerIP string) (string, error)
}

// LotTracker receives association mirrors and movement notifications.
// *lottrack.Client satisfies it.
type LotTracker interface {
	Link(ctx context.Context, l lottrack.Link) error
	Unlink(ctx context.Context, l lottrack.Link) error
	Input(ctx context.Context, m lottrack.Move) error
	Output(ctx context.Context, m lottrack.Move) error
}

// Alerter delivers operator alerts. *alert.Client satisfies it.
type Alerter interface {
	Send(ctx context.Context, stocker string, text fmt.Stringer) error
}

// Config holds what every session shares. It is read only once sessions
// are running.
type Config struct {
	Settings  config.Config
	Directory directory.Directory
	Backend   BackendFactory
	Barcode   BarcodeReader
	LotTrack  LotTracker
	Alerts    Alerter
	Events    events.Publisher
	Recorder  logship.Recorder
	Tracer    trace.Tracer
	Now       func() time.Time
}

// Info is a point-in-time view of a session for the admin API.
type Info struct {
	ID       string    `json:"id"`
	Peer     string    `json:"peer"`
	Stocker  string    `json:"stocker,omitempty"`
	Type     string    `json:"type,omitempty"`
	State    string    `json:"state"`
	Opened   time.Time `json:"opened"`
	Requests int64     `json:"requests"`
}

// Session serves one stocker connection.
type Session struct {
	id     string
	conn   net.Conn
	reader *bufio.Reader
	peer   string
	cfg    *Config
	routes map[wire.MsgType]route
	opened time.Time

	mu      sync.RWMutex
	state   State
	stocker string
	ctype   directory.CarrierType

	backend  Backend
	lotInfo  [lotInfoBuf]byte
	requests atomic.Int64
	logger   zerolog.Logger
}

// New creates a session for an accepted connection.
func New(conn net.Conn, cfg *Config) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Events == nil {
		cfg.Events = events.Discard{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = logship.Discard{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("github.com/cuemby/stkgate/pkg/session")
	}

	id := uuid.NewString()
	peer := conn.RemoteAddr().String()
	s := &Session{
		id:     id,
		conn:   conn,
		reader: bufio.NewReader(conn),
		peer:   peer,
		cfg:    cfg,
		opened: cfg.Now(),
		state:  StateAwaitingConnect,
		logger: log.WithSession(id, peer),
	}
	s.routes = s.routeTable()
	s.resetLotInfo()
	return s
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Info returns a snapshot of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{
		ID:       s.id,
		Peer:     s.peer,
		Stocker:  s.stocker,
		State:    s.state.String(),
		Opened:   s.opened,
		Requests: s.requests.Load(),
	}
	if s.ctype != directory.CarrierUnknown {
		info.Type = s.ctype.String()
	}
	return info
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Stocker returns the stocker name resolved by Connect.
func (s *Session) Stocker() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stocker
}

// CarrierType returns the carrier class resolved by Connect.
func (s *Session) CarrierType() directory.CarrierType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctype
}

// Serve runs the request loop until the stocker closes the session, the
// connection fails or ctx is cancelled. It returns nil after a protocol
// Close. The Ridian link is released on return; the caller owns conn.
func (s *Session) Serve(ctx context.Context) (err error) {
	metrics.SessionsActive.Inc()
	s.cfg.Events.Publish(&events.Event{
		Type:     events.EventSessionOpened,
		Message:  "session opened from " + s.peer,
		Metadata: map[string]string{"session_id": s.id, "peer": s.peer},
	})
	s.logger.Info().Msg("Session opened")

	stop := context.AfterFunc(ctx, func() {
		_ = s.conn.SetReadDeadline(time.Now())
	})

	defer func() {
		stop()
		s.release(ctx)
		reason := exitReason(err)
		metrics.SessionsActive.Dec()
		metrics.SessionsTotal.WithLabelValues(reason).Inc()
		s.cfg.Events.Publish(&events.Event{
			Type:     events.EventSessionClosed,
			Stocker:  s.Stocker(),
			Message:  "session closed: " + reason,
			Metadata: map[string]string{"session_id": s.id, "reason": reason},
		})
		if err != nil {
			s.logger.Warn().Err(err).Str("reason", reason).Msg("Session ended")
		} else {
			s.logger.Info().Msg("Session closed")
		}
	}()

	for {
		frame, err := s.readRequest(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, wire.ErrMalformed) {
				metrics.MalformedFrames.Inc()
			}
			return err
		}
		if err := s.dispatch(ctx, frame); err != nil {
			return err
		}
		if s.State() == StateClosed {
			return nil
		}
	}
}

// readRequest waits for the next frame. The wait is cut into read slices
// so cancellation and the idle limit are noticed without a byte arriving;
// once the first byte is in, the whole frame must follow within the
// backend I/O timeout.
func (s *Session) readRequest(ctx context.Context) ([]byte, error) {
	listen := s.cfg.Settings.Listen
	idle := listen.IdleTimeout
	if idle <= 0 {
		idle = time.Hour
	}
	slice := listen.ReadSlice
	if slice <= 0 || slice > idle {
		slice = idle
	}
	deadline := time.Now().Add(idle)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wait := min(slice, time.Until(deadline))
		if wait <= 0 {
			return nil, ErrIdle
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(wait))
		_, err := s.reader.Peek(1)
		if err == nil {
			break
		}
		if isTimeout(err) {
			continue
		}
		return nil, err
	}

	frameTimeout := s.cfg.Settings.Backend.IOTimeout
	if frameTimeout <= 0 {
		frameTimeout = 10 * time.Second
	}
	_ = s.conn.SetReadDeadline(time.Now().Add(frameTimeout))
	return wire.ReadRequest(s.reader)
}

func (s *Session) write(m wire.Message) error {
	timeout := s.cfg.Settings.Backend.IOTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := s.conn.Write(wire.Encode(m)); err != nil {
		return err
	}
	s.cfg.Recorder.Ship(logship.NewRecord(s.Stocker(), logship.ToStocker(s.Stocker()), m))
	return nil
}

func (s *Session) release(ctx context.Context) {
	s.mu.Lock()
	s.state = StateClosed
	backend := s.backend
	s.backend = nil
	s.mu.Unlock()

	if backend != nil {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := backend.Close(cctx); err != nil {
			s.logger.Debug().Err(err).Msg("Ridian close failed")
		}
	}
}

func (s *Session) backendEnabled() bool {
	switch s.CarrierType() {
	case directory.CarrierLot:
		return s.cfg.Settings.Backend.LotEnabled
	case directory.CarrierReticlePod, directory.CarrierReticleBare:
		return s.cfg.Settings.Backend.ReticleEnabled
	default:
		return false
	}
}

func (s *Session) policy() config.Policy { return s.cfg.Settings.Policy }

func (s *Session) now() time.Time { return s.cfg.Now() }

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded)
}

func exitReason(err error) string {
	switch {
	case err == nil:
		return "close"
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return "disconnect"
	case errors.Is(err, ErrIdle):
		return "idle"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "shutdown"
	case errors.Is(err, wire.ErrMalformed), errors.Is(err, ErrUnexpectedType), errors.Is(err, ErrNotConnected):
		return "protocol"
	case errors.Is(err, ErrSessionEnd):
		return "fatal"
	default:
		return "error"
	}
}
