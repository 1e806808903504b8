package ridian

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/logship"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/cuemby/stkgate/pkg/wire"
	"github.com/rs/zerolog"
)

var (
	// ErrConnect is returned when no connection to Ridian could be opened.
	ErrConnect = errors.New("ridian connect failed")
	// ErrShortWrite is returned when a request was only partly written.
	ErrShortWrite = errors.New("short write to ridian")
	// ErrShortRead is returned when a reply body ends before its declared length.
	ErrShortRead = errors.New("short ridian reply body")
	// ErrTypeMismatch is returned when a reply's type differs from the request's.
	ErrTypeMismatch = errors.New("ridian reply type mismatch")
	// ErrDrain is returned when the excess of an oversized reply cannot be read off.
	ErrDrain = errors.New("failed to drain oversized ridian reply")
)

const (
	drainChunk   = 1024
	drainTimeout = time.Second
)

// Dialer opens backend connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configures a Client.
type Options struct {
	Address     string
	Retry       int
	DialTimeout time.Duration
	IOTimeout   time.Duration

	// Bypass answers every request locally with a synthesized success
	// reply. It is set when backend dispatch is disabled for the
	// stocker's carrier class.
	Bypass bool

	Stocker  string
	Dialer   Dialer
	Recorder logship.Recorder
	Now      func() time.Time
}

// Client is a session's connection to Ridian. It is not safe for
// concurrent use; a session issues one request at a time.
type Client struct {
	opts       Options
	conn       net.Conn
	reconnects int
	logger     zerolog.Logger
}

// New creates a client. No connection is made until it is needed.
func New(opts Options) *Client {
	if opts.Retry <= 0 {
		opts.Retry = 2
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.IOTimeout <= 0 {
		opts.IOTimeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}
	if opts.Recorder == nil {
		opts.Recorder = logship.Discard{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		opts:   opts,
		logger: log.WithStocker(log.WithComponent("ridian"), opts.Stocker),
	}
}

// Bypassed reports whether the client answers locally.
func (c *Client) Bypassed() bool { return c.opts.Bypass }

// Connected reports whether a backend connection is open.
func (c *Client) Connected() bool { return c.conn != nil }

// Reconnects is the number of times a failed exchange replaced the
// connection.
func (c *Client) Reconnects() int { return c.reconnects }

// Connect closes any open connection and dials a new one. It does nothing
// in bypass mode.
func (c *Client) Connect(ctx context.Context) error {
	if c.opts.Bypass {
		return nil
	}
	c.drop()
	return c.dial(ctx)
}

// Close sends a best-effort Close request and releases the connection.
func (c *Client) Close(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}
	req := &wire.CloseRequest{}
	_, err := c.exchange(ctx, req, wire.Encode(req))
	c.drop()
	return err
}

// SendRecv sends req and returns Ridian's reply.
//
// Write and read failures close the connection, dial a new one and resend,
// at most Retry times. A short write, a reply of the wrong type or a
// truncated body fail the call without a retry. A reply whose declared
// length does not match the expected size is drained and replaced by a
// locally synthesized default reply.
func (c *Client) SendRecv(ctx context.Context, req wire.Message) (wire.Message, error) {
	t := req.MsgType()
	if !t.Valid() {
		return nil, fmt.Errorf("%w %d", wire.ErrUnknownType, uint8(t))
	}
	if c.opts.Bypass {
		metrics.BackendCalls.WithLabelValues("bypass").Inc()
		return DefaultReply(req, c.opts.Now()), nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.BackendDuration)

	if c.conn == nil {
		if err := c.dial(ctx); err != nil {
			metrics.BackendCalls.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	frame := wire.Encode(req)
	for attempt := 0; ; attempt++ {
		reply, err := c.exchange(ctx, req, frame)
		if err == nil {
			metrics.BackendCalls.WithLabelValues("ok").Inc()
			return reply, nil
		}
		c.drop()

		if !retryable(err) || attempt >= c.opts.Retry || ctx.Err() != nil {
			metrics.BackendCalls.WithLabelValues("error").Inc()
			c.logger.Error().Err(err).Str("type", t.String()).Int("attempts", attempt+1).Msg("Ridian call failed")
			return nil, err
		}

		c.logger.Warn().Err(err).Str("type", t.String()).Int("attempt", attempt+1).Msg("Ridian exchange failed, reconnecting")
		if err := c.dial(ctx); err != nil {
			metrics.BackendCalls.WithLabelValues("error").Inc()
			return nil, err
		}
		c.reconnects++
		metrics.BackendReconnects.Inc()
	}
}

func (c *Client) dial(ctx context.Context) error {
	var lastErr error
	for i := 0; i < c.opts.Retry; i++ {
		dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		conn, err := c.opts.Dialer.DialContext(dctx, "tcp", c.opts.Address)
		cancel()
		if err == nil {
			c.conn = conn
			metrics.UpdateComponent(metrics.ComponentRidian, true, "")
			c.logger.Debug().Str("addr", c.opts.Address).Msg("Connected to Ridian")
			return nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", i+1).Msg("Ridian connect failed")
		if ctx.Err() != nil {
			break
		}
	}
	metrics.UpdateComponent(metrics.ComponentRidian, false, fmt.Sprint(lastErr))
	return fmt.Errorf("%w: %s: %v", ErrConnect, c.opts.Address, lastErr)
}

func (c *Client) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.opts.IOTimeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

func (c *Client) exchange(ctx context.Context, req wire.Message, frame []byte) (wire.Message, error) {
	t := req.MsgType()
	conn := c.conn

	_ = conn.SetWriteDeadline(c.deadline(ctx))
	n, err := conn.Write(frame)
	if err != nil {
		if n > 0 && n < len(frame) {
			return nil, fmt.Errorf("%w: %s %d of %d bytes", ErrShortWrite, t, n, len(frame))
		}
		return nil, fmt.Errorf("write %s: %w", t, err)
	}
	c.opts.Recorder.Ship(logship.NewRecord(c.opts.Stocker, logship.ToBackend, req))

	_ = conn.SetReadDeadline(c.deadline(ctx))
	var hdr [wire.HeaderSize]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return nil, fmt.Errorf("read %s reply header: %w", t, err)
	}

	want := t.ReplySize()
	if declared := wire.FrameLen(hdr[:]); declared != want {
		c.logger.Warn().Str("type", t.String()).Int("declared", declared).Int("want", want).
			Msg("Ridian reply length mismatch, draining")
		if err := drain(conn, declared-wire.HeaderSize); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDrain, err)
		}
		reply := DefaultReply(req, c.opts.Now())
		c.opts.Recorder.Ship(logship.NewRecord(c.opts.Stocker, logship.FromBackend, reply))
		return reply, nil
	}

	rt := wire.MsgType(hdr[2])
	if !rt.Valid() {
		return nil, fmt.Errorf("%w %d from ridian", wire.ErrUnknownType, uint8(rt))
	}
	if rt != t {
		return nil, fmt.Errorf("%w: sent %s, got %s", ErrTypeMismatch, t, rt)
	}

	b := make([]byte, want)
	copy(b, hdr[:])
	if _, err := io.ReadFull(conn, b[wire.HeaderSize:]); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrShortRead, t, err)
	}
	reply, err := wire.DecodeReply(b)
	if err != nil {
		return nil, err
	}
	c.opts.Recorder.Ship(logship.NewRecord(c.opts.Stocker, logship.FromBackend, reply))
	return reply, nil
}

// drain discards remaining bytes in chunks, each bounded by drainTimeout.
func drain(conn net.Conn, remaining int) error {
	buf := make([]byte, drainChunk)
	for remaining > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(drainTimeout))
		n, err := conn.Read(buf[:min(remaining, drainChunk)])
		remaining -= n
		if err != nil && remaining > 0 {
			return err
		}
	}
	return nil
}

func retryable(err error) bool {
	for _, fatal := range []error{ErrShortWrite, ErrShortRead, ErrTypeMismatch, ErrDrain, wire.ErrMalformed} {
		if errors.Is(err, fatal) {
			return false
		}
	}
	return true
}
