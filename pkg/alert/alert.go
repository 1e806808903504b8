package alert

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/cuemby/stkgate/pkg/kvmsg"
	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/logship"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Alert headings.
const (
	Connect    = "Connect error"
	Disconnect = "Disconnect error"
	Network    = "Network error"

	TagNotMapped = "BCR TAG not mapping"
)

const (
	msgName    = "HMTR"
	msgCode    = "MC06"
	dateLayout = "2006-01-02 15-04-05"
)

// ErrThrottled is returned when the rate limit drops an alert.
var ErrThrottled = errors.New("alert throttled")

// Text builds the '^'-separated operator message.
type Text struct {
	parts []string
}

// New starts a message with a heading such as Connect.
func New(heading string) *Text {
	return &Text{parts: []string{heading}}
}

// Note appends a free-text segment.
func (t *Text) Note(s string) *Text {
	t.parts = append(t.parts, s)
	return t
}

// Field appends a KEY[value] segment.
func (t *Text) Field(key, value string) *Text {
	t.parts = append(t.parts, key+"["+value+"]")
	return t
}

func (t *Text) String() string {
	return strings.Join(t.parts, "^")
}

// Options configures a Client.
type Options struct {
	Address   string
	Receiver  string
	Timeout   time.Duration
	PerMinute float64
	Burst     int
	Dialer    kvmsg.Dialer
	Recorder  logship.Recorder
	Now       func() time.Time
}

// Client delivers operator alerts to the hand-held terminal gateway.
type Client struct {
	opts    Options
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewClient creates an alert client. PerMinute <= 0 disables throttling.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
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

	limit := rate.Inf
	if opts.PerMinute > 0 {
		limit = rate.Limit(opts.PerMinute / 60)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
		logger:  log.WithComponent("alert"),
	}
}

// Send delivers text on behalf of stocker. The reply body is not
// interpreted; a completed exchange counts as delivered.
func (c *Client) Send(ctx context.Context, stocker string, text fmt.Stringer) error {
	msg := text.String()
	logger := c.logger.With().Str("stk", stocker).Str("alert", msg).Logger()

	if c.opts.Address == "" {
		logger.Warn().Msg("Alert receiver not configured")
		metrics.AlertsSent.WithLabelValues("disabled").Inc()
		return nil
	}
	if !c.limiter.Allow() {
		logger.Warn().Msg("Alert throttled")
		metrics.AlertsSent.WithLabelValues("throttled").Inc()
		return ErrThrottled
	}

	body := kvmsg.New(
		"REQ_ID", stocker,
		"REQ_USER", stocker,
		"REQ_DATE", c.opts.Now().Format(dateLayout),
		"MSG_CODE", msgCode,
		"RECEIVER", c.opts.Receiver,
		"MSG", msg,
		"SOURCE", logship.Source,
	)
	c.opts.Recorder.Ship(logship.NewTextRecord(stocker, logship.ToAlert, msgName, body))

	reply, err := kvmsg.Call(ctx, c.opts.Dialer, c.opts.Address, c.opts.Timeout, kvmsg.Frame{Name: msgName, Body: body})
	if err != nil {
		metrics.AlertsSent.WithLabelValues("error").Inc()
		return fmt.Errorf("alert for %s: %w", stocker, err)
	}
	c.opts.Recorder.Ship(logship.NewTextRecord(stocker, logship.FromAlert, reply.Name, reply.Body))

	metrics.AlertsSent.WithLabelValues("sent").Inc()
	logger.Info().Msg("Alert sent")
	return nil
}
