package lottrack

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cuemby/stkgate/pkg/config"
	"github.com/cuemby/stkgate/pkg/kvmsg"
	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/logship"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/rs/zerolog"
)

// Message names understood by the lot-tracking service.
const (
	MsgLink   = "LLCR"
	MsgUnlink = "LLDR"
	MsgInput  = "LIPR"
	MsgOutput = "LOPR"
)

// emptyLogical marks a carrier the stocker reports as holding nothing.
const emptyLogical = "EMPTY"

const msgID = 99

// RejectError is a non-zero RTN_CD from the service.
type RejectError struct {
	Msg     string
	Code    int
	Message string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("lot tracking rejected %s: RTN_CD=%d ERR_MSG=%s", e.Msg, e.Code, e.Message)
}

// IsReject reports whether err carries a service rejection.
func IsReject(err error) bool {
	var re *RejectError
	return errors.As(err, &re)
}

// Link identifies a carrier/logical pair.
type Link struct {
	Stocker   string
	CarrierID string
	LogicalID string
	Reticle   bool
}

// Move reports a carrier passing a stocker port.
type Move struct {
	Stocker   string
	CarrierID string
	LogicalID string
	Port      string
}

// Options configures a Client.
type Options struct {
	Address  string
	Timeout  time.Duration
	Policy   config.Policy
	Dialer   kvmsg.Dialer
	Recorder logship.Recorder
}

// Client sends lot-tracking notifications, one connection per call.
type Client struct {
	opts   Options
	logger zerolog.Logger
}

// New creates a client. With an empty address every call is a logged no-op.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}
	if opts.Recorder == nil {
		opts.Recorder = logship.Discard{}
	}
	return &Client{opts: opts, logger: log.WithComponent("lottrack")}
}

// Link records a new carrier/logical association.
func (c *Client) Link(ctx context.Context, l Link) error {
	if l.LogicalID == emptyLogical {
		return nil
	}
	return c.call(ctx, l.Stocker, MsgLink, linkBody(l))
}

// Unlink records the end of a carrier/logical association.
func (c *Client) Unlink(ctx context.Context, l Link) error {
	if l.LogicalID == emptyLogical {
		return nil
	}
	return c.call(ctx, l.Stocker, MsgUnlink, linkBody(l))
}

// Input reports a carrier entering the stocker. Pod stockers are skipped.
func (c *Client) Input(ctx context.Context, m Move) error {
	if c.opts.Policy.PodStocker(m.Stocker) {
		c.logger.Info().Str("stk", m.Stocker).Str("cst_id", m.CarrierID).Msg("Input notification skipped for pod stocker")
		return nil
	}
	return c.call(ctx, m.Stocker, MsgInput, moveBody(m))
}

// Output reports a carrier leaving the stocker. Pod stockers are skipped.
func (c *Client) Output(ctx context.Context, m Move) error {
	if c.opts.Policy.PodStocker(m.Stocker) {
		c.logger.Info().Str("stk", m.Stocker).Str("cst_id", m.CarrierID).Msg("Output notification skipped for pod stocker")
		return nil
	}
	return c.call(ctx, m.Stocker, MsgOutput, moveBody(m))
}

func linkBody(l Link) kvmsg.Message {
	typ := "L"
	if l.Reticle {
		typ = "R"
	}
	return kvmsg.New(
		"CST_ID", l.CarrierID,
		"LOGICAL_ID", l.LogicalID,
		"TYPE", typ,
		"SOURCE", logship.Source,
		"EMP_ID", l.Stocker,
		"HHT_NAME", l.Stocker,
	)
}

func moveBody(m Move) kvmsg.Message {
	return kvmsg.New(
		"CST_ID", m.CarrierID,
		"LOGICAL_ID", m.LogicalID,
		"LOCATION", m.Stocker,
		"PORT_ID", m.Port,
		"TERMINAL_ID", m.Stocker,
		"EQ_TYPE", "STOCK",
		"SOURCE", logship.Source,
		"EMP_ID", m.Stocker,
		"HHT_NAME", m.Stocker,
	)
}

func (c *Client) call(ctx context.Context, stocker, name string, body kvmsg.Message) error {
	if c.opts.Address == "" {
		c.logger.Debug().Str("msg", name).Str("stk", stocker).Msg("Lot tracking not configured, notification dropped")
		metrics.Notifications.WithLabelValues(name, "disabled").Inc()
		return nil
	}

	req := kvmsg.Frame{ID: msgID, Name: name, Body: body}
	c.opts.Recorder.Ship(logship.NewTextRecord(stocker, logship.ToLotTrack, name, body))

	reply, err := kvmsg.Call(ctx, c.opts.Dialer, c.opts.Address, c.opts.Timeout, req)
	if err != nil {
		metrics.Notifications.WithLabelValues(name, "error").Inc()
		return fmt.Errorf("lot tracking %s: %w", name, err)
	}
	c.opts.Recorder.Ship(logship.NewTextRecord(stocker, logship.FromLotTrack, reply.Name, reply.Body))

	rtn, _ := reply.Body.Get("RTN_CD")
	code, err := strconv.Atoi(rtn)
	if err != nil || code != 0 {
		if err != nil {
			code = -1
		}
		errMsg, _ := reply.Body.Get("ERR_MSG")
		metrics.Notifications.WithLabelValues(name, "rejected").Inc()
		return &RejectError{Msg: name, Code: code, Message: errMsg}
	}

	metrics.Notifications.WithLabelValues(name, "ok").Inc()
	c.logger.Info().Str("msg", name).Str("stk", stocker).Str("body", body.String()).Msg("Lot tracking notified")
	return nil
}
