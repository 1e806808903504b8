package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/cuemby/stkgate/pkg/logship"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/cuemby/stkgate/pkg/wire"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result codes carried in replies.
const (
	resultOK     = 0
	resultFailed = 11
)

// outcome is what a handler hands back to the dispatcher.
type outcome struct {
	// reply is written to the stocker when non-nil.
	reply wire.Message
	// fatal ends the session after reply is written.
	fatal error
	// followUp runs after the reply was delivered.
	followUp func(ctx context.Context)
	// lost runs when the reply could not be delivered.
	lost func(ctx context.Context)
}

type handler func(ctx context.Context, req wire.Message) outcome

type route struct {
	handle    handler
	connected bool // requires StateActive
}

func (s *Session) routeTable() map[wire.MsgType]route {
	return map[wire.MsgType]route{
		wire.TypeConnect:      {handle: s.handleConnect},
		wire.TypeClose:        {handle: s.handleClose},
		wire.TypePTLSensor:    {handle: s.handlePhysicalToLogical, connected: true},
		wire.TypeQuerySensor:  {handle: s.handleQuerySensor, connected: true},
		wire.TypeReadMemory:   {handle: s.handleReadMemory, connected: true},
		wire.TypeAssociate:    {handle: s.handleAssociate, connected: true},
		wire.TypeDisassociate: {handle: s.handleDisassociate, connected: true},
		wire.TypeDisplay:      {handle: s.handleDisplay, connected: true},
	}
}

// dispatch decodes one frame, runs its handler and writes the reply. A
// non-nil return ends the session.
func (s *Session) dispatch(ctx context.Context, frame []byte) error {
	req, err := wire.DecodeRequest(frame)
	if err != nil {
		metrics.MalformedFrames.Inc()
		return err
	}
	t := req.MsgType()
	s.requests.Add(1)

	rt, ok := s.routes[t]
	if !ok {
		s.logger.Error().Str("type", t.String()).Msg("Stocker sent a backend-only message")
		return fmt.Errorf("%w: %s", ErrUnexpectedType, t)
	}
	if rt.connected && s.State() != StateActive {
		s.logger.Error().Str("type", t.String()).Msg("Request before Connect")
		return fmt.Errorf("%w: %s", ErrNotConnected, t)
	}

	stocker := s.Stocker()
	s.cfg.Recorder.Ship(logship.NewRecord(stocker, logship.FromStocker(stocker), req))

	ctx, span := s.cfg.Tracer.Start(ctx, "stkgate/"+t.String(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("stkgate.session_id", s.id),
			attribute.String("stkgate.stocker", stocker),
			attribute.String("net.peer.addr", s.peer),
		),
	)
	defer span.End()

	timer := metrics.NewTimer()
	out := rt.handle(ctx, req)
	timer.ObserveDurationVec(metrics.RequestDuration, t.String())

	result := "fatal"
	if out.reply != nil {
		code := resultCode(out.reply)
		span.SetAttributes(attribute.Int("stkgate.result", code))
		result = "ok"
		if code != resultOK {
			result = "error"
		}

		if err := s.write(out.reply); err != nil {
			metrics.RequestsTotal.WithLabelValues(t.String(), "lost").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "reply not delivered")
			s.logger.Error().Err(err).Str("type", t.String()).Msg("Failed to write reply to stocker")
			if out.lost != nil {
				out.lost(context.WithoutCancel(ctx))
			}
			return fmt.Errorf("write %s reply: %w", t, err)
		}
	}
	metrics.RequestsTotal.WithLabelValues(t.String(), result).Inc()

	if out.followUp != nil {
		out.followUp(ctx)
	}
	if out.fatal != nil {
		span.RecordError(out.fatal)
		span.SetStatus(codes.Error, out.fatal.Error())
		if !errors.Is(out.fatal, ErrSessionEnd) {
			return fmt.Errorf("%w: %w", ErrSessionEnd, out.fatal)
		}
		return out.fatal
	}
	return nil
}

// fatal wraps err so it ends the session.
func fatal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSessionEnd, fmt.Sprintf(format, args...))
}

func resultCode(m wire.Message) int {
	switch r := m.(type) {
	case *wire.ConnectReply:
		return int(r.Result)
	case *wire.SimpleReply:
		return int(r.Result)
	case *wire.GenReply:
		return int(r.Result)
	case *wire.QuerySensorReply:
		return int(r.Result)
	case *wire.ReadMemoryReply:
		return int(r.Result)
	default:
		return resultOK
	}
}

func genReply(t wire.MsgType, result int32) *wire.GenReply {
	return &wire.GenReply{Type: t, Result: result}
}
