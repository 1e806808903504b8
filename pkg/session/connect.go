package session

import (
	"context"

	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/events"
	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/wire"
)

// Protocol version announced in every Connect reply.
const (
	VersionMajor = 2
	VersionMinor = 5
)

// StockerName derives the stocker name from the name a stocker sends in
// Connect: the first character followed by characters 2 through 6.
func StockerName(raw string) string {
	if len(raw) < 3 {
		return raw
	}
	return raw[:1] + raw[2:min(len(raw), 7)]
}

func (s *Session) handleConnect(ctx context.Context, m wire.Message) outcome {
	req := m.(*wire.ConnectRequest)
	name := StockerName(req.Name)

	ctype, err := directory.StockerType(ctx, s.cfg.Directory, name)
	if err != nil {
		s.logger.Error().Err(err).Str("stk", name).Str("name", req.Name).Msg("Cannot resolve stocker type")
		return outcome{fatal: fatal("resolve stocker %q: %v", name, err)}
	}

	s.mu.Lock()
	s.stocker = name
	s.ctype = ctype
	old := s.backend
	s.backend = nil
	s.mu.Unlock()
	s.logger = log.WithStocker(s.logger, name)

	if old != nil {
		if err := old.Close(ctx); err != nil {
			s.logger.Debug().Err(err).Msg("Previous Ridian link close failed")
		}
	}

	enabled := s.backendEnabled()
	backend := s.cfg.Backend(name, !enabled)
	if enabled {
		if err := backend.Connect(ctx); err != nil {
			s.logger.Error().Err(err).Msg("Ridian connect failed")
			return outcome{fatal: fatal("ridian connect for %s: %v", name, err)}
		}
	}

	s.mu.Lock()
	s.backend = backend
	s.state = StateActive
	s.mu.Unlock()

	s.cfg.Events.Publish(&events.Event{
		Type:    events.EventSessionIdentified,
		Stocker: name,
		Message: name + " connected as " + ctype.String(),
		Metadata: map[string]string{
			"session_id": s.id,
			"type":       ctype.String(),
			"backend":    backendMode(enabled),
		},
	})
	s.logger.Info().Str("type", ctype.String()).Str("backend", backendMode(enabled)).Msg("Stocker connected")

	return outcome{reply: &wire.ConnectReply{
		Result:    resultOK,
		Major:     VersionMajor,
		Minor:     VersionMinor,
		ByteOrder: req.ByteOrder,
		BitOrder:  req.BitOrder,
	}}
}

func (s *Session) handleClose(_ context.Context, _ wire.Message) outcome {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	return outcome{reply: &wire.SimpleReply{Type: wire.TypeClose, Result: resultOK}}
}

func (s *Session) handlePhysicalToLogical(ctx context.Context, m wire.Message) outcome {
	req := m.(*wire.GenRequest)
	port, err := s.cfg.Directory.PortBySensor(ctx, req.PhysicalID)
	if err != nil {
		s.logger.Warn().Err(err).Str("irt_id", req.PhysicalID).Msg("Unknown sensor")
		return outcome{reply: &wire.GenReply{Type: wire.TypePTLSensor, Result: resultFailed, PhysicalID: req.PhysicalID}}
	}
	return outcome{reply: &wire.GenReply{
		Type:        wire.TypePTLSensor,
		Result:      resultOK,
		PhysicalID:  req.PhysicalID,
		LogicalName: port.Name,
	}}
}

func backendMode(enabled bool) string {
	if enabled {
		return "ridian"
	}
	return "bypass"
}
