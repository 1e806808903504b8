package session

import (
	"context"
	"strings"

	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/wire"
)

// handleDisplay forwards operator display text to Ridian for bare
// reticles Ridian knows by tag. Everything else is acknowledged locally.
func (s *Session) handleDisplay(ctx context.Context, m wire.Message) outcome {
	req := m.(*wire.DisplayRequest)
	ok := &wire.SimpleReply{Type: wire.TypeDisplay, NumItems: 1, Result: resultOK}
	failed := &wire.SimpleReply{Type: wire.TypeDisplay, NumItems: 1, Result: resultFailed}

	if s.CarrierType() != directory.CarrierReticleBare || !s.backendEnabled() {
		return outcome{reply: ok}
	}

	logger := s.logger.With().Str("logical_id", req.UnitName).Logger()
	tag, err := s.callGen(ctx, &wire.GenRequest{Type: wire.TypeLTPUnit, LogicalName: req.UnitName})
	if err != nil {
		logger.Error().Err(err).Msg("Ridian tag lookup failed")
		return outcome{reply: failed, fatal: fatal("display tag lookup %s: %v", req.UnitName, err)}
	}
	if tag.Result != resultOK || strings.TrimRight(tag.PhysicalID, " ") == "" {
		return outcome{reply: ok}
	}

	rep, err := s.call(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Ridian display failed")
		return outcome{reply: failed, fatal: fatal("display %s: %v", req.UnitName, err)}
	}
	return outcome{reply: rep}
}
