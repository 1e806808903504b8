package session

import (
	"context"
	"errors"
	"strings"

	"github.com/cuemby/stkgate/pkg/alert"
	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/events"
	"github.com/cuemby/stkgate/pkg/lottrack"
	"github.com/cuemby/stkgate/pkg/wire"
)

var errReplyLost = errors.New("reply not delivered to stocker")

func (s *Session) handleAssociate(ctx context.Context, m wire.Message) outcome {
	req := m.(*wire.GenRequest)
	stocker := s.Stocker()
	barcode := strings.TrimRight(req.PhysicalID, " ")
	logical := req.LogicalName
	logger := s.logger.With().Str("cst_id", barcode).Str("logical_id", logical).Logger()

	fwd := *req
	if s.CarrierType() == directory.CarrierReticleBare && s.backendEnabled() {
		mapping, err := s.cfg.Directory.Tag(ctx, barcode)
		if err != nil {
			logger.Warn().Err(err).Msg("Reticle has no tag mapping")
			return s.failed(genReply(wire.TypeAssociate, resultFailed),
				alert.New(alert.Connect).Note(alert.TagNotMapped).
					Field("STK", stocker).Field("BCR", barcode).Field("RET", logical))
		}
		fwd.PhysicalID = mapping.Tag
	}

	mut := s.associate(barcode, logical)
	if err := mut.Apply(ctx); err != nil {
		logger.Error().Err(err).Msg("Directory associate failed")
		return s.failed(genReply(wire.TypeAssociate, resultFailed),
			alert.New(alert.Connect).Field("STK", stocker).Field("BCR", barcode).Field("RET", logical))
	}

	rejected := alert.New(alert.Connect).Field("STK", stocker).Field("TAG", fwd.PhysicalID).Field("RET", logical)
	rep, err := s.callGen(ctx, &fwd)
	if err != nil {
		logger.Error().Err(err).Msg("Ridian associate failed")
		s.compensate(ctx, mut, err)
		out := s.failed(genReply(wire.TypeAssociate, resultFailed), rejected)
		out.fatal = fatal("associate %s/%s: %v", barcode, logical, err)
		return out
	}
	if rep.Result != resultOK {
		logger.Warn().Int32("result", rep.Result).Msg("Ridian rejected associate")
		s.compensate(ctx, mut, errors.New("ridian rejected associate"))
		return s.failed(rep, rejected)
	}

	return outcome{
		reply: rep,
		followUp: func(ctx context.Context) {
			s.cfg.Events.Publish(&events.Event{
				Type:     events.EventUnitAssociated,
				Stocker:  stocker,
				Message:  barcode + " associated with " + logical,
				Metadata: map[string]string{"cst_id": barcode, "logical_id": logical},
			})
			if isEmptyLogical(logical) {
				return
			}
			_ = s.notify(ctx, directory.DirOutput, lottrack.Move{
				Stocker:   stocker,
				CarrierID: barcode,
				LogicalID: logical,
				Port:      stocker,
			})
		},
		lost: func(ctx context.Context) {
			s.compensate(ctx, mut, errReplyLost)
			s.alert(ctx, alert.New(alert.Network).Field("STK", stocker))
		},
	}
}

func (s *Session) handleDisassociate(ctx context.Context, m wire.Message) outcome {
	req := m.(*wire.GenRequest)
	stocker := s.Stocker()
	logical := req.LogicalName
	bare := s.CarrierType() == directory.CarrierReticleBare && s.backendEnabled()
	logger := s.logger.With().Str("logical_id", logical).Logger()

	var (
		carrierID string
		tag       string
		mut       *Mutation
		carrier   directory.Carrier
		err       error
	)
	empty := isEmptyLogical(logical)
	if !empty {
		carrier, err = s.cfg.Directory.CarrierByLogical(ctx, logical)
	}
	switch {
	case empty:
	case err == nil:
		carrierID = carrier.ID
		tag = carrier.ID
		if bare {
			mapping, err := s.cfg.Directory.Tag(ctx, carrier.ID)
			if err != nil {
				logger.Warn().Err(err).Str("cst_id", carrier.ID).Msg("Reticle has no tag mapping")
				return s.failed(genReply(wire.TypeDisassociate, resultFailed),
					alert.New(alert.Disconnect).Note(alert.TagNotMapped).
						Field("STK", stocker).Field("BCR", carrier.ID).Field("RET", logical))
			}
			tag = mapping.Tag
		}
		mut = s.disassociate(carrier.ID, carrier.LogicalID)
	case bare && errors.Is(err, directory.ErrNotFound):
		id, owned, err := s.ownerByTag(ctx, logical)
		if err != nil {
			logger.Warn().Err(err).Msg("Cannot resolve reticle through its tag")
			return s.failed(genReply(wire.TypeDisassociate, resultFailed),
				alert.New(alert.Disconnect).Field("STK", stocker).Field("RET", logical))
		}
		carrierID, tag = id, owned
	default:
		logger.Warn().Err(err).Msg("No carrier bound to logical ID")
		return s.failed(genReply(wire.TypeDisassociate, resultFailed),
			alert.New(alert.Disconnect).Field("STK", stocker).Field("RET", logical))
	}
	logger = logger.With().Str("cst_id", carrierID).Logger()

	if mut != nil {
		if err := mut.Apply(ctx); err != nil {
			logger.Error().Err(err).Msg("Directory disassociate failed")
			return s.failed(genReply(wire.TypeDisassociate, resultFailed),
				alert.New(alert.Disconnect).Field("STK", stocker).Field("BCR", carrierID).Field("RET", logical))
		}
	}

	rejected := alert.New(alert.Disconnect).Field("STK", stocker).Field("TAG", tag).Field("RET", logical)
	// Ridian gets the stocker's request as sent; the tag only steers the
	// directory and the alerts.
	rep, err := s.callGen(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Ridian disassociate failed")
		s.compensate(ctx, mut, err)
		out := s.failed(genReply(wire.TypeDisassociate, resultFailed), rejected)
		out.fatal = fatal("disassociate %s: %v", logical, err)
		return out
	}
	if rep.Result != resultOK {
		logger.Warn().Int32("result", rep.Result).Msg("Ridian rejected disassociate")
		s.compensate(ctx, mut, errors.New("ridian rejected disassociate"))
		return s.failed(rep, rejected)
	}

	return outcome{
		reply: rep,
		followUp: func(ctx context.Context) {
			if empty || mut == nil {
				return
			}
			s.cfg.Events.Publish(&events.Event{
				Type:     events.EventUnitDisassociated,
				Stocker:  stocker,
				Message:  carrierID + " released from " + logical,
				Metadata: map[string]string{"cst_id": carrierID, "logical_id": logical},
			})
			_ = s.notify(ctx, directory.DirInput, lottrack.Move{
				Stocker:   stocker,
				CarrierID: carrierID,
				LogicalID: logical,
				Port:      stocker,
			})
		},
		lost: func(ctx context.Context) {
			s.alert(ctx, alert.New(alert.Network).Field("STK", stocker))
		},
	}
}

// ownerByTag resolves a bare reticle that the directory cannot find by
// logical ID: Ridian names the tag, the tag mapping names the carrier.
func (s *Session) ownerByTag(ctx context.Context, logical string) (carrierID, tag string, err error) {
	rep, err := s.callGen(ctx, &wire.GenRequest{Type: wire.TypeLTPUnit, LogicalName: logical})
	if err != nil {
		return "", "", err
	}
	tag = strings.TrimRight(rep.PhysicalID, " ")
	if rep.Result != resultOK || tag == "" {
		return "", "", directory.ErrNotFound
	}
	mapping, err := s.cfg.Directory.TagOwner(ctx, tag)
	if err != nil {
		return "", "", err
	}
	return mapping.Barcode, tag, nil
}

// failed replies with reply and raises text once the reply is out, or
// when it could not be delivered.
func (s *Session) failed(reply wire.Message, text *alert.Text) outcome {
	raise := func(ctx context.Context) { s.alert(ctx, text) }
	return outcome{reply: reply, followUp: raise, lost: raise}
}

func (s *Session) alert(ctx context.Context, text *alert.Text) {
	if s.cfg.Alerts == nil {
		return
	}
	if err := s.cfg.Alerts.Send(ctx, s.Stocker(), text); err != nil {
		s.logger.Warn().Err(err).Str("alert", text.String()).Msg("Alert not delivered")
	}
}
