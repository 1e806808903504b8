package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/events"
	"github.com/cuemby/stkgate/pkg/lottrack"
	"github.com/cuemby/stkgate/pkg/wire"
)

// Mode records which identifiers a sensor query resolved.
type Mode byte

const (
	ModeNone    Mode = 0
	ModeID      Mode = 'I' // tag and barcode
	ModeBarcode Mode = 'B' // barcode only
	ModeTag     Mode = 'T' // tag only
)

func usageMode(tag, barcode string) Mode {
	switch {
	case tag != "" && barcode != "":
		return ModeID
	case barcode != "":
		return ModeBarcode
	case tag != "":
		return ModeTag
	default:
		return ModeNone
	}
}

func (m Mode) String() string {
	if m == ModeNone {
		return "none"
	}
	return string(rune(m))
}

func (s *Session) handleQuerySensor(ctx context.Context, m wire.Message) outcome {
	req := m.(*wire.QuerySensorRequest)
	dir := s.cfg.Directory
	stocker := s.Stocker()
	enabled := s.backendEnabled()
	logger := s.logger.With().Str("port", req.Name).Logger()

	port, err := dir.Port(ctx, req.Name)
	if err != nil {
		logger.Warn().Err(err).Msg("Unknown port")
		return outcome{reply: s.queryError()}
	}
	logger = logger.With().Str("irt_id", port.SensorID).Logger()

	if enabled {
		rep, err := s.callGen(ctx, &wire.GenRequest{Type: wire.TypeLTPSensor, LogicalName: port.Name})
		if err != nil {
			logger.Error().Err(err).Msg("Ridian sensor lookup failed")
			return outcome{reply: s.queryError(), fatal: fatal("sensor lookup %s: %v", port.Name, err)}
		}
		if rep.Result != resultOK {
			logger.Warn().Int32("result", rep.Result).Msg("Ridian rejected sensor lookup")
			return outcome{reply: s.queryError()}
		}
	}

	barcode, logical, err := s.identify(ctx, port)
	switch {
	case errors.Is(err, errRefused):
		logger.Warn().Err(err).Msg("Barcode refused")
		return outcome{reply: s.queryError()}
	case err != nil && s.CarrierType() == directory.CarrierLot && enabled:
		logger.Info().Err(err).Msg("No barcode, relying on Ridian tag")
		barcode, logical = "", ""
	case err != nil:
		logger.Warn().Err(err).Msg("Barcode unavailable")
		return outcome{reply: s.queryError()}
	}

	resp, err := s.callQuery(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("Ridian sensor query failed")
		return outcome{reply: s.queryError(), fatal: fatal("query %s: %v", req.Name, err)}
	}
	if resp.Result != resultOK {
		return outcome{reply: resp}
	}

	tag := strings.TrimRight(resp.Info.UnitID, " ")
	unitName := strings.TrimRight(resp.Info.UnitName, " ")
	if tag != "" && !alnum(tag[0]) {
		logger.Warn().Str("tag", tag).Msg("Ridian returned a malformed tag")
		return outcome{reply: s.queryError()}
	}

	if tag != "" && barcode != "" {
		if err := s.checkTag(ctx, barcode, tag); err != nil {
			logger.Warn().Err(err).Str("cst_id", barcode).Str("tag", tag).Msg("Tag check failed")
			return outcome{reply: s.queryError()}
		}
		if err := s.reconcile(ctx, barcode, logical, unitName); err != nil {
			logger.Error().Err(err).Str("cst_id", barcode).Msg("Association reconcile failed")
			return outcome{reply: s.queryError()}
		}
	}
	if tag != "" {
		logical = unitName
	}

	mode := usageMode(tag, barcode)
	var reply *wire.QuerySensorReply
	switch mode {
	case ModeNone:
		logger.Warn().Msg("Neither tag nor barcode identified the unit")
		return outcome{reply: s.queryError()}
	case ModeBarcode:
		ts := int32(s.now().Unix())
		reply = &wire.QuerySensorReply{
			LastFlag: 1,
			Result:   resultOK,
			TotalNum: 1,
			NumItems: 1,
			Info: wire.QueryInfo{
				UnitID:         barcode,
				UnitName:       logical,
				SensorID:       port.SensorID,
				SensorName:     req.Name,
				UnitType:       1,
				UpdateTime:     ts,
				MoveTime:       ts,
				MotionTime:     ts,
				UnitCategory:   1,
				SensorCategory: 1,
			},
		}
	default:
		reply = resp
		if mode == ModeID {
			reply.Info.UnitID = barcode
		}
	}

	if mode != ModeTag && (port.Direction == directory.DirInput || port.Direction == directory.DirOutput) {
		if logical == "" {
			logger.Warn().Str("cst_id", barcode).Msg("Unit has no logical ID")
			return outcome{reply: s.queryError()}
		}
		err := s.notify(ctx, port.Direction, lottrack.Move{
			Stocker:   stocker,
			CarrierID: barcode,
			LogicalID: logical,
			Port:      port.Name,
		})
		if err != nil && mode == ModeBarcode {
			return outcome{reply: s.queryError()}
		}
	}

	logger.Debug().Str("mode", mode.String()).Str("cst_id", barcode).Str("logical_id", logical).Msg("Sensor resolved")
	return outcome{reply: reply}
}

// errRefused marks a barcode that was read but must not be accepted.
var errRefused = errors.New("barcode refused")

// identify reads the port's barcode and resolves its logical ID. Pod
// stockers report unbound carriers under a placeholder logical ID.
func (s *Session) identify(ctx context.Context, port directory.Port) (barcode, logical string, err error) {
	if s.cfg.Barcode == nil || port.ReaderIP == "" {
		return "", "", fmt.Errorf("port %s has no barcode reader", port.Name)
	}
	stocker := s.Stocker()
	barcode, err = s.cfg.Barcode.Read(ctx, stocker, port.ReaderIP)
	if err != nil {
		s.cfg.Events.Publish(&events.Event{
			Type:     events.EventBarcodeFailed,
			Stocker:  stocker,
			Message:  "barcode read failed at " + port.Name,
			Metadata: map[string]string{"port": port.Name, "reader": port.ReaderIP},
		})
		return "", "", err
	}

	pol := s.policy()
	carrier, err := s.cfg.Directory.Carrier(ctx, barcode)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return "", "", err
	}
	if pol.Interlocked(stocker, barcode, carrier.Name) {
		return "", "", fmt.Errorf("%w: %s interlocked at %s", errRefused, barcode, stocker)
	}
	if err != nil {
		return "", "", fmt.Errorf("%w: carrier %s: %v", errRefused, barcode, err)
	}

	if carrier.LogicalID == "" && pol.PodStocker(stocker) {
		return barcode, pol.EmptyLogical(barcode), nil
	}
	return barcode, pol.PadLogical(barcode, carrier.LogicalID), nil
}

// checkTag verifies a bare reticle's tag mapping, recording it on first
// sight. Other carrier classes carry no mapping.
func (s *Session) checkTag(ctx context.Context, barcode, tag string) error {
	if s.CarrierType() != directory.CarrierReticleBare || !s.backendEnabled() {
		return nil
	}
	mapping, err := s.cfg.Directory.Tag(ctx, barcode)
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return s.cfg.Directory.PutTag(ctx, directory.TagMapping{
			Barcode: barcode,
			Tag:     tag,
			Stocker: s.Stocker(),
			Created: s.now(),
		})
	case err != nil:
		return err
	case mapping.Tag != tag:
		return fmt.Errorf("%w: %s mapped to tag %s, read %s", directory.ErrConflict, barcode, mapping.Tag, tag)
	}
	return nil
}

// reconcile brings the directory in line with the logical ID Ridian
// reports for the carrier. logical is the directory's current view.
func (s *Session) reconcile(ctx context.Context, barcode, logical, unitName string) error {
	if s.policy().IsEmptyLogical(logical) {
		logical = ""
	}
	logical = strings.TrimRight(logical, " ")

	switch {
	case logical == unitName:
		return nil
	case unitName == "":
		return s.disassociate(barcode, logical).Apply(ctx)
	case logical == "":
		return s.associate(barcode, unitName).Apply(ctx)
	}

	release := s.disassociate(barcode, logical)
	if err := release.Apply(ctx); err != nil {
		return err
	}
	if err := s.associate(barcode, unitName).Apply(ctx); err != nil {
		s.compensate(ctx, release, err)
		return err
	}
	return nil
}

// notify reports a carrier passing an I/O port to lot tracking. Failures
// are logged and returned.
func (s *Session) notify(ctx context.Context, dir directory.Direction, mv lottrack.Move) error {
	if s.cfg.LotTrack == nil {
		return nil
	}
	kind, typ := "input", events.EventUnitInput
	notify := s.cfg.LotTrack.Input
	if dir == directory.DirOutput {
		kind, typ = "output", events.EventUnitOutput
		notify = s.cfg.LotTrack.Output
	}

	if err := notify(ctx, mv); err != nil {
		s.logger.Warn().Err(err).Str("kind", kind).Str("cst_id", mv.CarrierID).Str("logical_id", mv.LogicalID).
			Msg("Lot tracking notification failed")
		return err
	}
	s.cfg.Events.Publish(&events.Event{
		Type:    typ,
		Stocker: mv.Stocker,
		Message: fmt.Sprintf("%s %s at %s", mv.LogicalID, kind, mv.Port),
		Metadata: map[string]string{
			"cst_id":     mv.CarrierID,
			"logical_id": mv.LogicalID,
			"port":       mv.Port,
		},
	})
	return nil
}

// queryError is the single failure reply for sensor queries.
func (s *Session) queryError() *wire.QuerySensorReply {
	ts := int32(s.now().Unix())
	return &wire.QuerySensorReply{
		LastFlag: 1,
		Result:   resultFailed,
		Info: wire.QueryInfo{
			UnitType:       1,
			UpdateTime:     ts,
			MoveTime:       ts,
			MotionTime:     ts,
			UnitCategory:   1,
			SensorCategory: 1,
		},
	}
}

func alnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'
}
