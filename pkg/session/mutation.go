package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/events"
	"github.com/cuemby/stkgate/pkg/lottrack"
	"github.com/cuemby/stkgate/pkg/metrics"
)

// EmptyLogical is the logical ID a stocker uses for "no unit".
const EmptyLogical = "EMPTY"

// Mutation is a directory change together with the change that undoes
// it. Compensate restores the state seen by Apply and is a no-op when
// Apply changed nothing.
type Mutation struct {
	Op         string
	CarrierID  string
	LogicalID  string
	Apply      func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// binding is one carrier/logical pair.
type binding struct {
	carrier string
	logical string
}

// associate builds the mutation binding carrierID to logicalID. Bindings
// that stand in the way are released first, except on reticle stockers
// where a reticle already bound elsewhere is a conflict.
func (s *Session) associate(carrierID, logicalID string) *Mutation {
	var (
		created   bool
		displaced []binding
	)
	m := &Mutation{Op: "associate", CarrierID: carrierID, LogicalID: logicalID}

	m.Apply = func(ctx context.Context) error {
		if isEmptyLogical(logicalID) {
			return nil
		}
		dir := s.cfg.Directory
		reticle := s.CarrierType().Reticle()

		carrier, err := dir.Carrier(ctx, carrierID)
		if err != nil {
			return fmt.Errorf("carrier %s: %w", carrierID, err)
		}
		if sameLogical(carrier.LogicalID, logicalID) {
			return nil
		}

		var release []binding
		if owner, err := dir.CarrierByLogical(ctx, logicalID); err == nil && owner.ID != carrierID {
			release = append(release, binding{owner.ID, owner.LogicalID})
		} else if err != nil && !errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("logical %s: %w", logicalID, err)
		}
		if carrier.LogicalID != "" {
			release = append(release, binding{carrierID, carrier.LogicalID})
		}
		if reticle && len(release) > 0 {
			b := release[0]
			return fmt.Errorf("%w: %s already bound to %s", directory.ErrConflict, b.carrier, b.logical)
		}

		for _, b := range release {
			if err := dir.Disassociate(ctx, b.carrier, b.logical); err != nil {
				s.restore(ctx, displaced)
				return fmt.Errorf("release %s/%s: %w", b.carrier, b.logical, err)
			}
			s.mirror(ctx, false, b.carrier, b.logical)
			displaced = append(displaced, b)
		}

		if err := dir.Associate(ctx, carrierID, logicalID); err != nil {
			s.restore(ctx, displaced)
			displaced = nil
			return err
		}
		s.mirror(ctx, true, carrierID, logicalID)
		created = true
		return nil
	}

	m.Compensate = func(ctx context.Context) error {
		if !created {
			return nil
		}
		if err := s.cfg.Directory.Disassociate(ctx, carrierID, logicalID); err != nil {
			return err
		}
		s.mirror(ctx, false, carrierID, logicalID)
		created = false
		if err := s.restore(ctx, displaced); err != nil {
			return err
		}
		displaced = nil
		return nil
	}
	return m
}

// disassociate builds the mutation releasing carrierID from logicalID.
func (s *Session) disassociate(carrierID, logicalID string) *Mutation {
	var removed bool
	m := &Mutation{Op: "disassociate", CarrierID: carrierID, LogicalID: logicalID}

	m.Apply = func(ctx context.Context) error {
		dir := s.cfg.Directory
		carrier, err := dir.Carrier(ctx, carrierID)
		if err != nil {
			return fmt.Errorf("carrier %s: %w", carrierID, err)
		}
		if carrier.LogicalID == "" {
			return nil
		}
		if err := dir.Disassociate(ctx, carrierID, logicalID); err != nil {
			return err
		}
		s.mirror(ctx, false, carrierID, logicalID)
		removed = true
		return nil
	}

	m.Compensate = func(ctx context.Context) error {
		if !removed {
			return nil
		}
		if err := s.cfg.Directory.Associate(ctx, carrierID, logicalID); err != nil {
			return err
		}
		s.mirror(ctx, true, carrierID, logicalID)
		removed = false
		return nil
	}
	return m
}

// restore re-binds pairs released by an associate. It keeps going past
// failures and returns the first one.
func (s *Session) restore(ctx context.Context, pairs []binding) error {
	var first error
	for i := len(pairs) - 1; i >= 0; i-- {
		b := pairs[i]
		if err := s.cfg.Directory.Associate(ctx, b.carrier, b.logical); err != nil {
			s.logger.Error().Err(err).Str("cst_id", b.carrier).Str("logical_id", b.logical).Msg("Failed to restore released binding")
			if first == nil {
				first = err
			}
			continue
		}
		s.mirror(ctx, true, b.carrier, b.logical)
	}
	return first
}

// compensate undoes m after a later step failed with cause. Failures are
// logged and counted; the caller reports cause regardless.
func (s *Session) compensate(ctx context.Context, m *Mutation, cause error) {
	if m == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With().Str("op", m.Op).Str("cst_id", m.CarrierID).Str("logical_id", m.LogicalID).Logger()

	if err := m.Compensate(ctx); err != nil {
		metrics.Compensations.WithLabelValues(m.Op, "failed").Inc()
		logger.Error().Err(err).AnErr("cause", cause).Msg("Rollback failed, directory left changed")
		return
	}
	metrics.Compensations.WithLabelValues(m.Op, "ok").Inc()
	logger.Warn().AnErr("cause", cause).Msg("Directory change rolled back")
	s.cfg.Events.Publish(&events.Event{
		Type:    events.EventCompensation,
		Stocker: s.Stocker(),
		Message: fmt.Sprintf("%s %s/%s rolled back", m.Op, m.CarrierID, m.LogicalID),
		Metadata: map[string]string{
			"op":         m.Op,
			"cst_id":     m.CarrierID,
			"logical_id": m.LogicalID,
		},
	})
}

// mirror forwards an association change to lot tracking. The directory
// is the record of truth; a failed mirror is logged only.
func (s *Session) mirror(ctx context.Context, link bool, carrierID, logicalID string) {
	if s.cfg.LotTrack == nil {
		return
	}
	l := lottrack.Link{
		Stocker:   s.Stocker(),
		CarrierID: carrierID,
		LogicalID: logicalID,
		Reticle:   s.CarrierType().Reticle(),
	}
	var err error
	if link {
		err = s.cfg.LotTrack.Link(ctx, l)
	} else {
		err = s.cfg.LotTrack.Unlink(ctx, l)
	}
	if err != nil {
		s.logger.Warn().Err(err).Bool("link", link).Str("cst_id", carrierID).Str("logical_id", logicalID).
			Msg("Lot tracking association mirror failed")
	}
}

func isEmptyLogical(logical string) bool {
	return strings.TrimRight(logical, " ") == EmptyLogical
}

func sameLogical(a, b string) bool {
	return strings.TrimRight(a, " ") == strings.TrimRight(b, " ")
}
