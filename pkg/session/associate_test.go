package session

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rejectWith(t wire.MsgType, result int32) func(wire.Message) (wire.Message, error) {
	return func(wire.Message) (wire.Message, error) {
		return &wire.GenReply{Type: t, Result: result}, nil
	}
}

func TestAssociate_ThenDisassociateRestoresDirectory(t *testing.T) {
	h := newHarness(t)
	h.connect("S?T001")

	rep := h.gen(wire.TypeAssociate, "CD5678", "LOT0100")
	require.Equal(t, int32(resultOK), rep.Result)
	assert.Equal(t, "LOT0100", h.logicalOf("CD5678"))

	rep = h.gen(wire.TypeDisassociate, "", "LOT0100")
	require.Equal(t, int32(resultOK), rep.Result)
	h.sync()

	assert.Empty(t, h.logicalOf("CD5678"))
	_, err := h.store.CarrierByLogical(context.Background(), "LOT0100")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	in, out := h.tracker.moves()
	require.Len(t, out, 1)
	assert.Equal(t, "ST001", out[0].Port)
	assert.Equal(t, "CD5678", out[0].CarrierID)
	require.Len(t, in, 1)
	assert.Equal(t, "LOT0100", in[0].LogicalID)
	assert.Len(t, h.tracker.links, 1)
	assert.Len(t, h.tracker.unlinks, 1)
}

func TestAssociate_BackendRejectionRollsBack(t *testing.T) {
	h := newHarness(t)
	h.backend.on(wire.TypeAssociate, rejectWith(wire.TypeAssociate, 5))
	h.connect("S?T001")

	rep := h.gen(wire.TypeAssociate, "CD5678", "LOT0100")
	assert.Equal(t, int32(5), rep.Result)
	h.sync()

	assert.Empty(t, h.logicalOf("CD5678"))
	assert.Equal(t, []string{"Connect error^STK[ST001]^TAG[CD5678]^RET[LOT0100]"}, h.alerts.sent())
	_, out := h.tracker.moves()
	assert.Empty(t, out)
}

func TestAssociate_BackendFailureRollsBackAndEndsSession(t *testing.T) {
	h := newHarness(t)
	h.backend.on(wire.TypeAssociate, func(wire.Message) (wire.Message, error) {
		return nil, errors.New("ridian unreachable")
	})
	h.connect("S?T001")

	rep := h.gen(wire.TypeAssociate, "CD5678", "LOT0100")
	assert.Equal(t, int32(resultFailed), rep.Result)
	assert.ErrorIs(t, h.ended(), ErrSessionEnd)

	assert.Empty(t, h.logicalOf("CD5678"))
	_, err := h.store.CarrierByLogical(context.Background(), "LOT0100")
	assert.ErrorIs(t, err, directory.ErrNotFound)
}

func TestAssociate_ReplyLostRollsBack(t *testing.T) {
	h := newHarness(t)
	h.connect("S?T001")

	// Ridian accepts, but the stocker hangs up before it sees the reply.
	h.backend.on(wire.TypeAssociate, func(wire.Message) (wire.Message, error) {
		h.conn.Close()
		return &wire.GenReply{Type: wire.TypeAssociate}, nil
	})
	h.send(&wire.GenRequest{Type: wire.TypeAssociate, PhysicalID: "CD5678", LogicalName: "LOT0100"})

	select {
	case <-h.exited:
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
	}
	require.Error(t, h.exit)
	assert.ErrorIs(t, h.exit, io.ErrClosedPipe)
	assert.Contains(t, h.exit.Error(), "write AssociateUnit reply")

	assert.Empty(t, h.logicalOf("CD5678"))
	_, err := h.store.CarrierByLogical(context.Background(), "LOT0100")
	assert.ErrorIs(t, err, directory.ErrNotFound)
	assert.Equal(t, []string{"Network error^STK[ST001]"}, h.alerts.sent())
	assert.Len(t, h.tracker.links, 1)
	assert.Len(t, h.tracker.unlinks, 1)
	_, out := h.tracker.moves()
	assert.Empty(t, out)
}

func TestAssociate_RollbackRestoresDisplacedBinding(t *testing.T) {
	h := newHarness(t)
	h.backend.on(wire.TypeAssociate, rejectWith(wire.TypeAssociate, 5))
	h.connect("S?T001")

	rep := h.gen(wire.TypeAssociate, "CD5678", "LOT0007")
	assert.Equal(t, int32(5), rep.Result)

	assert.Empty(t, h.logicalOf("CD5678"))
	assert.Equal(t, "LOT0007", h.logicalOf("AB1234"))
}

func TestAssociate_MovesLogicalOnLotStocker(t *testing.T) {
	h := newHarness(t)
	h.connect("S?T001")

	rep := h.gen(wire.TypeAssociate, "CD5678", "LOT0007")
	assert.Equal(t, int32(resultOK), rep.Result)

	assert.Equal(t, "LOT0007", h.logicalOf("CD5678"))
	assert.Empty(t, h.logicalOf("AB1234"))
}

func TestAssociate_UnknownCarrier(t *testing.T) {
	h := newHarness(t)
	h.connect("S?T001")

	rep := h.gen(wire.TypeAssociate, "ZZ0000", "LOT0100")
	assert.Equal(t, int32(resultFailed), rep.Result)
	h.sync()
	assert.Equal(t, []string{"Connect error^STK[ST001]^BCR[ZZ0000]^RET[LOT0100]"}, h.alerts.sent())
	assert.NotContains(t, h.backend.types(), wire.TypeAssociate)
}

func TestAssociate_BareReticle(t *testing.T) {
	t.Run("missing tag mapping", func(t *testing.T) {
		h := newHarness(t)
		h.connect("C?RST01")

		rep := h.gen(wire.TypeAssociate, "R00001", "RET0001")
		assert.Equal(t, int32(resultFailed), rep.Result)
		h.sync()
		assert.Equal(t, []string{"Connect error^BCR TAG not mapping^STK[CRST01]^BCR[R00001]^RET[RET0001]"}, h.alerts.sent())
		assert.Empty(t, h.logicalOf("R00001"))
	})

	t.Run("forwards the tag", func(t *testing.T) {
		h := newHarness(t)
		h.connect("C?RST01")
		require.NoError(t, h.store.PutTag(context.Background(), directory.TagMapping{Barcode: "R00001", Tag: "T9001", Stocker: "CRST01"}))

		rep := h.gen(wire.TypeAssociate, "R00001", "RET0001")
		assert.Equal(t, int32(resultOK), rep.Result)
		fwd, ok := h.backend.last(wire.TypeAssociate).(*wire.GenRequest)
		require.True(t, ok)
		assert.Equal(t, "T9001", fwd.PhysicalID)
		assert.Equal(t, "RET0001", h.logicalOf("R00001"))
	})

	t.Run("reticle bound elsewhere is a conflict", func(t *testing.T) {
		h := newHarness(t)
		h.connect("C?RST01")
		require.NoError(t, h.store.PutTag(context.Background(), directory.TagMapping{Barcode: "R00001", Tag: "T9001", Stocker: "CRST01"}))

		rep := h.gen(wire.TypeAssociate, "R00001", "RET0002")
		assert.Equal(t, int32(resultFailed), rep.Result)
		assert.Equal(t, "RET0002", h.logicalOf("R00002"))
		assert.Empty(t, h.logicalOf("R00001"))
	})
}

func TestDisassociate_EmptySentinel(t *testing.T) {
	h := newHarness(t)
	h.connect("S?T001")

	rep := h.gen(wire.TypeDisassociate, "", EmptyLogical)
	assert.Equal(t, int32(resultOK), rep.Result)
	h.sync()

	assert.Zero(t, h.tracker.calls())
	assert.Empty(t, h.alerts.sent())
	assert.Equal(t, "LOT0007", h.logicalOf("AB1234"))
}

func TestDisassociate_UnknownLogical(t *testing.T) {
	h := newHarness(t)
	h.connect("S?T001")

	rep := h.gen(wire.TypeDisassociate, "", "LOT0404")
	assert.Equal(t, int32(resultFailed), rep.Result)
	h.sync()
	assert.Equal(t, []string{"Disconnect error^STK[ST001]^RET[LOT0404]"}, h.alerts.sent())
	assert.NotContains(t, h.backend.types(), wire.TypeDisassociate)
}

func TestDisassociate_BackendRejectionReassociates(t *testing.T) {
	h := newHarness(t)
	h.backend.on(wire.TypeDisassociate, rejectWith(wire.TypeDisassociate, 9))
	h.connect("S?T001")

	rep := h.gen(wire.TypeDisassociate, "PHYS01", "LOT0007")
	assert.Equal(t, int32(9), rep.Result)
	fwd, ok := h.backend.last(wire.TypeDisassociate).(*wire.GenRequest)
	require.True(t, ok)
	assert.Equal(t, "PHYS01", fwd.PhysicalID)
	h.sync()

	assert.Equal(t, "LOT0007", h.logicalOf("AB1234"))
	assert.Equal(t, []string{"Disconnect error^STK[ST001]^TAG[AB1234]^RET[LOT0007]"}, h.alerts.sent())
	in, _ := h.tracker.moves()
	assert.Empty(t, in)
}

func TestDisassociate_BackendFailureReassociatesAndEndsSession(t *testing.T) {
	h := newHarness(t)
	h.backend.on(wire.TypeDisassociate, func(wire.Message) (wire.Message, error) {
		return nil, errors.New("ridian unreachable")
	})
	h.connect("S?T001")

	rep := h.gen(wire.TypeDisassociate, "", "LOT0007")
	assert.Equal(t, int32(resultFailed), rep.Result)
	assert.ErrorIs(t, h.ended(), ErrSessionEnd)
	assert.Equal(t, "LOT0007", h.logicalOf("AB1234"))
}

func TestDisassociate_BareReticle(t *testing.T) {
	t.Run("forwards the request as sent", func(t *testing.T) {
		h := newHarness(t)
		h.connect("C?RST01")

		rep := h.gen(wire.TypeDisassociate, "", "RET0002")
		assert.Equal(t, int32(resultOK), rep.Result)
		fwd, ok := h.backend.last(wire.TypeDisassociate).(*wire.GenRequest)
		require.True(t, ok)
		assert.Empty(t, fwd.PhysicalID)
		assert.Equal(t, "RET0002", fwd.LogicalName)
		assert.Empty(t, h.logicalOf("R00002"))
	})

	t.Run("rejection names the tag", func(t *testing.T) {
		h := newHarness(t)
		h.backend.on(wire.TypeDisassociate, rejectWith(wire.TypeDisassociate, 9))
		h.connect("C?RST01")

		rep := h.gen(wire.TypeDisassociate, "", "RET0002")
		assert.Equal(t, int32(9), rep.Result)
		h.sync()
		assert.Equal(t, []string{"Disconnect error^STK[CRST01]^TAG[T9002]^RET[RET0002]"}, h.alerts.sent())
		assert.Equal(t, "RET0002", h.logicalOf("R00002"))
	})

	t.Run("resolves through Ridian when the directory has no binding", func(t *testing.T) {
		h := newHarness(t)
		h.backend.on(wire.TypeLTPUnit, func(wire.Message) (wire.Message, error) {
			return &wire.GenReply{Type: wire.TypeLTPUnit, PhysicalID: "T9002"}, nil
		})
		h.connect("C?RST01")

		rep := h.gen(wire.TypeDisassociate, "", "RET0999")
		assert.Equal(t, int32(resultOK), rep.Result)
		fwd, ok := h.backend.last(wire.TypeDisassociate).(*wire.GenRequest)
		require.True(t, ok)
		assert.Empty(t, fwd.PhysicalID)
		assert.Equal(t, "RET0999", fwd.LogicalName)
		h.sync()
		assert.Zero(t, h.tracker.calls())
		assert.Equal(t, "RET0002", h.logicalOf("R00002"))
	})

	t.Run("unresolvable reticle", func(t *testing.T) {
		h := newHarness(t)
		h.connect("C?RST01")

		rep := h.gen(wire.TypeDisassociate, "", "RET0999")
		assert.Equal(t, int32(resultFailed), rep.Result)
		h.sync()
		assert.Equal(t, []string{"Disconnect error^STK[CRST01]^RET[RET0999]"}, h.alerts.sent())
	})
}

func TestMutation_CompensateWithoutApplyIsNoop(t *testing.T) {
	h := newHarness(t)
	h.connect("S?T001")
	ctx := context.Background()

	m := h.session.associate("CD5678", "LOT0100")
	require.NoError(t, m.Compensate(ctx))
	assert.Empty(t, h.logicalOf("CD5678"))

	require.NoError(t, m.Apply(ctx))
	require.NoError(t, m.Apply(ctx))
	assert.Equal(t, "LOT0100", h.logicalOf("CD5678"))

	require.NoError(t, m.Compensate(ctx))
	assert.Empty(t, h.logicalOf("CD5678"))

	d := h.session.disassociate("CD5678", "LOT0100")
	require.NoError(t, d.Apply(ctx))
	require.NoError(t, d.Compensate(ctx))
	assert.Empty(t, h.logicalOf("CD5678"), "nothing was bound, nothing to restore")
}
