package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/wire"
)

// Stocker display memory. A lot stocker reads its lot-info block in
// RAMLineLen lines from memBase up to memEnd; reading memBase rebuilds the
// block and reading memEnd clears it.
const (
	memBase    = 0x400
	memEnd     = 0x490
	lotInfoLen = 160
	lotInfoBuf = 192
)

const cleanLayout = "2006/01/02"

var blankLine = strings.Repeat(" ", wire.RAMLineLen)

func (s *Session) handleReadMemory(ctx context.Context, m wire.Message) outcome {
	req := m.(*wire.ReadMemoryRequest)
	reply := &wire.ReadMemoryReply{Result: resultOK, Addr: req.Addr, Data: blankLine}

	if s.CarrierType() != directory.CarrierLot {
		if req.Addr == memBase {
			reply.Data = fmt.Sprintf("%-*.*s", wire.RAMLineLen, wire.RAMLineLen, req.UnitName)
		}
		return outcome{reply: reply}
	}

	if req.Addr < memBase || req.Addr > memEnd {
		return outcome{reply: reply}
	}
	if req.Addr == memBase {
		block, err := s.lotInfoBlock(ctx, req.UnitName)
		if err != nil {
			s.logger.Warn().Err(err).Str("logical_id", req.UnitName).Msg("Cannot build lot info")
			reply.Result = resultFailed
			return outcome{reply: reply}
		}
		s.resetLotInfo()
		copy(s.lotInfo[:], block)
	}

	off := req.Addr - memBase
	reply.Data = string(s.lotInfo[off : off+wire.RAMLineLen])
	if req.Addr == memEnd {
		s.resetLotInfo()
	}
	return outcome{reply: reply}
}

func (s *Session) resetLotInfo() {
	for i := range s.lotInfo {
		s.lotInfo[i] = ' '
	}
}

func (s *Session) lotInfoBlock(ctx context.Context, unitName string) (string, error) {
	logical := strings.TrimRight(unitName, " ")
	if s.policy().IsEmptyLogical(logical) {
		return strings.Repeat(" ", lotInfoLen), nil
	}
	lot, err := s.cfg.Directory.Lot(ctx, logical)
	if err != nil {
		return "", fmt.Errorf("lot %s: %w", logical, err)
	}
	carrier, err := s.cfg.Directory.CarrierByLogical(ctx, logical)
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return "", fmt.Errorf("carrier for %s: %w", logical, err)
	}
	return LotInfoBlock(lot, carrier, s.now()), nil
}

// LotInfoBlock renders the fixed-width lot summary a lot stocker shows
// on its display. Every field is space padded and truncated to its
// column. An unbound carrier leaves the carrier and clean-date columns
// blank.
func LotInfoBlock(lot directory.Lot, carrier directory.Carrier, now time.Time) string {
	var b strings.Builder
	b.Grow(lotInfoLen)

	nextClean := ""
	if carrier.ID != "" {
		nextClean = carrier.NextClean(now).Format(cleanLayout)
	}

	column(&b, lot.ID, 12)
	column(&b, fmt.Sprintf("%3d", lot.Quantity), 3)
	column(&b, carrier.ID, 17)
	column(&b, fmt.Sprintf("[%s] %s", priorityLabel(lot), lot.Operation), 11)
	column(&b, lot.OperationDesc, 21)
	column(&b, recipeLabel(lot), 32)
	column(&b, lot.Block, 10)
	column(&b, lot.BlockDesc, 22)
	column(&b, lot.HoldCode, 5)
	column(&b, lot.Device, 5)
	column(&b, nextClean, 10)
	column(&b, "", 12)
	return b.String()
}

func column(b *strings.Builder, s string, width int) {
	fmt.Fprintf(b, "%-*.*s", width, width, s)
}

func priorityLabel(lot directory.Lot) string {
	switch lot.Priority {
	case 9:
		return "D1"
	case 8:
		return "8"
	case 7:
		return "7"
	case 6:
		return "D2"
	case 5:
		if strings.HasPrefix(lot.TempPriority, "P3") {
			return "D3"
		}
		return "5"
	default:
		return " "
	}
}

func recipeLabel(lot directory.Lot) string {
	switch {
	case lot.Recipe == "":
		return ""
	case lot.NextStocker == "":
		return fmt.Sprintf("%.20s", lot.Recipe)
	default:
		return fmt.Sprintf("%.20s-%.6s", lot.Recipe, lot.NextStocker)
	}
}
