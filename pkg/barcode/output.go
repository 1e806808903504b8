package barcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/events"
	"github.com/cuemby/stkgate/pkg/lottrack"
	"github.com/rs/zerolog"
)

// ErrNotOutputPort is returned when a reader that is not mounted on an
// output port pushes an ID.
var ErrNotOutputPort = errors.New("reader is not on an output port")

// OutputNotifier reports carriers leaving a stocker.
type OutputNotifier interface {
	Output(ctx context.Context, m lottrack.Move) error
}

// OutputHandler serves one connection from an output-port reader. The
// reader pushes a single frame carrying the ID of the carrier that left.
type OutputHandler struct {
	Directory directory.Directory
	Notifier  OutputNotifier
	Events    events.Publisher
	Timeout   time.Duration
	Logger    zerolog.Logger
}

// Serve handles conn and returns the outcome. The caller closes conn.
func (h *OutputHandler) Serve(ctx context.Context, conn net.Conn) error {
	ip := peerIP(conn.RemoteAddr())
	logger := h.Logger.With().Str("bcr_ip", ip).Logger()

	port, err := h.Directory.PortByReader(ctx, ip)
	if err != nil {
		return fmt.Errorf("reader %s: %w", ip, err)
	}
	logger = logger.With().Str("stk", port.Stocker).Str("port", port.Name).Str("bcr", port.ReaderID).Logger()
	if port.Direction != directory.DirOutput {
		return fmt.Errorf("%w: %s is %q", ErrNotOutputPort, port.Name, port.Direction)
	}
	if _, err := directory.StockerType(ctx, h.Directory, port.Stocker); err != nil {
		return fmt.Errorf("stocker %s: %w", port.Stocker, err)
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, FrameLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return fmt.Errorf("read from reader %s: %w", ip, err)
	}
	id, ok := Normalize(buf)
	if !ok {
		return fmt.Errorf("%w: wrong data %q", ErrNoRead, buf)
	}

	carrier, err := h.Directory.Carrier(ctx, id)
	if err != nil {
		return fmt.Errorf("carrier %s: %w", id, err)
	}
	if carrier.LogicalID == "" {
		return fmt.Errorf("carrier %s has no logical id, cannot report output", id)
	}
	if carrier.Location == "" {
		logger.Info().Str("cst_id", id).Msg("Carrier has no location, output not reported")
		return nil
	}

	move := lottrack.Move{Stocker: port.Stocker, CarrierID: id, LogicalID: carrier.LogicalID, Port: port.Name}
	if err := h.Notifier.Output(ctx, move); err != nil {
		return err
	}
	if h.Events != nil {
		h.Events.Publish(&events.Event{
			Type:     events.EventUnitOutput,
			Stocker:  port.Stocker,
			Message:  fmt.Sprintf("%s (%s) left at %s", id, carrier.LogicalID, port.Name),
			Metadata: map[string]string{"cst_id": id, "logical_id": carrier.LogicalID, "port": port.Name},
		})
	}
	logger.Info().Str("cst_id", id).Str("logical_id", carrier.LogicalID).Msg("Output reported")
	return nil
}

func peerIP(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
