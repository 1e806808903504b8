package barcode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/stkgate/pkg/config"
	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/rs/zerolog"
)

// Reader commands.
const (
	CmdRead byte = 0x05
	CmdStop byte = 0x04
)

const (
	// FrameLen is what a reader sends per read: six ID characters and a
	// terminator.
	FrameLen = 7
	// IDLen is the length of a carrier barcode.
	IDLen = 6
)

var (
	// ErrUnreachable is returned when the reader cannot be dialed.
	ErrUnreachable = errors.New("barcode reader unreachable")
	// ErrNoRead is returned when the reader never produced a usable ID.
	ErrNoRead = errors.New("barcode not read")
)

// PodResolver maps a pod ID to the cassette it carries.
type PodResolver interface {
	Carrier(ctx context.Context, id string) (directory.Carrier, error)
}

// Dialer opens reader connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Options configures a Scanner.
type Options struct {
	Port    int
	Timeout time.Duration
	Retry   int
	Policy  config.Policy
	Pods    PodResolver
	Dialer  Dialer
}

// Scanner triggers a port's barcode reader and returns the carrier ID.
type Scanner struct {
	opts   Options
	logger zerolog.Logger
}

// NewScanner creates a scanner.
func NewScanner(opts Options) *Scanner {
	if opts.Timeout <= 0 {
		opts.Timeout = 7 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 2
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{}
	}
	return &Scanner{opts: opts, logger: log.WithComponent("barcode")}
}

// Normalize cuts a raw reader frame to the carrier ID and reports whether
// it is usable.
func Normalize(raw []byte) (string, bool) {
	if len(raw) > IDLen {
		raw = raw[:IDLen]
	}
	id := string(raw)
	if i := strings.IndexByte(id, 0); i >= 0 {
		id = id[:i]
	}
	if len(id) != IDLen || id[0] == '?' || id[0] == ' ' {
		return id, false
	}
	return id, true
}

// Read triggers the reader at readerIP on behalf of stocker.
func (p *Scanner) Read(ctx context.Context, stocker, readerIP string) (string, error) {
	logger := p.logger.With().Str("stk", stocker).Str("bcr_ip", readerIP).Logger()

	conn, err := p.dial(ctx, readerIP)
	if err != nil {
		metrics.BarcodeReads.WithLabelValues("unreachable").Inc()
		logger.Error().Err(err).Msg("Barcode reader connect failed")
		return "", err
	}
	defer conn.Close()

	id, err := p.readID(conn, logger)
	if err != nil {
		metrics.BarcodeReads.WithLabelValues("failed").Inc()
		return "", err
	}

	if p.opts.Policy.RemapPodID(stocker, id) && p.opts.Pods != nil {
		pod := id
		c, err := p.opts.Pods.Carrier(ctx, pod)
		if err != nil || c.LogicalID == "" {
			metrics.BarcodeReads.WithLabelValues("failed").Inc()
			return "", fmt.Errorf("%w: pod %s has no cassette: %v", ErrNoRead, pod, err)
		}
		id = c.LogicalID
		logger.Info().Str("pod_id", pod).Str("cst_id", id).Msg("Pod ID translated")
	}

	metrics.BarcodeReads.WithLabelValues("ok").Inc()
	logger.Info().Str("cst_id", id).Msg("Barcode read")
	return id, nil
}

func (p *Scanner) dial(ctx context.Context, readerIP string) (net.Conn, error) {
	addr := net.JoinHostPort(readerIP, strconv.Itoa(p.opts.Port))
	var lastErr error
	for attempt := 0; attempt < p.opts.Retry; attempt++ {
		dctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
		conn, err := p.opts.Dialer.DialContext(dctx, "tcp", addr)
		cancel()
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrUnreachable, addr, lastErr)
}

// readID sends read commands until a usable ID arrives or the retry budget
// is spent. A timeout or transport error ends the scan at once.
func (p *Scanner) readID(conn net.Conn, logger zerolog.Logger) (string, error) {
	buf := make([]byte, FrameLen)
	for failures := 0; ; {
		_ = conn.SetDeadline(time.Now().Add(p.opts.Timeout))
		if _, err := conn.Write([]byte{CmdRead}); err != nil {
			return "", fmt.Errorf("%w: send read command: %v", ErrNoRead, err)
		}
		n, err := conn.Read(buf)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoRead, err)
		}

		id, ok := Normalize(buf[:n])
		if ok {
			p.stop(conn)
			return id, nil
		}

		failures++
		logger.Warn().Str("data", id).Int("retry", failures).Msg("Barcode reader returned unusable data")
		if failures >= p.opts.Retry {
			p.stop(conn)
			return "", fmt.Errorf("%w: %d attempts", ErrNoRead, failures)
		}
	}
}

func (p *Scanner) stop(conn net.Conn) {
	_ = conn.SetWriteDeadline(time.Now().Add(p.opts.Timeout))
	_, _ = conn.Write([]byte{CmdStop})
}
