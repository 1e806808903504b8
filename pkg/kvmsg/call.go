package kvmsg

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Dialer opens collaborator connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Call dials addr, writes req and reads one reply frame on a fresh
// connection. timeout bounds the whole exchange.
func Call(ctx context.Context, d Dialer, addr string, timeout time.Duration, req Frame) (Frame, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Frame{}, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if err := WriteFrame(conn, req); err != nil {
		return Frame{}, fmt.Errorf("send %s: %w", req.Name, err)
	}
	reply, err := ReadFrame(conn)
	if err != nil {
		return Frame{}, fmt.Errorf("receive %s reply: %w", req.Name, err)
	}
	return reply, nil
}
