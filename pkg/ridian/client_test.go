package ridian

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/stkgate/pkg/logship"
	"github.com/cuemby/stkgate/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRidian accepts connections and hands each to handle with its
// 1-based connection index.
type fakeRidian struct {
	ln    net.Listener
	conns atomic.Int32
}

func startRidian(t *testing.T, handle func(conn net.Conn, idx int)) *fakeRidian {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeRidian{ln: ln}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			idx := int(f.conns.Add(1))
			go func() {
				defer conn.Close()
				handle(conn, idx)
			}()
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return f
}

func (f *fakeRidian) addr() string { return f.ln.Addr().String() }

// serve answers every request on conn with reply(req).
func serve(conn net.Conn, reply func(wire.Message) wire.Message) {
	for {
		b, err := wire.ReadRequest(conn)
		if err != nil {
			return
		}
		req, err := wire.DecodeRequest(b)
		if err != nil {
			return
		}
		if _, err := conn.Write(wire.Encode(reply(req))); err != nil {
			return
		}
	}
}

type recorder struct {
	mu      sync.Mutex
	records []logship.Record
}

func (r *recorder) Ship(rec logship.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *recorder) dests() []logship.Dest {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []logship.Dest
	for _, rec := range r.records {
		out = append(out, rec.Dest)
	}
	return out
}

type countingDialer struct {
	calls atomic.Int32
	net.Dialer
}

func (d *countingDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	d.calls.Add(1)
	return d.Dialer.DialContext(ctx, network, addr)
}

func newClient(addr string, opts ...func(*Options)) *Client {
	o := Options{
		Address:     addr,
		Retry:       2,
		DialTimeout: time.Second,
		IOTimeout:   2 * time.Second,
		Stocker:     "ST001",
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(o)
}

func TestSendRecv_Success(t *testing.T) {
	srv := startRidian(t, func(conn net.Conn, _ int) {
		serve(conn, func(req wire.Message) wire.Message {
			r := req.(*wire.GenRequest)
			return &wire.GenReply{Type: r.Type, PhysicalID: "TAG0001", LogicalName: r.LogicalName}
		})
	})
	rec := &recorder{}
	c := newClient(srv.addr(), func(o *Options) { o.Recorder = rec })

	reply, err := c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeLTPUnit, LogicalName: "RET-01"})
	require.NoError(t, err)

	got := reply.(*wire.GenReply)
	assert.Equal(t, "TAG0001", got.PhysicalID)
	assert.Equal(t, "RET-01", got.LogicalName)
	assert.True(t, c.Connected())
	assert.Equal(t, []logship.Dest{logship.ToBackend, logship.FromBackend}, rec.dests())

	// the connection is reused
	_, err = c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeLTPSensor, LogicalName: "PORT-A"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.conns.Load())
	assert.Zero(t, c.Reconnects())
}

func TestSendRecv_BypassSynthesizesWithoutNetwork(t *testing.T) {
	d := &countingDialer{}
	now := time.Unix(1700000000, 0)
	c := newClient("127.0.0.1:1", func(o *Options) {
		o.Bypass = true
		o.Dialer = d
		o.Now = func() time.Time { return now }
	})

	require.NoError(t, c.Connect(context.Background()))

	reply, err := c.SendRecv(context.Background(), &wire.QuerySensorRequest{Name: "PORT-A"})
	require.NoError(t, err)
	q := reply.(*wire.QuerySensorReply)
	assert.Zero(t, q.Result)
	assert.Equal(t, int32(1), q.TotalNum)
	assert.Equal(t, int16(1), q.Info.UnitType)
	assert.Equal(t, int32(now.Unix()), q.Info.UpdateTime)
	assert.Empty(t, q.Info.UnitID)

	reply, err = c.SendRecv(context.Background(), &wire.ReadMemoryRequest{Addr: 0x410})
	require.NoError(t, err)
	assert.Equal(t, int32(0x410), reply.(*wire.ReadMemoryReply).Addr)

	assert.Zero(t, d.calls.Load())
	assert.False(t, c.Connected())
	assert.True(t, c.Bypassed())
}

func TestSendRecv_RetryBound(t *testing.T) {
	// every connection reads the request and hangs up
	srv := startRidian(t, func(conn net.Conn, _ int) {
		_, _ = wire.ReadRequest(conn)
	})
	c := newClient(srv.addr(), func(o *Options) { o.Retry = 2 })

	_, err := c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeAssociate})
	require.Error(t, err)

	assert.Equal(t, 2, c.Reconnects())
	assert.Equal(t, int32(3), srv.conns.Load(), "one initial attempt plus two retries")
	assert.False(t, c.Connected())
}

func TestSendRecv_ReconnectReplacesConnection(t *testing.T) {
	srv := startRidian(t, func(conn net.Conn, idx int) {
		if idx == 1 {
			_, _ = wire.ReadRequest(conn)
			return
		}
		serve(conn, func(req wire.Message) wire.Message {
			return &wire.GenReply{Type: req.MsgType()}
		})
	})
	c := newClient(srv.addr())

	require.NoError(t, c.Connect(context.Background()))
	_, err := c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeAssociate})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Reconnects())

	_, err = c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeDisassociate})
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.conns.Load(), "later calls reuse the replacement")
}

func TestSendRecv_LengthMismatchDrainsAndSynthesizes(t *testing.T) {
	srv := startRidian(t, func(conn net.Conn, _ int) {
		if _, err := wire.ReadRequest(conn); err != nil {
			return
		}
		// a 2100 byte frame where a 68 byte reply was expected
		oversized := make([]byte, 2100)
		oversized[0], oversized[1], oversized[2] = 0x08, 0x34, byte(wire.TypeAssociate)
		_, _ = conn.Write(oversized)

		serve(conn, func(req wire.Message) wire.Message {
			return &wire.GenReply{Type: req.MsgType(), Result: 7}
		})
	})
	c := newClient(srv.addr())

	reply, err := c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeAssociate, PhysicalID: "AB1234"})
	require.NoError(t, err)
	assert.Equal(t, &wire.GenReply{Type: wire.TypeAssociate}, reply)

	// the stream is aligned again after the drain
	reply, err = c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeDisassociate})
	require.NoError(t, err)
	assert.Equal(t, int32(7), reply.(*wire.GenReply).Result)
	assert.Equal(t, int32(1), srv.conns.Load())
}

func TestSendRecv_TypeMismatchIsNotRetried(t *testing.T) {
	srv := startRidian(t, func(conn net.Conn, _ int) {
		serve(conn, func(wire.Message) wire.Message {
			return &wire.GenReply{Type: wire.TypeDisassociate}
		})
	})
	c := newClient(srv.addr())

	_, err := c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeAssociate})
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Zero(t, c.Reconnects())
	assert.Equal(t, int32(1), srv.conns.Load())
}

func TestSendRecv_ConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	d := &countingDialer{}
	c := newClient(addr, func(o *Options) {
		o.Dialer = d
		o.Retry = 3
	})

	_, err = c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeLTPSensor})
	assert.ErrorIs(t, err, ErrConnect)
	assert.Equal(t, int32(3), d.calls.Load())
}

type shortConn struct {
	net.Conn
}

func (c shortConn) Write(b []byte) (int, error) {
	return len(b) / 2, errors.New("connection reset")
}

type pipeDialer struct{}

func (pipeDialer) DialContext(context.Context, string, string) (net.Conn, error) {
	client, server := net.Pipe()
	go func() { _, _ = server.Read(make([]byte, 128)) }()
	return shortConn{Conn: client}, nil
}

func TestSendRecv_ShortWriteIsFatal(t *testing.T) {
	c := newClient("pipe", func(o *Options) { o.Dialer = pipeDialer{} })

	_, err := c.SendRecv(context.Background(), &wire.GenRequest{Type: wire.TypeAssociate})
	assert.ErrorIs(t, err, ErrShortWrite)
	assert.Zero(t, c.Reconnects())
}

func TestSendRecv_RejectsUnknownType(t *testing.T) {
	c := newClient("127.0.0.1:1", func(o *Options) { o.Bypass = true })
	_, err := c.SendRecv(context.Background(), &wire.GenRequest{Type: 99})
	assert.ErrorIs(t, err, wire.ErrMalformed)
}

func TestClose_SendsCloseRequest(t *testing.T) {
	var got atomic.Int32
	srv := startRidian(t, func(conn net.Conn, _ int) {
		serve(conn, func(req wire.Message) wire.Message {
			if req.MsgType() == wire.TypeClose {
				got.Add(1)
			}
			return &wire.SimpleReply{Type: req.MsgType()}
		})
	})
	c := newClient(srv.addr())
	require.NoError(t, c.Connect(context.Background()))

	require.NoError(t, c.Close(context.Background()))
	assert.False(t, c.Connected())
	assert.Equal(t, int32(1), got.Load())

	assert.NoError(t, c.Close(context.Background()), "closing twice is a no-op")
}

func TestDefaultReply(t *testing.T) {
	now := time.Unix(1700000000, 0)

	connect := DefaultReply(&wire.ConnectRequest{}, now).(*wire.ConnectReply)
	assert.Equal(t, int16(2), connect.Major)
	assert.Equal(t, int16(5), connect.Minor)

	display := DefaultReply(&wire.DisplayRequest{}, now).(*wire.SimpleReply)
	assert.Equal(t, wire.TypeDisplay, display.Type)
	assert.Zero(t, display.NumItems)

	for _, typ := range []wire.MsgType{wire.TypeAssociate, wire.TypeDisassociate, wire.TypeLTPUnit, wire.TypeLTPSensor, wire.TypePTLSensor} {
		gen := DefaultReply(&wire.GenRequest{Type: typ}, now).(*wire.GenReply)
		assert.Equal(t, typ, gen.Type)
		assert.Zero(t, gen.Result)
		assert.Len(t, wire.Encode(gen), typ.ReplySize())
	}
}
