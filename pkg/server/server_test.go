package server

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cuemby/stkgate/pkg/config"
	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/ridian"
	"github.com/cuemby/stkgate/pkg/session"
	"github.com/cuemby/stkgate/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outputCounter struct {
	served atomic.Int32
}

func (p *outputCounter) Serve(context.Context, net.Conn) error {
	p.served.Add(1)
	return nil
}

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	return ln
}

type testServer struct {
	srv      *Server
	stockers net.Listener
	outputs  net.Listener
	health   net.Listener
	output   *outputCounter
	cancel   context.CancelFunc
	done     chan error
}

func startServer(t *testing.T, maxSessions int) *testServer {
	t.Helper()
	store, err := directory.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Import(context.Background(), &directory.Seed{
		Stockers: []directory.Stocker{{Name: "ST001", Code: "ST01"}},
	}))

	settings := config.Default()
	settings.Listen.MaxSessions = maxSessions
	settings.Listen.ReadSlice = 50 * time.Millisecond
	settings.Listen.DrainTime = 2 * time.Second
	settings.Backend.LotEnabled = false

	ts := &testServer{
		stockers: listen(t),
		outputs:  listen(t),
		health:   listen(t),
		output:   &outputCounter{},
		done:     make(chan error, 1),
	}
	ts.srv = New(Options{
		Session: &session.Config{
			Settings:  settings,
			Directory: store,
			Backend: func(stocker string, bypass bool) session.Backend {
				return ridian.New(ridian.Options{Stocker: stocker, Bypass: bypass})
			},
		},
		Output: ts.output,
	})

	ctx, cancel := context.WithCancel(context.Background())
	ts.cancel = cancel
	go func() { ts.done <- ts.srv.Serve(ctx, ts.stockers, ts.outputs, ts.health) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-ts.done:
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return ts
}

func dialStocker(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(3*time.Second)))
	return conn
}

func connect(t *testing.T, conn net.Conn) *wire.ConnectReply {
	t.Helper()
	_, err := conn.Write(wire.Encode(&wire.ConnectRequest{ByteOrder: 'l', Name: "S?T001"}))
	require.NoError(t, err)
	b := make([]byte, wire.TypeConnect.ReplySize())
	_, err = io.ReadFull(conn, b)
	require.NoError(t, err)
	rep, err := wire.DecodeReply(b)
	require.NoError(t, err)
	return rep.(*wire.ConnectReply)
}

func TestServer_ServesSessions(t *testing.T) {
	ts := startServer(t, 4)

	conn := dialStocker(t, ts.stockers.Addr().String())
	rep := connect(t, conn)
	assert.Equal(t, int16(0), rep.Result)

	require.Eventually(t, func() bool { return ts.srv.Counter().Len() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, map[string]int{"lot": 1}, ts.srv.Counter().CountByType())

	infos := ts.srv.Counter().Sessions()
	require.Len(t, infos, 1)
	assert.Equal(t, "ST001", infos[0].Stocker)
	_, ok := ts.srv.Counter().Session(infos[0].ID)
	assert.True(t, ok)

	conn.Close()
	require.Eventually(t, func() bool { return ts.srv.Counter().Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_SemaphoreBoundsSessions(t *testing.T) {
	ts := startServer(t, 1)

	first := dialStocker(t, ts.stockers.Addr().String())
	connect(t, first)

	second := dialStocker(t, ts.stockers.Addr().String())
	_, err := second.Write(wire.Encode(&wire.ConnectRequest{Name: "S?T001"}))
	require.NoError(t, err)

	// The second stocker waits for a slot.
	require.NoError(t, second.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, err = second.Read(make([]byte, 1))
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
	assert.Equal(t, 1, ts.srv.Counter().Len())

	first.Close()
	require.NoError(t, second.SetReadDeadline(time.Now().Add(3*time.Second)))
	b := make([]byte, wire.TypeConnect.ReplySize())
	_, err = io.ReadFull(second, b)
	require.NoError(t, err)
}

func TestServer_HealthListenerAcceptsAndCloses(t *testing.T) {
	ts := startServer(t, 1)

	conn, err := net.DialTimeout("tcp", ts.health.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestServer_OutputListener(t *testing.T) {
	ts := startServer(t, 1)

	conn, err := net.DialTimeout("tcp", ts.outputs.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.output.served.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestServer_ShutdownEndsSessions(t *testing.T) {
	ts := startServer(t, 2)

	conn := dialStocker(t, ts.stockers.Addr().String())
	connect(t, conn)

	ts.cancel()
	select {
	case err := <-ts.done:
		assert.NoError(t, err)
		ts.done <- err
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.Zero(t, ts.srv.Counter().Len())

	_, err := conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
