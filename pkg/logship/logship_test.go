package logship

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cuemby/stkgate/pkg/config"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/cuemby/stkgate/pkg/wire"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSink struct {
	mu      sync.Mutex
	records []Record
	err     error
	closed  bool
}

func (s *memSink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.records {
		out = append(out, r.Name)
	}
	return out
}

func TestShipper_DeliversQueuedRecordsOnStop(t *testing.T) {
	sink := &memSink{}
	s := NewShipper(sink, 16)
	s.Start()

	s.Ship(NewRecord("ST001", FromStocker("ST001"), &wire.ConnectRequest{Name: "S-T001"}))
	s.Ship(NewRecord("ST001", ToStocker("ST001"), &wire.ConnectReply{Major: 2, Minor: 5}))
	s.Stop()
	s.Stop()

	assert.Equal(t, []string{"rConnect", "rConnect"}, sink.names())
	assert.True(t, sink.closed)
}

func TestShipper_DropsWhenFull(t *testing.T) {
	sink := &memSink{}
	s := NewShipper(sink, 1)
	before := testutil.ToFloat64(metrics.LogRecordsDropped)

	rec := NewRecord("ST001", ToBackend, &wire.CloseRequest{})
	s.Ship(rec)
	s.Ship(rec)
	s.Ship(rec)

	assert.Equal(t, before+2, testutil.ToFloat64(metrics.LogRecordsDropped))

	s.Start()
	s.Stop()
	assert.Len(t, sink.names(), 1)
}

func TestShipper_SinkFailureIsNotFatal(t *testing.T) {
	sink := &memSink{err: errors.New("broker down")}
	s := NewShipper(sink, 4)
	s.Start()
	s.Ship(NewRecord("ST001", ToBackend, &wire.CloseRequest{}))
	s.Stop()

	assert.Empty(t, sink.names())
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord("ST001", FromStocker("ST001"),
		&wire.GenRequest{Type: wire.TypeAssociate, PhysicalID: "AB1234", LogicalName: "LOT0007"})

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, Source, rec.Source)
	assert.Equal(t, Dest("<- ST001"), rec.Dest)
	assert.Equal(t, "rAssociateUnit", rec.Name)
	assert.Equal(t, "STK_ID=ST001|CST_ID=AB1234|LOT_ID=LOT0007", rec.Body)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name string
		msg  wire.Message
		want string
	}{
		{"connect uses raw name", &wire.ConnectRequest{Name: "S-T001"}, "STK_ID=S-T001"},
		{"sensor lookup", &wire.GenRequest{Type: wire.TypePTLSensor, PhysicalID: "IRT1"}, "STK_ID=ST001|IRT_ID=IRT1"},
		{"read memory", &wire.ReadMemoryRequest{Addr: 0x410, UnitName: "LOT1"}, "STK_ID=ST001|LOT_ID=LOT1|ADDR=0x410"},
		{"display", &wire.DisplayRequest{Line: 3, UnitName: "RET1", Text: "HI"}, "STK_ID=ST001|LOT_ID=RET1|LINE=3|MSG=HI"},
		{"simple reply", &wire.SimpleReply{Type: wire.TypeClose, Result: 11}, "STK_ID=ST001|RESULT=11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize("ST001", tt.msg).String())
		})
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	require.NoError(t, sink.Write(context.Background(), Record{ID: "1", Dest: ToBackend, Stocker: "ST001", Name: "rClose", Body: "STK_ID=ST001"}))
	assert.Contains(t, buf.String(), `"dest":"->RIDsvr"`)
	assert.Contains(t, buf.String(), `"message":"STK_ID=ST001"`)
	assert.NoError(t, sink.Close())
}

func cfgSink(kind string) config.LogShipConfig {
	return config.LogShipConfig{Sink: kind, Subject: "stkgate.protocol"}
}

func TestNewSink(t *testing.T) {
	_, err := NewSink(cfgSink("kafka"), zerolog.Nop())
	assert.Error(t, err, "kafka without brokers")

	_, err = NewSink(cfgSink("syslog"), zerolog.Nop())
	assert.Error(t, err)

	s, err := NewSink(cfgSink("log"), zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogSink{}, s)
}
