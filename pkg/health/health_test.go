package health

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Update(t *testing.T) {
	cfg := Config{Retries: 2}
	s := NewStatus()
	require.True(t, s.Healthy)

	s.Update(Result{Healthy: false, Message: "refused"}, cfg)
	assert.True(t, s.Healthy, "one failure is tolerated")
	assert.Equal(t, 1, s.ConsecutiveFailures)

	s.Update(Result{Healthy: false, Message: "refused"}, cfg)
	assert.False(t, s.Healthy)
	assert.Equal(t, "refused", s.LastResult.Message)

	s.Update(Result{Healthy: true}, cfg)
	assert.True(t, s.Healthy)
	assert.Zero(t, s.ConsecutiveFailures)
	assert.Equal(t, 1, s.ConsecutiveSuccesses)
}

func TestTCPChecker(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	checker := NewTCPChecker(addr).WithTimeout(time.Second)
	assert.Equal(t, CheckTypeTCP, checker.Type())

	result := checker.Check(context.Background())
	assert.True(t, result.Healthy)
	assert.Contains(t, result.Message, addr)
	assert.False(t, result.CheckedAt.IsZero())

	ln.Close()
	result = checker.Check(context.Background())
	assert.False(t, result.Healthy)
	assert.Contains(t, result.Message, "connection failed")
}

type stubDirectory struct {
	directory.Directory
	err error
}

func (s stubDirectory) Stocker(context.Context, string) (directory.Stocker, error) {
	return directory.Stocker{}, s.err
}

func TestDirectoryChecker(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		healthy bool
	}{
		{"found", nil, true},
		{"not found is healthy", directory.ErrNotFound, true},
		{"store failure", errors.New("database is locked"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &DirectoryChecker{Directory: stubDirectory{err: tt.err}}
			assert.Equal(t, tt.healthy, c.Check(context.Background()).Healthy)
		})
	}
}

func TestDirectoryChecker_BoltStore(t *testing.T) {
	store, err := directory.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	c := &DirectoryChecker{Directory: store}
	assert.True(t, c.Check(context.Background()).Healthy)
	assert.Equal(t, CheckTypeDirectory, c.Type())
}

type flipChecker struct {
	mu      sync.Mutex
	healthy bool
}

func (f *flipChecker) set(h bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = h
}

func (f *flipChecker) Check(context.Context) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg := ""
	if !f.healthy {
		msg = "down"
	}
	return Result{Healthy: f.healthy, Message: msg, CheckedAt: time.Now()}
}

func (f *flipChecker) Type() CheckType { return CheckTypeTCP }

type reports struct {
	mu   sync.Mutex
	last map[string]string
	ok   map[string]bool
}

func (r *reports) report(name string, healthy bool, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ok[name] = healthy
	r.last[name] = message
}

func (r *reports) get(name string) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ok[name], r.last[name]
}

func TestMonitor_CheckAll(t *testing.T) {
	rep := &reports{last: map[string]string{}, ok: map[string]bool{}}
	m := NewMonitor(Config{Retries: 2, Timeout: time.Second}, rep.report)

	ridian := &flipChecker{healthy: true}
	alert := &flipChecker{healthy: false}
	m.Add("ridian", ridian)
	m.Add("alert", alert)
	assert.Equal(t, []string{"alert", "ridian"}, m.Components())

	m.CheckAll(context.Background())
	ok, _ := rep.get("ridian")
	assert.True(t, ok)
	ok, _ = rep.get("alert")
	assert.True(t, ok, "below retry threshold")

	m.CheckAll(context.Background())
	ok, msg := rep.get("alert")
	assert.False(t, ok)
	assert.Equal(t, "down", msg)

	status, found := m.Status("alert")
	require.True(t, found)
	assert.Equal(t, 2, status.ConsecutiveFailures)

	alert.set(true)
	m.CheckAll(context.Background())
	ok, msg = rep.get("alert")
	assert.True(t, ok)
	assert.Empty(t, msg)

	_, found = m.Status("lottrack")
	assert.False(t, found)
}

func TestMonitor_Run(t *testing.T) {
	rep := &reports{last: map[string]string{}, ok: map[string]bool{}}
	m := NewMonitor(Config{Interval: 10 * time.Millisecond, Retries: 1}, rep.report)
	c := &flipChecker{healthy: true}
	m.Add("lottrack", c)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { ok, _ := rep.get("lottrack"); return ok }, time.Second, 5*time.Millisecond)
	c.set(false)
	require.Eventually(t, func() bool { ok, _ := rep.get("lottrack"); return !ok }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
