package server

import (
	"sort"
	"sync"

	"github.com/cuemby/stkgate/pkg/session"
)

// Counter tracks the live sessions. It is safe for concurrent use and
// feeds the admin API and the metrics collector.
type Counter struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewCounter creates an empty Counter.
func NewCounter() *Counter {
	return &Counter{sessions: make(map[string]*session.Session)}
}

func (c *Counter) add(s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[s.ID()] = s
}

func (c *Counter) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, id)
}

// Len returns the number of live sessions.
func (c *Counter) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

// Sessions returns a snapshot of every live session, oldest first.
func (c *Counter) Sessions() []session.Info {
	c.mu.RLock()
	out := make([]session.Info, 0, len(c.sessions))
	for _, s := range c.sessions {
		out = append(out, s.Info())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Opened.Before(out[j].Opened) })
	return out
}

// Session returns the live session with the given ID.
func (c *Counter) Session(id string) (session.Info, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[id]
	if !ok {
		return session.Info{}, false
	}
	return s.Info(), true
}

// CountByType groups live sessions by carrier type. Sessions that have not
// sent Connect yet count as "unknown".
func (c *Counter) CountByType() map[string]int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]int)
	for _, s := range c.sessions {
		out[s.CarrierType().String()]++
	}
	return out
}
