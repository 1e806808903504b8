package metrics

import (
	"time"
)

// SessionSource reports the live sessions grouped by carrier type.
type SessionSource interface {
	CountByType() map[string]int
}

// Collector periodically samples gauges that are cheaper to poll than to
// maintain on every state change.
type Collector struct {
	source   SessionSource
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(source SessionSource) *Collector {
	return &Collector{
		source:   source,
		interval: 15 * time.Second,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	SessionsByType.Reset()
	for typ, n := range c.source.CountByType() {
		SessionsByType.WithLabelValues(typ).Set(float64(n))
	}
}
