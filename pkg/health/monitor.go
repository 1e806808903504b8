package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/rs/zerolog"
)

// Reporter receives component health. metrics.UpdateComponent is the
// default.
type Reporter func(name string, healthy bool, message string)

// Monitor runs a Checker per component on a fixed interval and reports the
// folded Status to the health registry behind /health and /ready.
type Monitor struct {
	config   Config
	report   Reporter
	logger   zerolog.Logger
	mu       sync.Mutex
	checkers map[string]Checker
	statuses map[string]*Status
}

// NewMonitor creates a Monitor. A nil report sends to the metrics package.
func NewMonitor(config Config, report Reporter) *Monitor {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Retries <= 0 {
		config.Retries = def.Retries
	}
	if report == nil {
		report = metrics.UpdateComponent
	}
	return &Monitor{
		config:   config,
		report:   report,
		logger:   log.WithComponent("health"),
		checkers: make(map[string]Checker),
		statuses: make(map[string]*Status),
	}
}

// Add registers a component. Adding an existing name replaces its checker
// and resets its status.
func (m *Monitor) Add(name string, c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers[name] = c
	m.statuses[name] = NewStatus()
}

// Components returns the registered component names, sorted.
func (m *Monitor) Components() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.checkers))
	for name := range m.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Status returns a copy of a component's status.
func (m *Monitor) Status(name string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[name]
	if !ok {
		return Status{}, false
	}
	return *s, true
}

// CheckAll runs every checker once, concurrently, and reports the results.
func (m *Monitor) CheckAll(ctx context.Context) {
	m.mu.Lock()
	checkers := make(map[string]Checker, len(m.checkers))
	for name, c := range m.checkers {
		checkers[name] = c
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for name, c := range checkers {
		wg.Add(1)
		go func(name string, c Checker) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
			defer cancel()
			m.record(name, c.Check(checkCtx))
		}(name, c)
	}
	wg.Wait()
}

func (m *Monitor) record(name string, result Result) {
	m.mu.Lock()
	status, ok := m.statuses[name]
	if !ok {
		m.mu.Unlock()
		return
	}
	was := status.Healthy
	status.Update(result, m.config)
	healthy := status.Healthy
	m.mu.Unlock()

	message := ""
	if !healthy {
		message = result.Message
	}
	m.report(name, healthy, message)

	switch {
	case was && !healthy:
		m.logger.Warn().Str("component", name).Str("reason", result.Message).Msg("Component unhealthy")
	case !was && healthy:
		m.logger.Info().Str("component", name).Msg("Component recovered")
	}
}

// Run checks immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.CheckAll(ctx)
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}
