package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/cuemby/stkgate/pkg/session"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// OutputHandler serves one connection from an output-port barcode reader.
// *barcode.OutputHandler satisfies it.
type OutputHandler interface {
	Serve(ctx context.Context, conn net.Conn) error
}

// Options configures a Server.
type Options struct {
	// Session is shared by every stocker session. Its Settings supply the
	// listen addresses and limits.
	Session *session.Config
	// Output serves pushes from output-port barcode readers. Nil disables
	// the output listener.
	Output OutputHandler
	// Counter receives live sessions. A new one is created when nil.
	Counter *Counter
}

// Server runs the stocker, barcode output and L4 health listeners.
type Server struct {
	opts    Options
	counter *Counter
	sem     *semaphore.Weighted
	conns   sync.WaitGroup
	logger  zerolog.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Counter == nil {
		opts.Counter = NewCounter()
	}
	limit := int64(opts.Session.Settings.Listen.MaxSessions)
	if limit <= 0 {
		limit = 1
	}
	return &Server{
		opts:    opts,
		counter: opts.Counter,
		sem:     semaphore.NewWeighted(limit),
		logger:  log.WithComponent("server"),
	}
}

// Counter returns the live-session registry.
func (s *Server) Counter() *Counter { return s.counter }

// Run listens on the configured addresses and serves until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context) error {
	settings := s.opts.Session.Settings
	var lc net.ListenConfig

	stockers, err := lc.Listen(ctx, "tcp", settings.StockerAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", settings.StockerAddr(), err)
	}
	health, err := lc.Listen(ctx, "tcp", settings.HealthAddr())
	if err != nil {
		stockers.Close()
		return fmt.Errorf("failed to listen on %s: %w", settings.HealthAddr(), err)
	}
	var outputs net.Listener
	if s.opts.Output != nil {
		outputs, err = lc.Listen(ctx, "tcp", settings.OutputAddr())
		if err != nil {
			stockers.Close()
			health.Close()
			return fmt.Errorf("failed to listen on %s: %w", settings.OutputAddr(), err)
		}
	}
	return s.Serve(ctx, stockers, outputs, health)
}

// Serve accepts on the given listeners until ctx is cancelled, then closes
// them and waits for open connections to finish, bounded by the drain
// timeout. outputs and health may be nil.
func (s *Server) Serve(ctx context.Context, stockers, outputs, health net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	listeners := []net.Listener{stockers}

	s.logger.Info().Str("addr", stockers.Addr().String()).Msg("Accepting stocker connections")
	metrics.UpdateComponent(metrics.ComponentStockerListener, true, "")
	g.Go(func() error { return s.acceptStockers(gctx, stockers) })

	if outputs != nil {
		listeners = append(listeners, outputs)
		s.logger.Info().Str("addr", outputs.Addr().String()).Msg("Accepting barcode output reads")
		metrics.UpdateComponent(metrics.ComponentOutputListener, true, "")
		g.Go(func() error { return s.acceptOutputs(gctx, outputs) })
	}
	if health != nil {
		listeners = append(listeners, health)
		g.Go(func() error { return acceptHealth(gctx, health) })
	}

	g.Go(func() error {
		<-gctx.Done()
		for _, ln := range listeners {
			_ = ln.Close()
		}
		return nil
	})

	err := g.Wait()
	metrics.UpdateComponent(metrics.ComponentStockerListener, false, "stopped")
	if outputs != nil {
		metrics.UpdateComponent(metrics.ComponentOutputListener, false, "stopped")
	}
	s.drain()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) acceptStockers(ctx context.Context, ln net.Listener) error {
	for {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return nil
		}
		conn, err := ln.Accept()
		if err != nil {
			s.sem.Release(1)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stocker accept: %w", err)
		}

		s.conns.Add(1)
		go s.serveStocker(ctx, conn)
	}
}

func (s *Server) serveStocker(ctx context.Context, conn net.Conn) {
	sess := session.New(conn, s.opts.Session)
	s.counter.add(sess)
	defer func() {
		s.counter.remove(sess.ID())
		_ = conn.Close()
		s.sem.Release(1)
		s.conns.Done()
	}()
	_ = sess.Serve(ctx)
}

func (s *Server) acceptOutputs(ctx context.Context, ln net.Listener) error {
	logger := s.logger.With().Str("listener", "output").Logger()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("output accept: %w", err)
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			defer conn.Close()
			if err := s.opts.Output.Serve(ctx, conn); err != nil {
				metrics.BarcodeReads.WithLabelValues("output_error").Inc()
				logger.Warn().Err(err).Str("peer", conn.RemoteAddr().String()).Msg("Output read failed")
			}
		}()
	}
}

// acceptHealth accepts and immediately closes connections so L4 load
// balancers see the gateway alive.
func acceptHealth(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("health accept: %w", err)
		}
		_ = conn.Close()
	}
}

func (s *Server) drain() {
	timeout := s.opts.Session.Settings.Listen.DrainTime
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All connections drained")
	case <-time.After(timeout):
		s.logger.Warn().Int("sessions", s.counter.Len()).Dur("timeout", timeout).Msg("Drain timed out, abandoning connections")
	}
}
