package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cuemby/stkgate/pkg/events"
	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/cuemby/stkgate/pkg/session"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// SessionSource lists live stocker sessions. *server.Counter satisfies it.
type SessionSource interface {
	Sessions() []session.Info
	Session(id string) (session.Info, bool)
}

// EventSource hands out event subscriptions. *events.Broker satisfies it.
type EventSource interface {
	Subscribe() events.Subscriber
	Unsubscribe(sub events.Subscriber)
}

// Options configures the admin Server.
type Options struct {
	Address     string
	GRPCAddress string
	Sessions    SessionSource
	Events      EventSource
	// ReadyInterval is how often gRPC serving status follows readiness.
	ReadyInterval time.Duration
}

// Server is the admin surface: gin over HTTP plus the gRPC health service.
type Server struct {
	opts   Options
	router *gin.Engine
	grpc   *grpc.Server
	health *GRPCHealth
	logger zerolog.Logger
}

// NewServer builds the router and the gRPC server. Nothing listens until
// Run or Serve.
func NewServer(opts Options) *Server {
	if opts.ReadyInterval <= 0 {
		opts.ReadyInterval = 5 * time.Second
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		opts:   opts,
		router: gin.New(),
		health: NewGRPCHealth(),
		logger: log.WithComponent("api"),
	}
	s.grpc = grpc.NewServer(
		grpc.ChainUnaryInterceptor(LoggingInterceptor(s.logger)),
	)
	s.health.Register(s.grpc)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(gin.Recovery(), LoggingMiddleware(s.logger))

	s.router.GET("/health", gin.WrapF(metrics.HealthHandler()))
	s.router.GET("/ready", gin.WrapF(metrics.ReadyHandler()))
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/sessions", s.listSessions)
		v1.GET("/sessions/:id", s.getSession)
		v1.GET("/events", s.streamEvents)
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run listens on the configured addresses and serves until ctx is
// cancelled. An empty GRPCAddress disables the gRPC listener.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	httpLn, err := lc.Listen(ctx, "tcp", s.opts.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Address, err)
	}
	var grpcLn net.Listener
	if s.opts.GRPCAddress != "" {
		grpcLn, err = lc.Listen(ctx, "tcp", s.opts.GRPCAddress)
		if err != nil {
			httpLn.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.opts.GRPCAddress, err)
		}
	}
	return s.Serve(ctx, httpLn, grpcLn)
}

// Serve serves HTTP on httpLn and gRPC on grpcLn (which may be nil) until
// ctx is cancelled.
func (s *Server) Serve(ctx context.Context, httpLn, grpcLn net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	s.logger.Info().Str("addr", httpLn.Addr().String()).Msg("Admin HTTP listening")
	g.Go(func() error {
		if err := srv.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin http: %w", err)
		}
		return nil
	})

	if grpcLn != nil {
		s.logger.Info().Str("addr", grpcLn.Addr().String()).Msg("Admin gRPC listening")
		g.Go(func() error {
			if err := s.grpc.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("admin grpc: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			s.health.Follow(gctx, s.opts.ReadyInterval)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.grpc.Stop()
		return nil
	})

	return g.Wait()
}
