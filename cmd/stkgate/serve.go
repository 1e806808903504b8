package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuemby/stkgate/pkg/api"
	"github.com/cuemby/stkgate/pkg/config"
	"github.com/cuemby/stkgate/pkg/events"
	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/logship"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/cuemby/stkgate/pkg/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway",
	Long: `Run the stocker listener, the barcode output listener, the L4
health listener and the admin HTTP/gRPC endpoints until SIGINT or SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Log.Level = level
		}
		log.Init(log.Config{
			Level:      log.ParseLevel(cfg.Log.Level),
			JSONOutput: cfg.Log.JSON,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().String("log-level", "", "Override log.level (debug, info, warn, error)")
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := log.WithComponent("main")
	metrics.SetVersion(Version)
	metrics.SetCriticalComponents(metrics.ComponentStockerListener, metrics.ComponentDirectory)

	store, err := openStore(cfg.Directory)
	if err != nil {
		return fmt.Errorf("failed to open directory: %w", err)
	}
	defer store.Close()

	sink, err := logship.NewSink(cfg.LogShip, log.WithComponent("protocol"))
	if err != nil {
		return err
	}
	shipper := logship.NewShipper(sink, cfg.LogShip.Buffer)
	shipper.Start()
	defer shipper.Stop()

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	gw := newGateway(cfg, store, shipper, broker)
	counter := server.NewCounter()
	stockers := server.New(server.Options{
		Session: gw.session,
		Output:  gw.output,
		Counter: counter,
	})
	admin := api.NewServer(api.Options{
		Address:     cfg.Admin.Address,
		GRPCAddress: cfg.Admin.GRPCAddress,
		Sessions:    counter,
		Events:      broker,
	})

	collector := metrics.NewCollector(counter)
	collector.Start()
	defer collector.Stop()

	logger.Info().
		Str("version", Version).
		Str("stockers", cfg.StockerAddr()).
		Str("outputs", cfg.OutputAddr()).
		Str("health", cfg.HealthAddr()).
		Str("admin", cfg.Admin.Address).
		Str("directory", cfg.Directory.Driver).
		Bool("lot_backend", cfg.Backend.LotEnabled).
		Bool("reticle_backend", cfg.Backend.ReticleEnabled).
		Msg("Starting stkgate")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return stockers.Run(gctx) })
	g.Go(func() error { return admin.Run(gctx) })
	g.Go(func() error {
		newMonitor(cfg, store).Run(gctx)
		return nil
	})

	err = g.Wait()
	logger.Info().Msg("Shutdown complete")
	return err
}
