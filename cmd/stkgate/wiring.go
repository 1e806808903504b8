package main

import (
	"fmt"
	"time"

	"github.com/cuemby/stkgate/pkg/alert"
	"github.com/cuemby/stkgate/pkg/barcode"
	"github.com/cuemby/stkgate/pkg/config"
	"github.com/cuemby/stkgate/pkg/directory"
	"github.com/cuemby/stkgate/pkg/events"
	"github.com/cuemby/stkgate/pkg/health"
	"github.com/cuemby/stkgate/pkg/log"
	"github.com/cuemby/stkgate/pkg/logship"
	"github.com/cuemby/stkgate/pkg/lottrack"
	"github.com/cuemby/stkgate/pkg/metrics"
	"github.com/cuemby/stkgate/pkg/ridian"
	"github.com/cuemby/stkgate/pkg/session"
)

// openStore opens the directory backend named by cfg.
func openStore(cfg config.DirectoryConfig) (directory.Store, error) {
	switch cfg.Driver {
	case "bolt":
		return directory.NewBoltStore(cfg.Path)
	case "postgres":
		return directory.NewSQLStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown directory driver %q", cfg.Driver)
	}
}

// gateway is everything the stocker and barcode output listeners share.
type gateway struct {
	session *session.Config
	output  *barcode.OutputHandler
}

func newGateway(cfg config.Config, dir directory.Directory, rec logship.Recorder, pub events.Publisher) *gateway {
	tracker := lottrack.New(lottrack.Options{
		Address:  cfg.LotTrack.Address,
		Timeout:  cfg.LotTrack.Timeout,
		Policy:   cfg.Policy,
		Recorder: rec,
	})

	backend := func(stocker string, bypass bool) session.Backend {
		return ridian.New(ridian.Options{
			Address:     cfg.Backend.Address,
			Retry:       cfg.Retry,
			DialTimeout: cfg.Backend.DialTimeout,
			IOTimeout:   cfg.Backend.IOTimeout,
			Bypass:      bypass,
			Stocker:     stocker,
			Recorder:    rec,
		})
	}

	return &gateway{
		session: &session.Config{
			Settings:  cfg,
			Directory: dir,
			Backend:   backend,
			Barcode: barcode.NewScanner(barcode.Options{
				Port:    cfg.Barcode.Port,
				Timeout: cfg.Barcode.Timeout,
				Retry:   cfg.Retry,
				Policy:  cfg.Policy,
				Pods:    dir,
			}),
			LotTrack: tracker,
			Alerts: alert.NewClient(alert.Options{
				Address:   cfg.Alert.Address,
				Receiver:  cfg.Alert.Receiver,
				Timeout:   cfg.Alert.Timeout,
				PerMinute: cfg.Alert.PerMinute,
				Burst:     cfg.Alert.Burst,
				Recorder:  rec,
			}),
			Events:   pub,
			Recorder: rec,
		},
		output: &barcode.OutputHandler{
			Directory: dir,
			Notifier:  tracker,
			Events:    pub,
			Timeout:   cfg.Barcode.OutputTimeout,
			Logger:    log.WithComponent("barcode-output"),
		},
	}
}

// newMonitor watches the directory and every configured TCP collaborator.
func newMonitor(cfg config.Config, dir directory.Directory) *health.Monitor {
	m := health.NewMonitor(health.Config{
		Interval: 30 * time.Second,
		Timeout:  5 * time.Second,
		Retries:  3,
	}, nil)

	m.Add(metrics.ComponentDirectory, &health.DirectoryChecker{Directory: dir})
	endpoints := []struct {
		name string
		addr string
	}{
		{metrics.ComponentRidian, cfg.Backend.Address},
		{metrics.ComponentLotTrack, cfg.LotTrack.Address},
		{metrics.ComponentAlert, cfg.Alert.Address},
	}
	for _, ep := range endpoints {
		if ep.addr == "" {
			continue
		}
		m.Add(ep.name, health.NewTCPChecker(ep.addr))
	}
	return m
}
