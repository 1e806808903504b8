/*
Package log provides structured logging for stkgate using zerolog.

The log package wraps zerolog with a single global logger, configurable
levels, and helpers that attach the context every gateway log line needs:
the component, the session id and peer of a stocker connection, and the
stocker name once the Connect handshake has resolved it.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Safe for concurrent use                  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Context Loggers                     │          │
	│  │  - WithComponent("ridian")                  │          │
	│  │  - WithSession(id, peer)                    │          │
	│  │  - WithStocker(logger, "ST001")             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │  JSON (production) or console (RFC3339)     │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Usage

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})

	logger := log.WithComponent("acceptor")
	logger.Info().Str("addr", addr).Msg("Stocker listener started")

	sl := log.WithStocker(log.WithSession(id, peer), "ST001")
	sl.Error().Err(err).Msg("Ridian reconnect failed")

Per-request protocol records (the raw request and reply summaries) are not
written here; they go to the log shipper in pkg/logship so they can be
routed to the fab's log server independently of process logs.
*/
package log
