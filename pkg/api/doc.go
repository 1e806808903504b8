/*
Package api serves the gateway's admin surface: a gin HTTP router and the
gRPC health service.

# Routes

	GET /health                 liveness, 503 when any component is unhealthy
	GET /ready                  readiness, 503 until critical components report
	GET /metrics                prometheus exposition
	GET /api/v1/sessions        live stocker sessions, oldest first
	GET /api/v1/sessions/:id    one session
	GET /api/v1/events          websocket stream of broker events (?type= filters)

The admin surface is read-only. It never touches a stocker connection or the
directory; sessions are read from the server.Counter snapshot and events
come from the events.Broker.

# Event stream

	Broker ──► Subscriber chan ──► streamEvents ──WriteJSON──► websocket
	                                    ▲
	                    ping every 54s ─┘  (peer must pong within 60s)

A slow client loses events rather than slowing the broker; the broker drops
on a full subscriber channel.

# gRPC

admin.grpc_address carries grpc.health.v1.Health for the "" and "stkgate"
services. GRPCHealth.Follow polls metrics.GetReadiness and flips the status
between SERVING and NOT_SERVING. Shutdown reports NOT_SERVING to watchers
before the server stops.

# Usage

	srv := api.NewServer(api.Options{
		Address:     cfg.Admin.Address,
		GRPCAddress: cfg.Admin.GRPCAddress,
		Sessions:    gateway.Counter(),
		Events:      broker,
	})
	err := srv.Run(ctx)
*/
package api
