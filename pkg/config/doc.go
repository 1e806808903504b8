/*
Package config loads the stkgate configuration.

Configuration is read once at startup from stkgate.yaml in the directory
named by STKGATE_CONF (default /etc/stkgate). A .env file in the working
directory or in the configuration directory is loaded first, so deployments
can keep credentials such as STKGATE_DB_DSN out of the YAML file.

Precedence, lowest to highest: Default(), stkgate.yaml, environment.

	listen:
	  port: 7000          # stocker protocol; +3 barcode output, +5 L4 health
	  max_sessions: 64
	retry: 2
	ridian:
	  address: ridian:7001
	  lot_enabled: true   # false bypasses Ridian for lot stockers
	  reticle_enabled: true
	barcode:
	  port: 9004
	directory:
	  driver: bolt        # or postgres with dsn
	  path: /var/lib/stkgate
	lottrack:
	  address: lts:7400
	alert:
	  address: hht:7500
	  receiver: OPS01
	logship:
	  sink: nats          # log, nats or kafka
	  url: nats://nats:4222
	admin:
	  address: :7080
	  grpc_address: :7081

The returned Config is a plain value. Components receive it (or the part
they need) at construction and never mutate it.
*/
package config
