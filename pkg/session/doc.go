/*
Package session runs one stocker connection from Connect to Close.

A session is strictly half duplex: it reads one request, handles it and
writes exactly one reply before reading the next.

	AwaitingConnect ──Connect──► Active ──Close──► Closed
	       │                        │
	       └── anything else ──►    └── fatal error / EOF / idle ──► Closed

Connect resolves the stocker name (first character plus characters 2-6 of
the request name) to a carrier class through the directory and, when
backend dispatch is enabled for that class, opens the session's Ridian
connection. When dispatch is disabled the Ridian client answers every call
with a synthesized success reply.

Dispatch:

	frame ──► wire.ReadRequest ──► wire.DecodeRequest ──► routes[type]
	                                                         │
	                                           handler ──► outcome
	                                                         │
	              reply ──► wire.Encode ──► stocker ◄────────┘
	                 │
	                 ├─ write ok:     followUp (alerts, lot tracking)
	                 └─ write failed: lost (alerts, rollback), session ends

Multi-step operations that change the directory are expressed as a
Mutation: an Apply step and the Compensate step that undoes it. Associate
and Disassociate apply their mutation before calling Ridian and compensate
when Ridian rejects the change, when the Ridian link fails, or (for
Associate) when the reply cannot be delivered to the stocker.

Every request and reply is summarized to the protocol log shipper, traced
with an OpenTelemetry span and counted in stkgate_requests_total.
*/
package session
