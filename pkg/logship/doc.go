/*
Package logship forwards a summary of every protocol frame to a log
transport.

Each frame the gateway reads or writes, on either the stocker side or the
Ridian side, becomes a Record:

	{id, time, source=STKinf, dest="<- ST001" | "-> ST001" | "->RIDsvr" | "<-RIDsvr",
	 stk, name=rAssociateUnit, body="STK_ID=ST001|CST_ID=AB1234|LOT_ID=LOT0007"}

Handlers call Ship, which never blocks. A single goroutine drains the queue
into the configured Sink:

	handler ──Ship──▶ [buffer] ──run──▶ Sink
	                     │full
	                     ▼
	              stkgate_logship_dropped_total

Sinks:
  - log: the process zerolog logger
  - nats: JSON on <subject>.<stocker>
  - kafka: JSON keyed by stocker name

Shipping is best effort. A sink failure is logged, counted and reflected in
the logship component health; it never affects a stocker reply.
*/
package logship
