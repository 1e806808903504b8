/*
Package ridian is the client for the Ridian RFID tag-location backend.

Each stocker session owns one Client. The Client owns its TCP connection and
replaces it transparently when an exchange fails, so callers only ever see
SendRecv:

	            SendRecv(req)
	                 │
	      bypass? ───┴── yes ──▶ DefaultReply(req)
	                 │ no
	      no conn? ──┴── dial (Retry attempts) ── fail ──▶ ErrConnect
	                 │
	   ┌──────────▶ write frame ──────── short ──▶ ErrShortWrite
	   │             │ err/timeout
	   │  reconnect ◀┤
	   │  (≤ Retry)  │
	   │            read header ─────── err/timeout ─▶ reconnect
	   │             │
	   │      len != expected ──▶ drain ≤1024B chunks ──▶ DefaultReply(req)
	   │             │
	   │      type != sent ────────────▶ ErrTypeMismatch
	   │             │
	   │       read body ──── short ──▶ ErrShortRead
	   │             │
	   └─────────── reply

Every wait is bounded by IOTimeout (10s by default). Retries resend the
request on the new connection; a call makes at most 1+Retry attempts.

# Bypass

When backend dispatch is administratively disabled for a stocker's carrier
class (config ridian.lot_enabled / ridian.reticle_enabled), the session
creates its client with Bypass set. Every call then returns a synthesized
success reply without touching the network: result 0, empty fields, and for
QuerySensorLocation a single record stamped with the current time.

Each request sent and reply received is forwarded to the logship Recorder
with the ->RIDsvr and <-RIDsvr destinations.
*/
package ridian
