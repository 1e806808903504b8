/*
Package server accepts stocker connections and runs one session per
connection.

Three listeners share one errgroup:

	listen.port      ──► stocker sessions   (semaphore gated)
	listen.port + 3  ──► barcode output reads
	listen.port + 5  ──► L4 health (accept, close)

The stocker loop takes a semaphore slot before each Accept, so at most
listen.max_sessions sessions run and further stockers wait in the kernel
backlog until a slot frees. Each connection is served by its own goroutine
whose deferred cleanup closes the socket, deregisters the session from the
Counter and releases the slot, on every exit path.

Shutdown cancels the context: listeners close, sessions notice through
their read deadline, and Serve waits up to listen.drain_timeout for them.

	ctx ──cancel──► close listeners ──► sessions end ──► drain (bounded)
*/
package server
