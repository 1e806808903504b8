/*
Package barcode talks to the barcode readers mounted on stocker ports.

Scan (gateway dials the reader on the configured reader port):

	gateway                     reader
	   │────── 0x05 (read) ──────►│
	   │◄───── "CST001\r" ─────────│   7 bytes, 7s deadline
	   │────── 0x04 (stop) ──────►│
	   └─ close

A reply that starts with '?' or a blank, is shorter than six characters, or
carries a NUL counts as a failed attempt and the read command is sent
again. When the retry budget is spent the reader is stopped and Read
returns ErrNoRead. A timeout or transport error ends the scan at once.

On pod stockers a pod ID is translated to the cassette it carries through
the directory (the pod's carrier record names the cassette as its logical
ID).

Output push (reader dials the gateway on listen port + 3):

	reader ── "CST001\r" ──► OutputHandler
	                           │ reader IP -> output port record
	                           │ carrier -> logical ID, location
	                           └─ lot tracking LOPR when a location is set
*/
package barcode
