/*
Package wire implements the fixed-layout binary protocol spoken by stockers
and by the Ridian tag-location backend.

Every frame starts with a three byte header followed by a body whose size is
fixed by the message type:

	 0       2     3
	┌───────┬─────┬──────────────────────────────┐
	│ len   │type │ body (type specific)         │
	│ u16BE │ u8  │                              │
	└───────┴─────┴──────────────────────────────┘

The declared length always equals the full frame size for the type and
direction. A frame whose type byte is outside the closed set, or whose
length disagrees with the type, is rejected with ErrMalformed (ErrUnknownType
for the former); both end the owning session.

# Message set

	Type                     Code  Request  Reply
	AssociateUnit              20       72     68
	DisassociateUnit           21       72     68
	LogicalToPhysicalUnit      23       72     68   backend only
	PhysicalToLogicalSensor    29       72     68
	LogicalToPhysicalSensor    30       72     68   backend only
	DisplayMessage             31       88      8
	ReadMemory                 33       40     32
	Connect                    35       36     14
	Close                      36        4      8
	QuerySensorLocation        44       48    128

Integers are big-endian and read at explicit offsets. Text fields are fixed
width and NUL padded; decoding stops at the first NUL, encoding truncates to
the field width.

# Usage

	frame, err := wire.ReadRequest(conn)
	if err != nil {
		return err // fatal to the session
	}
	msg, err := wire.DecodeRequest(frame)
	...
	conn.Write(wire.Encode(&wire.SimpleReply{Type: wire.TypeClose}))
*/
package wire
