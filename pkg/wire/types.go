package wire

import "fmt"

// MsgType is the one-byte message type carried in every frame header.
type MsgType uint8

// Message types understood by the gateway. LTPUnit and LTPSensor are only
// ever sent to the Ridian backend; a stocker sending them is a protocol
// violation.
const (
	TypeAssociate    MsgType = 20
	TypeDisassociate MsgType = 21
	TypeLTPUnit      MsgType = 23
	TypePTLSensor    MsgType = 29
	TypeLTPSensor    MsgType = 30
	TypeDisplay      MsgType = 31
	TypeReadMemory   MsgType = 33
	TypeConnect      MsgType = 35
	TypeClose        MsgType = 36
	TypeQuerySensor  MsgType = 44
)

// Frame geometry.
const (
	HeaderSize = 3

	LogicalNameLen = 28
	PhysicalIDLen  = 16
	RAMDataLen     = 20
	DisplayTextLen = 42

	// RAMLineLen is the number of meaningful bytes in a ReadMemory reply.
	RAMLineLen = 16
)

type layout struct {
	name     string
	request  int
	reply    int
	fromPeer bool
	newReq   func(MsgType) Message
	newReply func(MsgType) Message
}

var layouts = map[MsgType]layout{
	TypeAssociate:    {"AssociateUnit", 72, 68, true, newGenRequest, newGenReply},
	TypeDisassociate: {"DisassociateUnit", 72, 68, true, newGenRequest, newGenReply},
	TypeLTPUnit:      {"LogicalToPhysicalUnit", 72, 68, false, newGenRequest, newGenReply},
	TypePTLSensor:    {"PhysicalToLogicalSensor", 72, 68, true, newGenRequest, newGenReply},
	TypeLTPSensor:    {"LogicalToPhysicalSensor", 72, 68, false, newGenRequest, newGenReply},
	TypeDisplay: {"DisplayMessage", 88, 8, true,
		func(MsgType) Message { return &DisplayRequest{} }, newSimpleReply},
	TypeReadMemory: {"ReadMemory", 40, 32, true,
		func(MsgType) Message { return &ReadMemoryRequest{} },
		func(MsgType) Message { return &ReadMemoryReply{} }},
	TypeConnect: {"Connect", 36, 14, true,
		func(MsgType) Message { return &ConnectRequest{} },
		func(MsgType) Message { return &ConnectReply{} }},
	TypeClose: {"Close", 4, 8, true,
		func(MsgType) Message { return &CloseRequest{} }, newSimpleReply},
	TypeQuerySensor: {"QuerySensorLocation", 48, 128, true,
		func(MsgType) Message { return &QuerySensorRequest{} },
		func(MsgType) Message { return &QuerySensorReply{} }},
}

func newGenRequest(t MsgType) Message  { return &GenRequest{Type: t} }
func newGenReply(t MsgType) Message    { return &GenReply{Type: t} }
func newSimpleReply(t MsgType) Message { return &SimpleReply{Type: t} }

// Valid reports whether t belongs to the closed message set.
func (t MsgType) Valid() bool {
	_, ok := layouts[t]
	return ok
}

// FromStocker reports whether a stocker may send t.
func (t MsgType) FromStocker() bool {
	return layouts[t].fromPeer
}

// RequestSize is the fixed request frame size for t, or 0 when t is unknown.
func (t MsgType) RequestSize() int {
	return layouts[t].request
}

// ReplySize is the fixed reply frame size for t, or 0 when t is unknown.
func (t MsgType) ReplySize() int {
	return layouts[t].reply
}

func (t MsgType) String() string {
	if l, ok := layouts[t]; ok {
		return l.name
	}
	return fmt.Sprintf("MsgType(%d)", uint8(t))
}

// Types returns every known message type.
func Types() []MsgType {
	return []MsgType{
		TypeAssociate, TypeDisassociate, TypeLTPUnit, TypePTLSensor, TypeLTPSensor,
		TypeDisplay, TypeReadMemory, TypeConnect, TypeClose, TypeQuerySensor,
	}
}
