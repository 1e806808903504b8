package logship

import (
	"fmt"
	"time"

	"github.com/cuemby/stkgate/pkg/kvmsg"
	"github.com/cuemby/stkgate/pkg/wire"
	"github.com/google/uuid"
)

// Source names this process in every record.
const Source = "STKinf"

// Dest says which way a frame travelled.
type Dest string

const (
	ToBackend    Dest = "->RIDsvr"
	FromBackend  Dest = "<-RIDsvr"
	ToLotTrack   Dest = "->LTSsvr"
	FromLotTrack Dest = "<-LTSsvr"
	ToAlert      Dest = "->HHTinf"
	FromAlert    Dest = "<-HHTinf"
)

// FromStocker is the destination tag for a frame read from a stocker.
func FromStocker(stocker string) Dest { return Dest(fmt.Sprintf("<-%6s", stocker)) }

// ToStocker is the destination tag for a frame written to a stocker.
func ToStocker(stocker string) Dest { return Dest(fmt.Sprintf("->%6s", stocker)) }

// Record is one shipped protocol log line.
type Record struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Source  string    `json:"source"`
	Dest    Dest      `json:"dest"`
	Stocker string    `json:"stk"`
	Name    string    `json:"name"`
	Body    string    `json:"body"`
}

// NewRecord summarizes m for shipping.
func NewRecord(stocker string, dest Dest, m wire.Message) Record {
	return Record{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Source:  Source,
		Dest:    dest,
		Stocker: stocker,
		Name:    Name(m.MsgType()),
		Body:    Summarize(stocker, m).String(),
	}
}

// NewTextRecord wraps a key/value message exchanged with a text-protocol
// collaborator.
func NewTextRecord(stocker string, dest Dest, name string, body kvmsg.Message) Record {
	return Record{
		ID:      uuid.NewString(),
		Time:    time.Now(),
		Source:  Source,
		Dest:    dest,
		Stocker: stocker,
		Name:    name,
		Body:    body.String(),
	}
}

var names = map[wire.MsgType]string{
	wire.TypeConnect:      "rConnect",
	wire.TypeClose:        "rClose",
	wire.TypePTLSensor:    "rPhysicalToLogicalSensor",
	wire.TypeLTPSensor:    "rLogicalToPhysicalSensor",
	wire.TypeQuerySensor:  "rListUnitAtIrt",
	wire.TypeReadMemory:   "rReadMemory",
	wire.TypeAssociate:    "rAssociateUnit",
	wire.TypeDisassociate: "rDisassociateUnit",
	wire.TypeDisplay:      "rDisplayMsg",
	wire.TypeLTPUnit:      "rLogicalToPhysicalUnit",
}

// Name is the log name of a message type.
func Name(t wire.MsgType) string {
	if n, ok := names[t]; ok {
		return n
	}
	return t.String()
}

// Summarize renders the fields of m that operators search logs by.
func Summarize(stocker string, m wire.Message) kvmsg.Message {
	s := kvmsg.New("STK_ID", stocker)

	switch v := m.(type) {
	case *wire.ConnectRequest:
		s = kvmsg.New("STK_ID", v.Name)
	case *wire.ConnectReply:
		s = s.Add("RESULT", fmt.Sprint(v.Result)).
			Add("VERSION", fmt.Sprintf("%d.%d", v.Major, v.Minor))
	case *wire.CloseRequest:
	case *wire.SimpleReply:
		s = s.Add("RESULT", fmt.Sprint(v.Result))
	case *wire.GenRequest:
		switch v.Type {
		case wire.TypePTLSensor:
			s = s.Add("IRT_ID", v.PhysicalID)
		case wire.TypeLTPSensor:
			s = s.Add("IRT_NAME", v.LogicalName)
		case wire.TypeAssociate:
			s = s.Add("CST_ID", v.PhysicalID).Add("LOT_ID", v.LogicalName)
		default:
			s = s.Add("LOT_ID", v.LogicalName)
		}
	case *wire.GenReply:
		s = s.Add("RESULT", fmt.Sprint(v.Result)).
			Add("PHYSICAL_ID", v.PhysicalID).
			Add("LOGICAL_ID", v.LogicalName)
	case *wire.QuerySensorRequest:
		s = s.Add("IRT_NAME", v.Name)
	case *wire.QuerySensorReply:
		s = s.Add("RESULT", fmt.Sprint(v.Result)).
			Add("CST_ID", v.Info.UnitID).
			Add("LOT_ID", v.Info.UnitName).
			Add("IRT_ID", v.Info.SensorID).
			Add("IRT_NAME", v.Info.SensorName)
	case *wire.ReadMemoryRequest:
		s = s.Add("LOT_ID", v.UnitName).Add("ADDR", fmt.Sprintf("0x%X", v.Addr))
	case *wire.ReadMemoryReply:
		s = s.Add("RESULT", fmt.Sprint(v.Result)).
			Add("ADDR", fmt.Sprintf("0x%X", v.Addr)).
			Add("DATA", v.Data)
	case *wire.DisplayRequest:
		s = s.Add("LOT_ID", v.UnitName).Add("LINE", fmt.Sprint(v.Line)).Add("MSG", v.Text)
	}
	return s
}
