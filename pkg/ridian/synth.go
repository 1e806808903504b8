package ridian

import (
	"time"

	"github.com/cuemby/stkgate/pkg/wire"
)

// DefaultReply builds the success reply used when Ridian is bypassed or
// answered with a frame of the wrong size.
func DefaultReply(req wire.Message, now time.Time) wire.Message {
	switch r := req.(type) {
	case *wire.ConnectRequest:
		return &wire.ConnectReply{Major: 2, Minor: 5, ByteOrder: 'l'}
	case *wire.ReadMemoryRequest:
		return &wire.ReadMemoryReply{Addr: r.Addr}
	case *wire.QuerySensorRequest:
		ts := int32(now.Unix())
		return &wire.QuerySensorReply{
			LastFlag: 1,
			TotalNum: 1,
			NumItems: 1,
			Info: wire.QueryInfo{
				UnitType:       1,
				UpdateTime:     ts,
				MoveTime:       ts,
				MotionTime:     ts,
				UnitCategory:   1,
				SensorCategory: 1,
			},
		}
	case *wire.GenRequest:
		return &wire.GenReply{Type: r.Type}
	default:
		// Close and DisplayMessage
		return &wire.SimpleReply{Type: req.MsgType()}
	}
}
