package wire

// Message is one fixed-layout frame.
type Message interface {
	MsgType() MsgType
	// Size is the full frame size including the header.
	Size() int

	marshal(b []byte)
	unmarshal(b []byte)
}

// ConnectRequest opens a stocker session.
type ConnectRequest struct {
	ByteOrder byte
	BitOrder  byte
	Name      string
}

func (*ConnectRequest) MsgType() MsgType { return TypeConnect }
func (*ConnectRequest) Size() int        { return TypeConnect.RequestSize() }

func (m *ConnectRequest) marshal(b []byte) {
	b[3] = m.ByteOrder
	b[4] = m.BitOrder
	putString(b, 8, LogicalNameLen, m.Name)
}

func (m *ConnectRequest) unmarshal(b []byte) {
	m.ByteOrder = b[3]
	m.BitOrder = b[4]
	m.Name = getString(b, 8, LogicalNameLen)
}

// ConnectReply carries the protocol version back to the stocker.
type ConnectReply struct {
	Result    int16
	Major     int16
	Minor     int16
	ByteOrder byte
	BitOrder  byte
	Point     int16
}

func (*ConnectReply) MsgType() MsgType { return TypeConnect }
func (*ConnectReply) Size() int        { return TypeConnect.ReplySize() }

func (m *ConnectReply) marshal(b []byte) {
	putI16(b, 4, m.Result)
	putI16(b, 6, m.Major)
	putI16(b, 8, m.Minor)
	b[10] = m.ByteOrder
	b[11] = m.BitOrder
	putI16(b, 12, m.Point)
}

func (m *ConnectReply) unmarshal(b []byte) {
	m.Result = getI16(b, 4)
	m.Major = getI16(b, 6)
	m.Minor = getI16(b, 8)
	m.ByteOrder = b[10]
	m.BitOrder = b[11]
	m.Point = getI16(b, 12)
}

// CloseRequest ends a stocker session. It has no body.
type CloseRequest struct{}

func (*CloseRequest) MsgType() MsgType { return TypeClose }
func (*CloseRequest) Size() int        { return TypeClose.RequestSize() }
func (*CloseRequest) marshal([]byte)   {}
func (*CloseRequest) unmarshal([]byte) {}

// SimpleReply answers Close and DisplayMessage.
type SimpleReply struct {
	Type     MsgType
	NumItems uint8
	Result   int16
}

func (m *SimpleReply) MsgType() MsgType { return m.Type }
func (m *SimpleReply) Size() int        { return m.Type.ReplySize() }

func (m *SimpleReply) marshal(b []byte) {
	b[3] = m.NumItems
	putI16(b, 4, m.Result)
}

func (m *SimpleReply) unmarshal(b []byte) {
	m.NumItems = b[3]
	m.Result = getI16(b, 4)
}

// GenRequest is the generic unit/sensor request shared by AssociateUnit,
// DisassociateUnit, PhysicalToLogicalSensor and the backend-only
// LogicalToPhysical lookups.
type GenRequest struct {
	Type        MsgType
	ItemType    int32
	PhysicalID  string
	LogicalName string
	AltID       string
	Period      int32
}

func (m *GenRequest) MsgType() MsgType { return m.Type }
func (m *GenRequest) Size() int        { return m.Type.RequestSize() }

func (m *GenRequest) marshal(b []byte) {
	putI32(b, 4, m.ItemType)
	putString(b, 8, PhysicalIDLen, m.PhysicalID)
	putString(b, 24, LogicalNameLen, m.LogicalName)
	putString(b, 52, PhysicalIDLen, m.AltID)
	putI32(b, 68, m.Period)
}

func (m *GenRequest) unmarshal(b []byte) {
	m.ItemType = getI32(b, 4)
	m.PhysicalID = getString(b, 8, PhysicalIDLen)
	m.LogicalName = getString(b, 24, LogicalNameLen)
	m.AltID = getString(b, 52, PhysicalIDLen)
	m.Period = getI32(b, 68)
}

// GenReply answers a GenRequest.
type GenReply struct {
	Type        MsgType
	Result      int32
	PhysicalID  string
	LogicalName string
	AltID       string
}

func (m *GenReply) MsgType() MsgType { return m.Type }
func (m *GenReply) Size() int        { return m.Type.ReplySize() }

func (m *GenReply) marshal(b []byte) {
	putI32(b, 4, m.Result)
	putString(b, 8, PhysicalIDLen, m.PhysicalID)
	putString(b, 24, LogicalNameLen, m.LogicalName)
	putString(b, 52, PhysicalIDLen, m.AltID)
}

func (m *GenReply) unmarshal(b []byte) {
	m.Result = getI32(b, 4)
	m.PhysicalID = getString(b, 8, PhysicalIDLen)
	m.LogicalName = getString(b, 24, LogicalNameLen)
	m.AltID = getString(b, 52, PhysicalIDLen)
}

// QuerySensorRequest asks what unit sits at the named sensor (port).
type QuerySensorRequest struct {
	RequestType  uint8
	ResponseType uint8
	LastFlag     uint8
	PingTime     int32
	NumItems     int32
	Name         string
	UnitTransit  uint8
}

func (*QuerySensorRequest) MsgType() MsgType { return TypeQuerySensor }
func (*QuerySensorRequest) Size() int        { return TypeQuerySensor.RequestSize() }

func (m *QuerySensorRequest) marshal(b []byte) {
	b[3] = m.RequestType
	b[4] = m.ResponseType
	b[7] = m.LastFlag
	putI32(b, 8, m.PingTime)
	putI32(b, 12, m.NumItems)
	putString(b, 16, LogicalNameLen, m.Name)
	b[44] = m.UnitTransit
}

func (m *QuerySensorRequest) unmarshal(b []byte) {
	m.RequestType = b[3]
	m.ResponseType = b[4]
	m.LastFlag = b[7]
	m.PingTime = getI32(b, 8)
	m.NumItems = getI32(b, 12)
	m.Name = getString(b, 16, LogicalNameLen)
	m.UnitTransit = b[44]
}

// QueryInfo is the single unit record carried by a QuerySensorReply.
type QueryInfo struct {
	UnitID         string
	UnitName       string
	SensorID       string
	SensorName     string
	UnitType       int16
	UpdateTime     int32
	MoveTime       int32
	MotionTime     int32
	UnitCategory   int16
	SensorCategory int16
	UnitTransit    uint8
}

// QuerySensorReply answers QuerySensorLocation.
type QuerySensorReply struct {
	LastFlag uint8
	Result   int32
	TotalNum int32
	NumItems int32
	Info     QueryInfo
}

func (*QuerySensorReply) MsgType() MsgType { return TypeQuerySensor }
func (*QuerySensorReply) Size() int        { return TypeQuerySensor.ReplySize() }

func (m *QuerySensorReply) marshal(b []byte) {
	b[3] = m.LastFlag
	putI32(b, 4, m.Result)
	putI32(b, 8, m.TotalNum)
	putI32(b, 12, m.NumItems)
	putString(b, 16, PhysicalIDLen, m.Info.UnitID)
	putString(b, 32, LogicalNameLen, m.Info.UnitName)
	putString(b, 60, PhysicalIDLen, m.Info.SensorID)
	putString(b, 76, LogicalNameLen, m.Info.SensorName)
	putI16(b, 104, m.Info.UnitType)
	putI32(b, 108, m.Info.UpdateTime)
	putI32(b, 112, m.Info.MoveTime)
	putI32(b, 116, m.Info.MotionTime)
	putI16(b, 120, m.Info.UnitCategory)
	putI16(b, 122, m.Info.SensorCategory)
	b[124] = m.Info.UnitTransit
}

func (m *QuerySensorReply) unmarshal(b []byte) {
	m.LastFlag = b[3]
	m.Result = getI32(b, 4)
	m.TotalNum = getI32(b, 8)
	m.NumItems = getI32(b, 12)
	m.Info = QueryInfo{
		UnitID:         getString(b, 16, PhysicalIDLen),
		UnitName:       getString(b, 32, LogicalNameLen),
		SensorID:       getString(b, 60, PhysicalIDLen),
		SensorName:     getString(b, 76, LogicalNameLen),
		UnitType:       getI16(b, 104),
		UpdateTime:     getI32(b, 108),
		MoveTime:       getI32(b, 112),
		MotionTime:     getI32(b, 116),
		UnitCategory:   getI16(b, 120),
		SensorCategory: getI16(b, 122),
		UnitTransit:    b[124],
	}
}

// ReadMemoryRequest reads one line of emulated tag memory.
type ReadMemoryRequest struct {
	Period   int32
	Addr     int32
	UnitName string
}

func (*ReadMemoryRequest) MsgType() MsgType { return TypeReadMemory }
func (*ReadMemoryRequest) Size() int        { return TypeReadMemory.RequestSize() }

func (m *ReadMemoryRequest) marshal(b []byte) {
	putI32(b, 4, m.Period)
	putI32(b, 8, m.Addr)
	putString(b, 12, LogicalNameLen, m.UnitName)
}

func (m *ReadMemoryRequest) unmarshal(b []byte) {
	m.Period = getI32(b, 4)
	m.Addr = getI32(b, 8)
	m.UnitName = getString(b, 12, LogicalNameLen)
}

// ReadMemoryReply returns one memory line. Data is raw; blank lines are
// spaces, not NULs.
type ReadMemoryReply struct {
	Result int16
	Addr   int32
	Data   string
}

func (*ReadMemoryReply) MsgType() MsgType { return TypeReadMemory }
func (*ReadMemoryReply) Size() int        { return TypeReadMemory.ReplySize() }

func (m *ReadMemoryReply) marshal(b []byte) {
	putI16(b, 4, m.Result)
	putI32(b, 8, m.Addr)
	putString(b, 12, RAMDataLen, m.Data)
}

func (m *ReadMemoryReply) unmarshal(b []byte) {
	m.Result = getI16(b, 4)
	m.Addr = getI32(b, 8)
	m.Data = getString(b, 12, RAMDataLen)
}

// DisplayRequest writes a line of text to a unit's tag display.
type DisplayRequest struct {
	Line     int32
	Confirm  uint8
	Period   int32
	UnitName string
	Text     string
}

func (*DisplayRequest) MsgType() MsgType { return TypeDisplay }
func (*DisplayRequest) Size() int        { return TypeDisplay.RequestSize() }

func (m *DisplayRequest) marshal(b []byte) {
	putI32(b, 4, m.Line)
	b[8] = m.Confirm
	putI32(b, 12, m.Period)
	putString(b, 16, LogicalNameLen, m.UnitName)
	putString(b, 44, DisplayTextLen, m.Text)
}

func (m *DisplayRequest) unmarshal(b []byte) {
	m.Line = getI32(b, 4)
	m.Confirm = b[8]
	m.Period = getI32(b, 12)
	m.UnitName = getString(b, 16, LogicalNameLen)
	m.Text = getString(b, 44, DisplayTextLen)
}
