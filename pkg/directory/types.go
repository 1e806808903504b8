package directory

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("directory: not found")
	// ErrConflict is returned when an association would break the
	// one-carrier-one-logical rule.
	ErrConflict = errors.New("directory: association conflict")
	// ErrInvalidType is returned for a stocker type code outside ST01-ST03.
	ErrInvalidType = errors.New("directory: invalid stocker type")
)

// CarrierType classifies what a stocker stores.
type CarrierType int

const (
	CarrierUnknown CarrierType = iota
	CarrierLot
	CarrierReticlePod
	CarrierReticleBare
)

var carrierCodes = map[string]CarrierType{
	"ST01": CarrierLot,
	"ST02": CarrierReticlePod,
	"ST03": CarrierReticleBare,
}

// ParseCarrierType maps a stocker type code to a CarrierType.
func ParseCarrierType(code string) (CarrierType, error) {
	t, ok := carrierCodes[strings.TrimSpace(code)]
	if !ok {
		return CarrierUnknown, fmt.Errorf("%w: %q", ErrInvalidType, code)
	}
	return t, nil
}

// Code returns the stocker type code, or "" for CarrierUnknown.
func (t CarrierType) Code() string {
	for code, ct := range carrierCodes {
		if ct == t {
			return code
		}
	}
	return ""
}

func (t CarrierType) String() string {
	switch t {
	case CarrierLot:
		return "lot"
	case CarrierReticlePod:
		return "reticle-pod"
	case CarrierReticleBare:
		return "reticle-bare"
	default:
		return "unknown"
	}
}

// Reticle reports whether the stocker holds reticles (pod or bare).
func (t CarrierType) Reticle() bool {
	return t == CarrierReticlePod || t == CarrierReticleBare
}

// Direction is a port's transfer direction.
type Direction string

const (
	DirInput  Direction = "I"
	DirOutput Direction = "O"
	DirClosed Direction = "C"
)

// Stocker is a stocker record keyed by its 6-character name.
type Stocker struct {
	Name string `json:"name" yaml:"name"`
	Code string `json:"type" yaml:"type"`
}

// Type resolves the stocker's type code.
func (s Stocker) Type() (CarrierType, error) {
	return ParseCarrierType(s.Code)
}

// Port describes one stocker port, its sensor and its barcode reader.
type Port struct {
	Name      string    `json:"name" yaml:"name"`
	SensorID  string    `json:"sensor_id" yaml:"sensor_id"`
	Direction Direction `json:"direction" yaml:"direction"`
	ReaderIP  string    `json:"reader_ip,omitempty" yaml:"reader_ip,omitempty"`
	ReaderID  string    `json:"reader_id,omitempty" yaml:"reader_id,omitempty"`
	Stocker   string    `json:"stocker" yaml:"stocker"`
}

// Carrier is a physical carrier (cassette, pod or bare reticle) keyed by its
// barcode. LogicalID is empty while the carrier is unassociated.
type Carrier struct {
	ID        string `json:"id" yaml:"id"`
	LogicalID string `json:"logical_id,omitempty" yaml:"logical_id,omitempty"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Location  string `json:"location,omitempty" yaml:"location,omitempty"`
	PortID    string `json:"port_id,omitempty" yaml:"port_id,omitempty"`
	CleanDays int    `json:"clean_days,omitempty" yaml:"clean_days,omitempty"`
}

// NextClean returns the date the carrier is next due for cleaning.
func (c Carrier) NextClean(now time.Time) time.Time {
	return now.AddDate(0, 0, c.CleanDays)
}

// TagMapping binds a bare-reticle barcode to the tag the backend reports.
type TagMapping struct {
	Barcode string    `json:"barcode" yaml:"barcode"`
	Tag     string    `json:"tag" yaml:"tag"`
	Stocker string    `json:"stocker" yaml:"stocker"`
	Created time.Time `json:"created" yaml:"created"`
}

// Lot is the lot-tracking snapshot shown on a lot stocker's display.
type Lot struct {
	ID            string `json:"id" yaml:"id"`
	Quantity      int    `json:"quantity" yaml:"quantity"`
	Priority      int    `json:"priority" yaml:"priority"`
	TempPriority  string `json:"temp_priority,omitempty" yaml:"temp_priority,omitempty"`
	Operation     string `json:"operation" yaml:"operation"`
	OperationDesc string `json:"operation_desc,omitempty" yaml:"operation_desc,omitempty"`
	Recipe        string `json:"recipe,omitempty" yaml:"recipe,omitempty"`
	NextStocker   string `json:"next_stocker,omitempty" yaml:"next_stocker,omitempty"`
	Block         string `json:"block,omitempty" yaml:"block,omitempty"`
	BlockDesc     string `json:"block_desc,omitempty" yaml:"block_desc,omitempty"`
	HoldCode      string `json:"hold_code,omitempty" yaml:"hold_code,omitempty"`
	Device        string `json:"device,omitempty" yaml:"device,omitempty"`
}

// normLogical strips the trailing pad some callers apply to reticle
// logical IDs so padded and unpadded forms address the same record.
func normLogical(s string) string {
	return strings.TrimRight(s, " ")
}
