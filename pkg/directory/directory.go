package directory

import "context"

// Directory is the read/write view of stocker, port, carrier and lot data
// the gateway consults while serving a session.
type Directory interface {
	Stocker(ctx context.Context, name string) (Stocker, error)

	PortBySensor(ctx context.Context, sensorID string) (Port, error)
	Port(ctx context.Context, name string) (Port, error)
	PortByReader(ctx context.Context, ip string) (Port, error)

	Carrier(ctx context.Context, id string) (Carrier, error)
	CarrierByLogical(ctx context.Context, logicalID string) (Carrier, error)

	// Associate binds carrierID to logicalID. It is a no-op when the pair
	// is already bound and fails with ErrConflict when either side is
	// bound elsewhere.
	Associate(ctx context.Context, carrierID, logicalID string) error
	// Disassociate clears carrierID's binding. It is a no-op when the
	// carrier is unbound and fails with ErrConflict when it is bound to a
	// logical ID other than logicalID.
	Disassociate(ctx context.Context, carrierID, logicalID string) error

	Tag(ctx context.Context, barcode string) (TagMapping, error)
	TagOwner(ctx context.Context, tag string) (TagMapping, error)
	PutTag(ctx context.Context, m TagMapping) error

	Lot(ctx context.Context, id string) (Lot, error)
}

// Store is a Directory backed by persistent storage.
type Store interface {
	Directory
	Import(ctx context.Context, seed *Seed) error
	Export(ctx context.Context) (*Seed, error)
	Close() error
}

// StockerType resolves a stocker's carrier class.
func StockerType(ctx context.Context, d Directory, name string) (CarrierType, error) {
	s, err := d.Stocker(ctx, name)
	if err != nil {
		return CarrierUnknown, err
	}
	return s.Type()
}
