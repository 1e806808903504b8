package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func testSeed() *Seed {
	return &Seed{
		Stockers: []Stocker{
			{Name: "ST001A", Code: "ST01"},
			{Name: "CRST01", Code: "ST03"},
		},
		Ports: []Port{
			{Name: "PORT-A", SensorID: "IRT-0001", Direction: DirInput, ReaderIP: "10.0.0.21", ReaderID: "BCR01", Stocker: "ST001A"},
			{Name: "PORT-B", SensorID: "IRT-0002", Direction: DirOutput, ReaderIP: "10.0.0.22", Stocker: "ST001A"},
		},
		Carriers: []Carrier{
			{ID: "CST001", LogicalID: "LOT001", Location: "ST001A", CleanDays: 30},
			{ID: "CST002"},
			{ID: "R00001", Name: "ASML-7"},
		},
		Tags: []TagMapping{
			{Barcode: "R00001", Tag: "T9001", Stocker: "CRST01", Created: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		},
		Lots: []Lot{
			{ID: "LOT001", Quantity: 25, Priority: 8, Operation: "1100"},
		},
	}
}

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Import(context.Background(), testSeed()))
	return s
}

func TestBoltStore_Lookups(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	typ, err := StockerType(ctx, s, "ST001A")
	require.NoError(t, err)
	assert.Equal(t, CarrierLot, typ)

	require.NoError(t, s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx, bucketStockers, "BADSTK", Stocker{Name: "BADSTK", Code: "ST09"})
	}))
	_, err = StockerType(ctx, s, "BADSTK")
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = StockerType(ctx, s, "NOPE00")
	assert.ErrorIs(t, err, ErrNotFound)

	p, err := s.PortBySensor(ctx, "IRT-0001")
	require.NoError(t, err)
	assert.Equal(t, "PORT-A", p.Name)
	assert.Equal(t, DirInput, p.Direction)

	p, err = s.PortByReader(ctx, "10.0.0.22")
	require.NoError(t, err)
	assert.Equal(t, "PORT-B", p.Name)

	_, err = s.Port(ctx, "PORT-Z")
	assert.ErrorIs(t, err, ErrNotFound)

	c, err := s.CarrierByLogical(ctx, "LOT001      ")
	require.NoError(t, err)
	assert.Equal(t, "CST001", c.ID)

	m, err := s.TagOwner(ctx, "T9001")
	require.NoError(t, err)
	assert.Equal(t, "R00001", m.Barcode)

	l, err := s.Lot(ctx, "LOT001")
	require.NoError(t, err)
	assert.Equal(t, 25, l.Quantity)
}

func TestBoltStore_AssociateDisassociateRestoresState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	before, err := s.Export(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Associate(ctx, "CST002", "LOT002"))
	require.NoError(t, s.Associate(ctx, "CST002", "LOT002"), "repeat associate is a no-op")

	c, err := s.CarrierByLogical(ctx, "LOT002")
	require.NoError(t, err)
	assert.Equal(t, "CST002", c.ID)

	require.NoError(t, s.Disassociate(ctx, "CST002", "LOT002"))
	require.NoError(t, s.Disassociate(ctx, "CST002", "LOT002"), "repeat disassociate is a no-op")

	after, err := s.Export(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, before.Carriers, after.Carriers)

	_, err = s.CarrierByLogical(ctx, "LOT002")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStore_AssociateConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		carrier   string
		logical   string
		wantErr   error
		wantNoErr bool
	}{
		{name: "logical owned elsewhere", carrier: "CST002", logical: "LOT001", wantErr: ErrConflict},
		{name: "carrier already bound", carrier: "CST001", logical: "LOT009", wantErr: ErrConflict},
		{name: "unknown carrier", carrier: "CST404", logical: "LOT009", wantErr: ErrNotFound},
		{name: "same pair", carrier: "CST001", logical: "LOT001", wantNoErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Associate(ctx, tt.carrier, tt.logical)
			if tt.wantNoErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	err := s.Disassociate(ctx, "CST001", "LOT777")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBoltStore_PutTagReplacesOwner(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTag(ctx, TagMapping{Barcode: "R00001", Tag: "T9002", Stocker: "CRST01"}))

	_, err := s.TagOwner(ctx, "T9001")
	assert.ErrorIs(t, err, ErrNotFound)

	m, err := s.Tag(ctx, "R00001")
	require.NoError(t, err)
	assert.Equal(t, "T9002", m.Tag)
}

func TestBoltStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	s, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, s.Import(context.Background(), testSeed()))
	require.NoError(t, s.Associate(context.Background(), "CST002", "LOT002"))
	require.NoError(t, s.Close())

	s, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer s.Close()

	c, err := s.Carrier(context.Background(), "CST002")
	require.NoError(t, err)
	assert.Equal(t, "LOT002", c.LogicalID)
}
