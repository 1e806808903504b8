package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketStockers  = []byte("stockers")
	bucketPorts     = []byte("ports")
	bucketSensors   = []byte("sensors") // sensor ID -> port name
	bucketReaders   = []byte("readers") // reader IP -> port name
	bucketCarriers  = []byte("carriers")
	bucketLogicals  = []byte("logicals") // logical ID -> carrier ID
	bucketTags      = []byte("tags")
	bucketTagOwners = []byte("tag_owners") // tag -> barcode
	bucketLots      = []byte("lots")

	allBuckets = [][]byte{
		bucketStockers, bucketPorts, bucketSensors, bucketReaders,
		bucketCarriers, bucketLogicals, bucketTags, bucketTagOwners, bucketLots,
	}
)

// BoltStore implements Store on an embedded bbolt file.
type BoltStore struct {
	db *bolt.DB
	mu sync.Mutex // serializes association read-check-write sequences
}

// NewBoltStore opens (or creates) <dataDir>/directory.db.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "directory.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open directory: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func getJSON(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return fmt.Errorf("%s %q: %w", bucket, key, ErrNotFound)
	}
	return json.Unmarshal(data, v)
}

func putJSON(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

// getIndexed follows a secondary-index bucket to the primary record.
func getIndexed(tx *bolt.Tx, index, bucket []byte, key string, v any) error {
	primary := tx.Bucket(index).Get([]byte(key))
	if primary == nil {
		return fmt.Errorf("%s %q: %w", index, key, ErrNotFound)
	}
	return getJSON(tx, bucket, string(primary), v)
}

func (s *BoltStore) Stocker(_ context.Context, name string) (Stocker, error) {
	var st Stocker
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx, bucketStockers, name, &st)
	})
	return st, err
}

func (s *BoltStore) Port(_ context.Context, name string) (Port, error) {
	var p Port
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx, bucketPorts, name, &p)
	})
	return p, err
}

func (s *BoltStore) PortBySensor(_ context.Context, sensorID string) (Port, error) {
	var p Port
	err := s.db.View(func(tx *bolt.Tx) error {
		return getIndexed(tx, bucketSensors, bucketPorts, sensorID, &p)
	})
	return p, err
}

func (s *BoltStore) PortByReader(_ context.Context, ip string) (Port, error) {
	var p Port
	err := s.db.View(func(tx *bolt.Tx) error {
		return getIndexed(tx, bucketReaders, bucketPorts, ip, &p)
	})
	return p, err
}

func (s *BoltStore) Carrier(_ context.Context, id string) (Carrier, error) {
	var c Carrier
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx, bucketCarriers, id, &c)
	})
	return c, err
}

func (s *BoltStore) CarrierByLogical(_ context.Context, logicalID string) (Carrier, error) {
	var c Carrier
	err := s.db.View(func(tx *bolt.Tx) error {
		return getIndexed(tx, bucketLogicals, bucketCarriers, normLogical(logicalID), &c)
	})
	return c, err
}

func (s *BoltStore) Associate(_ context.Context, carrierID, logicalID string) error {
	logicalID = normLogical(logicalID)
	if logicalID == "" {
		return fmt.Errorf("associate %s: empty logical id", carrierID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		var c Carrier
		if err := getJSON(tx, bucketCarriers, carrierID, &c); err != nil {
			return err
		}
		if c.LogicalID == logicalID {
			return nil
		}
		if c.LogicalID != "" {
			return fmt.Errorf("carrier %s holds %s: %w", carrierID, c.LogicalID, ErrConflict)
		}
		if owner := tx.Bucket(bucketLogicals).Get([]byte(logicalID)); owner != nil {
			return fmt.Errorf("logical %s held by %s: %w", logicalID, owner, ErrConflict)
		}
		c.LogicalID = logicalID
		if err := putJSON(tx, bucketCarriers, c.ID, c); err != nil {
			return err
		}
		return tx.Bucket(bucketLogicals).Put([]byte(logicalID), []byte(c.ID))
	})
}

func (s *BoltStore) Disassociate(_ context.Context, carrierID, logicalID string) error {
	logicalID = normLogical(logicalID)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		var c Carrier
		if err := getJSON(tx, bucketCarriers, carrierID, &c); err != nil {
			return err
		}
		if c.LogicalID == "" {
			return nil
		}
		if logicalID != "" && c.LogicalID != logicalID {
			return fmt.Errorf("carrier %s holds %s, not %s: %w", carrierID, c.LogicalID, logicalID, ErrConflict)
		}
		if err := tx.Bucket(bucketLogicals).Delete([]byte(c.LogicalID)); err != nil {
			return err
		}
		c.LogicalID = ""
		return putJSON(tx, bucketCarriers, c.ID, c)
	})
}

func (s *BoltStore) Tag(_ context.Context, barcode string) (TagMapping, error) {
	var m TagMapping
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx, bucketTags, barcode, &m)
	})
	return m, err
}

func (s *BoltStore) TagOwner(_ context.Context, tag string) (TagMapping, error) {
	var m TagMapping
	err := s.db.View(func(tx *bolt.Tx) error {
		return getIndexed(tx, bucketTagOwners, bucketTags, tag, &m)
	})
	return m, err
}

func (s *BoltStore) PutTag(_ context.Context, m TagMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		return putTag(tx, m)
	})
}

func putTag(tx *bolt.Tx, m TagMapping) error {
	var prev TagMapping
	if err := getJSON(tx, bucketTags, m.Barcode, &prev); err == nil && prev.Tag != m.Tag {
		if err := tx.Bucket(bucketTagOwners).Delete([]byte(prev.Tag)); err != nil {
			return err
		}
	}
	if err := putJSON(tx, bucketTags, m.Barcode, m); err != nil {
		return err
	}
	return tx.Bucket(bucketTagOwners).Put([]byte(m.Tag), []byte(m.Barcode))
}

func (s *BoltStore) Lot(_ context.Context, id string) (Lot, error) {
	var l Lot
	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx, bucketLots, id, &l)
	})
	return l, err
}

// Import upserts every record in seed and rebuilds the secondary indexes
// for the records it touches.
func (s *BoltStore) Import(_ context.Context, seed *Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bolt.Tx) error {
		for _, st := range seed.Stockers {
			if err := putJSON(tx, bucketStockers, st.Name, st); err != nil {
				return err
			}
		}
		for _, p := range seed.Ports {
			if err := putJSON(tx, bucketPorts, p.Name, p); err != nil {
				return err
			}
			if p.SensorID != "" {
				if err := tx.Bucket(bucketSensors).Put([]byte(p.SensorID), []byte(p.Name)); err != nil {
					return err
				}
			}
			if p.ReaderIP != "" {
				if err := tx.Bucket(bucketReaders).Put([]byte(p.ReaderIP), []byte(p.Name)); err != nil {
					return err
				}
			}
		}
		for _, c := range seed.Carriers {
			var prev Carrier
			if err := getJSON(tx, bucketCarriers, c.ID, &prev); err == nil && prev.LogicalID != "" {
				if err := tx.Bucket(bucketLogicals).Delete([]byte(prev.LogicalID)); err != nil {
					return err
				}
			}
			c.LogicalID = normLogical(c.LogicalID)
			if err := putJSON(tx, bucketCarriers, c.ID, c); err != nil {
				return err
			}
			if c.LogicalID != "" {
				if err := tx.Bucket(bucketLogicals).Put([]byte(c.LogicalID), []byte(c.ID)); err != nil {
					return err
				}
			}
		}
		for _, m := range seed.Tags {
			if err := putTag(tx, m); err != nil {
				return err
			}
		}
		for _, l := range seed.Lots {
			if err := putJSON(tx, bucketLots, l.ID, l); err != nil {
				return err
			}
		}
		return nil
	})
}

// Export dumps the primary buckets as a Seed.
func (s *BoltStore) Export(_ context.Context) (*Seed, error) {
	seed := &Seed{}
	err := s.db.View(func(tx *bolt.Tx) error {
		if err := eachJSON(tx, bucketStockers, func(st Stocker) { seed.Stockers = append(seed.Stockers, st) }); err != nil {
			return err
		}
		if err := eachJSON(tx, bucketPorts, func(p Port) { seed.Ports = append(seed.Ports, p) }); err != nil {
			return err
		}
		if err := eachJSON(tx, bucketCarriers, func(c Carrier) { seed.Carriers = append(seed.Carriers, c) }); err != nil {
			return err
		}
		if err := eachJSON(tx, bucketTags, func(m TagMapping) { seed.Tags = append(seed.Tags, m) }); err != nil {
			return err
		}
		return eachJSON(tx, bucketLots, func(l Lot) { seed.Lots = append(seed.Lots, l) })
	})
	return seed, err
}

func eachJSON[T any](tx *bolt.Tx, bucket []byte, fn func(T)) error {
	return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
		var rec T
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("%s %q: %w", bucket, k, err)
		}
		fn(rec)
		return nil
	})
}
