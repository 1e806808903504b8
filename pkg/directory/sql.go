package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type stockerRow struct {
	Name string `gorm:"primaryKey;size:6"`
	Code string `gorm:"size:4;not null"`
}

func (stockerRow) TableName() string { return "stk_stockers" }

type portRow struct {
	Name      string `gorm:"primaryKey"`
	SensorID  string `gorm:"index"`
	Direction string `gorm:"size:1;not null"`
	ReaderIP  string `gorm:"index"`
	ReaderID  string
	Stocker   string `gorm:"size:6"`
}

func (portRow) TableName() string { return "stk_ports" }

type carrierRow struct {
	ID        string `gorm:"primaryKey"`
	LogicalID string
	Name      string
	Location  string
	PortID    string
	CleanDays int
}

func (carrierRow) TableName() string { return "stk_carriers" }

// logicalRow is the reverse index that enforces one carrier per logical ID.
type logicalRow struct {
	LogicalID string `gorm:"primaryKey"`
	CarrierID string `gorm:"uniqueIndex;not null"`
}

func (logicalRow) TableName() string { return "stk_logicals" }

type tagRow struct {
	Barcode   string `gorm:"primaryKey"`
	Tag       string `gorm:"uniqueIndex;not null"`
	Stocker   string `gorm:"size:6"`
	CreatedAt time.Time
}

func (tagRow) TableName() string { return "stk_tags" }

type lotRow struct {
	ID            string `gorm:"primaryKey"`
	Quantity      int
	Priority      int
	TempPriority  string
	Operation     string
	OperationDesc string
	Recipe        string
	NextStocker   string
	Block         string
	BlockDesc     string
	HoldCode      string
	Device        string
}

func (lotRow) TableName() string { return "stk_lots" }

// SQLStore implements Store on PostgreSQL through gorm.
type SQLStore struct {
	db *gorm.DB
}

// NewSQLStore connects to dsn and migrates the directory tables.
func NewSQLStore(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to directory database: %w", err)
	}
	return NewSQLStoreFromDB(db)
}

// NewSQLStoreFromDB wraps an open gorm handle and migrates the schema.
func NewSQLStoreFromDB(db *gorm.DB) (*SQLStore, error) {
	if err := db.AutoMigrate(&stockerRow{}, &portRow{}, &carrierRow{}, &logicalRow{}, &tagRow{}, &lotRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate directory tables: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what, key string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %q: %w", what, key, ErrNotFound)
	}
	return err
}

func (s *SQLStore) Stocker(ctx context.Context, name string) (Stocker, error) {
	var r stockerRow
	if err := s.db.WithContext(ctx).First(&r, "name = ?", name).Error; err != nil {
		return Stocker{}, notFound(err, "stocker", name)
	}
	return Stocker{Name: r.Name, Code: r.Code}, nil
}

func (s *SQLStore) findPort(ctx context.Context, column, key string) (Port, error) {
	var r portRow
	if err := s.db.WithContext(ctx).Where(column+" = ?", key).First(&r).Error; err != nil {
		return Port{}, notFound(err, "port", key)
	}
	return r.port(), nil
}

func (s *SQLStore) Port(ctx context.Context, name string) (Port, error) {
	return s.findPort(ctx, "name", name)
}

func (s *SQLStore) PortBySensor(ctx context.Context, sensorID string) (Port, error) {
	return s.findPort(ctx, "sensor_id", sensorID)
}

func (s *SQLStore) PortByReader(ctx context.Context, ip string) (Port, error) {
	return s.findPort(ctx, "reader_ip", ip)
}

func (s *SQLStore) Carrier(ctx context.Context, id string) (Carrier, error) {
	var r carrierRow
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return Carrier{}, notFound(err, "carrier", id)
	}
	return Carrier(r), nil
}

func (s *SQLStore) CarrierByLogical(ctx context.Context, logicalID string) (Carrier, error) {
	logicalID = normLogical(logicalID)
	var idx logicalRow
	if err := s.db.WithContext(ctx).First(&idx, "logical_id = ?", logicalID).Error; err != nil {
		return Carrier{}, notFound(err, "logical", logicalID)
	}
	return s.Carrier(ctx, idx.CarrierID)
}

func (s *SQLStore) Associate(ctx context.Context, carrierID, logicalID string) error {
	logicalID = normLogical(logicalID)
	if logicalID == "" {
		return fmt.Errorf("associate %s: empty logical id", carrierID)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c carrierRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", carrierID).Error; err != nil {
			return notFound(err, "carrier", carrierID)
		}
		if c.LogicalID == logicalID {
			return nil
		}
		if c.LogicalID != "" {
			return fmt.Errorf("carrier %s holds %s: %w", carrierID, c.LogicalID, ErrConflict)
		}
		var owner logicalRow
		err := tx.First(&owner, "logical_id = ?", logicalID).Error
		switch {
		case err == nil:
			return fmt.Errorf("logical %s held by %s: %w", logicalID, owner.CarrierID, ErrConflict)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		if err := tx.Model(&c).Update("logical_id", logicalID).Error; err != nil {
			return err
		}
		return tx.Create(&logicalRow{LogicalID: logicalID, CarrierID: carrierID}).Error
	})
}

func (s *SQLStore) Disassociate(ctx context.Context, carrierID, logicalID string) error {
	logicalID = normLogical(logicalID)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c carrierRow
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", carrierID).Error; err != nil {
			return notFound(err, "carrier", carrierID)
		}
		if c.LogicalID == "" {
			return nil
		}
		if logicalID != "" && c.LogicalID != logicalID {
			return fmt.Errorf("carrier %s holds %s, not %s: %w", carrierID, c.LogicalID, logicalID, ErrConflict)
		}
		if err := tx.Delete(&logicalRow{}, "logical_id = ?", c.LogicalID).Error; err != nil {
			return err
		}
		return tx.Model(&c).Update("logical_id", "").Error
	})
}

func (s *SQLStore) Tag(ctx context.Context, barcode string) (TagMapping, error) {
	var r tagRow
	if err := s.db.WithContext(ctx).First(&r, "barcode = ?", barcode).Error; err != nil {
		return TagMapping{}, notFound(err, "tag for barcode", barcode)
	}
	return r.mapping(), nil
}

func (s *SQLStore) TagOwner(ctx context.Context, tag string) (TagMapping, error) {
	var r tagRow
	if err := s.db.WithContext(ctx).First(&r, "tag = ?", tag).Error; err != nil {
		return TagMapping{}, notFound(err, "barcode for tag", tag)
	}
	return r.mapping(), nil
}

func (s *SQLStore) PutTag(ctx context.Context, m TagMapping) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(tagRowOf(m)).Error
}

func (s *SQLStore) Lot(ctx context.Context, id string) (Lot, error) {
	var r lotRow
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return Lot{}, notFound(err, "lot", id)
	}
	return Lot(r), nil
}

// Import upserts the seed in one transaction.
func (s *SQLStore) Import(ctx context.Context, seed *Seed) error {
	if err := seed.Validate(); err != nil {
		return err
	}
	upsert := clause.OnConflict{UpdateAll: true}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, st := range seed.Stockers {
			if err := tx.Clauses(upsert).Create(&stockerRow{Name: st.Name, Code: st.Code}).Error; err != nil {
				return err
			}
		}
		for _, p := range seed.Ports {
			if err := tx.Clauses(upsert).Create(portRowOf(p)).Error; err != nil {
				return err
			}
		}
		for _, c := range seed.Carriers {
			c.LogicalID = normLogical(c.LogicalID)
			if err := tx.Delete(&logicalRow{}, "carrier_id = ?", c.ID).Error; err != nil {
				return err
			}
			row := carrierRow(c)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return err
			}
			if c.LogicalID != "" {
				if err := tx.Clauses(upsert).Create(&logicalRow{LogicalID: c.LogicalID, CarrierID: c.ID}).Error; err != nil {
					return err
				}
			}
		}
		for _, m := range seed.Tags {
			if err := tx.Clauses(upsert).Create(tagRowOf(m)).Error; err != nil {
				return err
			}
		}
		for _, l := range seed.Lots {
			row := lotRow(l)
			if err := tx.Clauses(upsert).Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Export reads every table into a Seed.
func (s *SQLStore) Export(ctx context.Context) (*Seed, error) {
	db := s.db.WithContext(ctx)
	var (
		stockers []stockerRow
		ports    []portRow
		carriers []carrierRow
		tags     []tagRow
		lots     []lotRow
	)
	for _, dst := range []any{&stockers, &ports, &carriers, &tags, &lots} {
		if err := db.Find(dst).Error; err != nil {
			return nil, err
		}
	}

	seed := &Seed{}
	for _, r := range stockers {
		seed.Stockers = append(seed.Stockers, Stocker{Name: r.Name, Code: r.Code})
	}
	for _, r := range ports {
		seed.Ports = append(seed.Ports, r.port())
	}
	for _, r := range carriers {
		seed.Carriers = append(seed.Carriers, Carrier(r))
	}
	for _, r := range tags {
		seed.Tags = append(seed.Tags, r.mapping())
	}
	for _, r := range lots {
		seed.Lots = append(seed.Lots, Lot(r))
	}
	return seed, nil
}

func (r portRow) port() Port {
	return Port{
		Name:      r.Name,
		SensorID:  r.SensorID,
		Direction: Direction(r.Direction),
		ReaderIP:  r.ReaderIP,
		ReaderID:  r.ReaderID,
		Stocker:   r.Stocker,
	}
}

func portRowOf(p Port) *portRow {
	return &portRow{
		Name:      p.Name,
		SensorID:  p.SensorID,
		Direction: string(p.Direction),
		ReaderIP:  p.ReaderIP,
		ReaderID:  p.ReaderID,
		Stocker:   p.Stocker,
	}
}

func (r tagRow) mapping() TagMapping {
	return TagMapping{Barcode: r.Barcode, Tag: r.Tag, Stocker: r.Stocker, Created: r.CreatedAt}
}

func tagRowOf(m TagMapping) *tagRow {
	return &tagRow{Barcode: m.Barcode, Tag: m.Tag, Stocker: m.Stocker, CreatedAt: m.Created}
}
