package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"impex-service/internal/models"
	"impex-service/internal/schema"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRow stores a record as a JSONB document in a per-collection table
type documentRow struct {
	ID        string      `gorm:"primaryKey;type:varchar(64)"`
	Data      models.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MigrateDocuments creates or updates the document table of each collection
func MigrateDocuments(db *gorm.DB, collections ...string) error {
	for _, table := range collections {
		if err := db.Table(table).AutoMigrate(&documentRow{}); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}
	}
	return nil
}

// GormStore keeps one record type in PostgreSQL, one JSONB row per record
type GormStore struct {
	db     *gorm.DB
	schema *schema.Descriptor
	logger *logrus.Entry
}

func NewGormStore(db *gorm.DB, d *schema.Descriptor, logger *logrus.Entry) *GormStore {
	return &GormStore{
		db:     db,
		schema: d,
		logger: logger.WithFields(logrus.Fields{"store": "postgres", "table": d.Collection()}),
	}
}

func (s *GormStore) table(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.schema.Collection())
}

func (s *GormStore) FindByID(ctx context.Context, id string) (*models.Record, error) {
	var row documentRow
	err := s.table(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return s.fromRow(row), nil
}

func (s *GormStore) Save(ctx context.Context, rec *models.Record) (*models.Record, error) {
	row := s.toRow(rec)
	err := s.table(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("save %s %s: %w", s.schema.Collection(), rec.ID, err)
	}
	return rec, nil
}

// SaveAll writes the batch in one transaction
func (s *GormStore) SaveAll(ctx context.Context, recs []*models.Record) ([]*models.Record, error) {
	if len(recs) == 0 {
		return recs, nil
	}

	rows := make([]documentRow, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, s.toRow(rec))
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(s.schema.Collection()).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
			}).
			Create(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("bulk save %d %s: %w", len(recs), s.schema.Collection(), err)
	}
	return recs, nil
}

func (s *GormStore) Delete(ctx context.Context, rec *models.Record) error {
	result := s.table(ctx).Where("id = ?", rec.ID).Delete(&documentRow{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *GormStore) toRow(rec *models.Record) documentRow {
	return documentRow{
		ID:   rec.ID,
		Data: models.JSON(s.schema.Encode(rec)),
	}
}

func (s *GormStore) fromRow(row documentRow) *models.Record {
	rec, problems := s.schema.Decode(row.Data)
	for _, problem := range problems {
		s.logger.WithError(problem).Warn("Stored document field does not match schema")
	}
	rec.ID = row.ID
	return rec
}
