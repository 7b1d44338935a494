package repository

import (
	"context"
	"errors"

	"impex-service/internal/models"
)

var ErrRecordNotFound = errors.New("record not found")

// Store persists the records of one collection. Implementations are safe
// for concurrent use; concurrent saves of the same ID are last-write-wins.
type Store interface {
	// FindByID returns ErrRecordNotFound when no record has the ID
	FindByID(ctx context.Context, id string) (*models.Record, error)
	// Save inserts or replaces one record by ID
	Save(ctx context.Context, rec *models.Record) (*models.Record, error)
	// SaveAll inserts or replaces a batch of records
	SaveAll(ctx context.Context, recs []*models.Record) ([]*models.Record, error)
	// Delete removes a record by its ID
	Delete(ctx context.Context, rec *models.Record) error
}
