package repository

import (
	"context"
	"errors"
	"fmt"

	"impex-service/internal/models"
	"impex-service/internal/schema"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore keeps one record type in a MongoDB collection, one document
// per record keyed by _id.
type MongoStore struct {
	coll   *mongo.Collection
	schema *schema.Descriptor
	logger *logrus.Entry
}

func NewMongoStore(db *mongo.Database, d *schema.Descriptor, logger *logrus.Entry) *MongoStore {
	return &MongoStore{
		coll:   db.Collection(d.Collection()),
		schema: d,
		logger: logger.WithFields(logrus.Fields{"store": "mongo", "collection": d.Collection()}),
	}
}

func (s *MongoStore) FindByID(ctx context.Context, id string) (*models.Record, error) {
	var doc bson.M
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("find %s %s: %w", s.schema.Collection(), id, err)
	}
	return s.fromDocument(doc), nil
}

func (s *MongoStore) Save(ctx context.Context, rec *models.Record) (*models.Record, error) {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": rec.ID}, s.toDocument(rec), options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("save %s %s: %w", s.schema.Collection(), rec.ID, err)
	}
	return rec, nil
}

func (s *MongoStore) SaveAll(ctx context.Context, recs []*models.Record) ([]*models.Record, error) {
	if len(recs) == 0 {
		return recs, nil
	}

	writes := make([]mongo.WriteModel, 0, len(recs))
	for _, rec := range recs {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": rec.ID}).
			SetReplacement(s.toDocument(rec)).
			SetUpsert(true))
	}

	if _, err := s.coll.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true)); err != nil {
		return nil, fmt.Errorf("bulk save %d %s: %w", len(recs), s.schema.Collection(), err)
	}
	return recs, nil
}

func (s *MongoStore) Delete(ctx context.Context, rec *models.Record) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": rec.ID})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", s.schema.Collection(), rec.ID, err)
	}
	if res.DeletedCount == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MongoStore) toDocument(rec *models.Record) bson.M {
	doc := bson.M{"_id": rec.ID}
	for k, v := range s.schema.Encode(rec) {
		doc[k] = v
	}
	return doc
}

func (s *MongoStore) fromDocument(doc bson.M) *models.Record {
	values := make(map[string]any, len(doc))
	for k, v := range doc {
		values[k] = normalizeBSON(v)
	}

	rec, problems := s.schema.Decode(values)
	for _, problem := range problems {
		s.logger.WithError(problem).Warn("Stored document field does not match schema")
	}
	if id, ok := doc["_id"].(string); ok {
		rec.ID = id
	}
	return rec
}

// normalizeBSON converts driver types to the plain Go values schema
// coercion understands.
func normalizeBSON(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case bson.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeBSON(item)
		}
		return out
	default:
		return v
	}
}
