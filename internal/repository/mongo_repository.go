package repository

import (
	"context"
	"fmt"

	"github.com/godilite/feedback-server/internal/feedback"
	"github.com/godilite/feedback-server/internal/repository/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoRepository stores each category in its own collection.
type MongoRepository struct {
	db *mongo.Database
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{db: db}
}

// EnsureSchema creates the created_at index used for ordering reads.
func (r *MongoRepository) EnsureSchema(ctx context.Context) error {
	for _, c := range feedback.Categories {
		_, err := r.db.Collection(c.Table()).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		})
		if err != nil {
			return fmt.Errorf("create index on %s: %w", c.Table(), err)
		}
	}
	return nil
}

func (r *MongoRepository) AppendRow(ctx context.Context, category feedback.Category, record feedback.Record) error {
	if !category.Valid() {
		return fmt.Errorf("%w: %q", feedback.ErrUnknownCategory, category)
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if _, err := r.db.Collection(category.Table()).InsertOne(ctx, models.NewFeedbackDocument(record)); err != nil {
		return fmt.Errorf("insert AppendRow: %w", err)
	}
	return nil
}

func (r *MongoRepository) ReadAll(ctx context.Context, category feedback.Category) ([]feedback.Record, error) {
	if !category.Valid() {
		return nil, fmt.Errorf("%w: %q", feedback.ErrUnknownCategory, category)
	}

	cursor, err := r.db.Collection(category.Table()).Find(ctx, bson.D{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find ReadAll: %w", err)
	}

	var docs []models.FeedbackDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode ReadAll: %w", err)
	}

	results := make([]feedback.Record, 0, len(docs))
	for _, d := range docs {
		results = append(results, d.Record())
	}
	return results, nil
}

func (r *MongoRepository) Close() error {
	return r.db.Client().Disconnect(context.Background())
}
