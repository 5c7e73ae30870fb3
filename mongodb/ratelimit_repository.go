package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adsight-labs/adsight-core/domain"
)

// RateLimitRepository stores one request-log document per (user, action)
// key. Writes replace the whole pruned window; documents are never deleted,
// their growth is bounded by the window itself.
type RateLimitRepository struct {
	collection *mongo.Collection
}

func NewRateLimitRepository(db *mongo.Database) *RateLimitRepository {
	return &RateLimitRepository{collection: db.Collection(RateLimitsCollection)}
}

func (r *RateLimitRepository) GetWindow(ctx context.Context, key string) (*domain.RateLimitWindow, error) {
	var window domain.RateLimitWindow
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&window)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rate limit window: %w", err)
	}
	return &window, nil
}

func (r *RateLimitRepository) PutWindow(ctx context.Context, window *domain.RateLimitWindow) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": window.Key}, window, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to write rate limit window: %w", err)
	}
	return nil
}

var _ domain.RateLimitRepository = (*RateLimitRepository)(nil)
