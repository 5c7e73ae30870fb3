package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adsight-labs/adsight-core/domain"
)

// StateRepository persists OAuth state tokens. A TTL index on expires_at
// sweeps abandoned attempts; consumed states are deleted explicitly by the
// orchestrator.
type StateRepository struct {
	collection *mongo.Collection
}

func NewStateRepository(ctx context.Context, db *mongo.Database) (*StateRepository, error) {
	repo := &StateRepository{collection: db.Collection(StatesCollection)}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for oauth_states collection")
	}

	return repo, nil
}

func (r *StateRepository) SaveState(ctx context.Context, state *domain.OAuthState) error {
	if state.Token == "" {
		return errors.New("state token cannot be empty")
	}

	_, err := r.collection.InsertOne(ctx, state)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("state token collision: %w", err)
		}
		log.Error().Err(err).Msg("Error saving oauth state")
		return fmt.Errorf("failed to save oauth state: %w", err)
	}

	log.Debug().Str("user_id", state.UserID).Str("provider", state.Provider.String()).Msg("OAuth state saved")
	return nil
}

func (r *StateRepository) GetState(ctx context.Context, token string) (*domain.OAuthState, error) {
	var state domain.OAuthState
	err := r.collection.FindOne(ctx, bson.M{"_id": token}).Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrStateNotFound
		}
		log.Error().Err(err).Msg("Error retrieving oauth state")
		return nil, fmt.Errorf("failed to retrieve oauth state: %w", err)
	}
	return &state, nil
}

func (r *StateRepository) DeleteState(ctx context.Context, token string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": token})
	if err != nil {
		return fmt.Errorf("failed to delete oauth state: %w", err)
	}
	if result.DeletedCount == 0 {
		log.Debug().Msg("No oauth state document found to delete")
	}
	return nil
}

var _ domain.OAuthStateRepository = (*StateRepository)(nil)
