package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adsight-labs/adsight-core/domain"
)

// LeadRepository stores captured marketing emails.
type LeadRepository struct {
	collection *mongo.Collection
}

func NewLeadRepository(ctx context.Context, db *mongo.Database) (*LeadRepository, error) {
	repo := &LeadRepository{collection: db.Collection(LeadsCollection)}

	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for leads collection")
	}

	return repo, nil
}

// SaveLead inserts the lead. Re-submitting a known email is treated as
// success.
func (r *LeadRepository) SaveLead(ctx context.Context, lead *domain.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	_, err := r.collection.InsertOne(ctx, lead)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			log.Debug().Msg("Lead email already captured")
			return nil
		}
		return fmt.Errorf("failed to save lead: %w", err)
	}
	return nil
}

var _ domain.LeadRepository = (*LeadRepository)(nil)
