package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adsight-labs/adsight-core/domain"
)

// CredentialRepository persists provider credentials. A unique compound
// index on (user_id, provider) guarantees at most one document per pair.
type CredentialRepository struct {
	collection *mongo.Collection
}

func NewCredentialRepository(ctx context.Context, db *mongo.Database) (*CredentialRepository, error) {
	repo := &CredentialRepository{collection: db.Collection(CredentialsCollection)}

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "provider", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for oauth_credentials collection")
	}

	return repo, nil
}

// UpsertCredential writes the credential for (UserID, Provider), creating it
// on first connect and replacing the secret fields on reconnect. CreatedAt
// is only set on insert.
func (r *CredentialRepository) UpsertCredential(ctx context.Context, cred *domain.Credential) error {
	now := time.Now().UTC()

	filter := bson.M{"user_id": cred.UserID, "provider": cred.Provider}
	update := bson.M{
		"$set": bson.M{
			"provider_user_id":       cred.ProviderUserID,
			"provider_user_name":     cred.ProviderUserName,
			"refresh_token":          cred.RefreshToken,
			"encrypted_access_token": cred.EncryptedAccessToken,
			"scopes":                 cred.Scopes,
			"expires_at":             cred.ExpiresAt,
			"updated_at":             now,
		},
		"$setOnInsert": bson.M{
			"created_at": now,
		},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		log.Error().Err(err).Str("user_id", cred.UserID).Str("provider", cred.Provider.String()).
			Msg("Error upserting credential")
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	log.Debug().Str("user_id", cred.UserID).Str("provider", cred.Provider.String()).Msg("Credential upserted")
	return nil
}

func (r *CredentialRepository) GetCredential(ctx context.Context, userID string, provider domain.Provider) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID, "provider": provider}).Decode(&cred)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCredentialNotFound
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Error retrieving credential")
		return nil, fmt.Errorf("failed to retrieve credential: %w", err)
	}
	return &cred, nil
}

func (r *CredentialRepository) DeleteCredential(ctx context.Context, userID string, provider domain.Provider) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID, "provider": provider})
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

var _ domain.CredentialRepository = (*CredentialRepository)(nil)
