package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adsight-labs/adsight-core/domain"
)

// AdAccountRepository stores discovered advertising accounts.
type AdAccountRepository struct {
	collection *mongo.Collection
}

func NewAdAccountRepository(ctx context.Context, db *mongo.Database) (*AdAccountRepository, error) {
	repo := &AdAccountRepository{collection: db.Collection(AdAccountsCollection)}

	indexModels := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "provider", Value: 1},
				{Key: "account_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		log.Warn().Err(err).Msg("Issue creating indexes for ad_accounts collection")
	}

	return repo, nil
}

// ReplaceForUser upserts the discovered accounts in bulk writes chunked at
// the per-commit mutation ceiling.
func (r *AdAccountRepository) ReplaceForUser(ctx context.Context, userID string, provider domain.Provider, accounts []domain.AdAccount) error {
	if len(accounts) == 0 {
		return nil
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(accounts))
	for i := range accounts {
		acct := accounts[i]
		acct.UserID = userID
		acct.Provider = provider
		acct.SyncedAt = now

		filter := bson.M{"user_id": userID, "provider": provider, "account_id": acct.AccountID}
		update := bson.M{
			"$set": bson.M{
				"name":      acct.Name,
				"currency":  acct.Currency,
				"status":    acct.Status,
				"synced_at": acct.SyncedAt,
			},
			"$setOnInsert": bson.M{
				"user_id":    userID,
				"provider":   provider,
				"account_id": acct.AccountID,
			},
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(filter).
			SetUpdate(update).
			SetUpsert(true))
	}

	for start := 0; start < len(models); start += maxBatchOps {
		end := start + maxBatchOps
		if end > len(models) {
			end = len(models)
		}
		if _, err := r.collection.BulkWrite(ctx, models[start:end]); err != nil {
			return fmt.Errorf("failed to bulk-write ad accounts: %w", err)
		}
	}

	log.Debug().Str("user_id", userID).Str("provider", provider.String()).
		Int("count", len(accounts)).Msg("Ad accounts synced")
	return nil
}

func (r *AdAccountRepository) ListForUser(ctx context.Context, userID string, provider domain.Provider) ([]domain.AdAccount, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID, "provider": provider})
	if err != nil {
		return nil, fmt.Errorf("failed to list ad accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []domain.AdAccount
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode ad accounts: %w", err)
	}
	return accounts, nil
}

var _ domain.AdAccountRepository = (*AdAccountRepository)(nil)
