package database

import (
	"context"
	"fmt"

	"github.com/medreza/marketplace-coupons/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func runMigrations(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(repository.CouponCollection)

	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_coupon_code"),
		},
		{
			Keys:    bson.D{{Key: "usedBy.user", Value: 1}},
			Options: options.Index().SetName("idx_coupon_used_by_user"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("idx_coupon_created_at"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create coupon indexes: %w", err)
	}
	return nil
}
