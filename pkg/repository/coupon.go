package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medreza/marketplace-coupons/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CouponCollection = "coupons"

type CouponRepository struct {
	coll *mongo.Collection
}

func NewCouponRepository(db *mongo.Database) *CouponRepository {
	return &CouponRepository{coll: db.Collection(CouponCollection)}
}

func (r *CouponRepository) Create(ctx context.Context, coupon *models.Coupon) error {
	coupon.Code = models.NormalizeCode(coupon.Code)
	if coupon.UsedBy == nil {
		coupon.UsedBy = []models.Redemption{}
	}

	res, err := r.coll.InsertOne(ctx, coupon)
	if err != nil {
		// the unique index on code is the source of truth for uniqueness
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		coupon.ID = oid
	}
	return nil
}

func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.coll.FindOne(ctx, bson.M{"code": models.NormalizeCode(code)}).Decode(&coupon)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return &coupon, nil
}

func (r *CouponRepository) ConditionalRedeem(ctx context.Context, id string, record models.Redemption) (*models.Coupon, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrCouponNotFound
	}

	filter := redeemFilter(oid, record.User)
	update := bson.M{
		"$inc":  bson.M{"usedCount": 1},
		"$push": bson.M{"usedBy": record},
		"$set":  bson.M{"updatedAt": record.UsedAt},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var coupon models.Coupon
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&coupon)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to redeem coupon: %w", err)
	}
	return &coupon, nil
}

// redeemFilter matches the coupon only while it can still take one more
// redemption by user. Commits by other users don't invalidate it.
func redeemFilter(oid primitive.ObjectID, user string) bson.M {
	userRedemptions := bson.M{"$size": bson.M{"$filter": bson.M{
		"input": bson.M{"$ifNull": bson.A{"$usedBy", bson.A{}}},
		"cond":  bson.M{"$eq": bson.A{"$$this.user", bson.M{"$literal": user}}},
	}}}

	withinLimits := bson.A{
		bson.M{"$or": bson.A{
			bson.M{"usageLimit": nil},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$usedCount", "$usageLimit"}}},
		}},
		bson.M{"$expr": bson.M{"$lt": bson.A{userRedemptions, "$userLimit"}}},
	}
	return bson.M{"_id": oid, "isActive": true, "$and": withinLimits}
}

func (r *CouponRepository) Deactivate(ctx context.Context, code string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"code": models.NormalizeCode(code)},
		bson.M{"$set": bson.M{"isActive": false, "updatedAt": at}},
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate coupon: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrCouponNotFound
	}
	return nil
}

func (r *CouponRepository) List(ctx context.Context, page, limit int) ([]models.Coupon, int64, error) {
	page, limit = normalizePage(page, limit)

	total, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count coupons: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer cursor.Close(ctx)

	coupons := make([]models.Coupon, 0, limit)
	if err := cursor.All(ctx, &coupons); err != nil {
		return nil, 0, fmt.Errorf("error iterating coupons: %w", err)
	}
	return coupons, total, nil
}
