package repository

import (
	"context"
	"errors"
	"time"

	"github.com/medreza/marketplace-coupons/pkg/models"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")
	ErrDuplicateCode  = errors.New("coupon code already exists")
	ErrConflict       = errors.New("coupon can no longer accept this redemption")
)

// CouponStore is the persistence contract for coupons. ConditionalRedeem is
// the only operation that touches redemption state. It must apply the append
// and the increment atomically, and only while the stored coupon is active,
// below its usage limit and below its user limit for record.User. Otherwise
// it returns ErrConflict.
type CouponStore interface {
	Create(ctx context.Context, coupon *models.Coupon) error
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	ConditionalRedeem(ctx context.Context, id string, record models.Redemption) (*models.Coupon, error)
	Deactivate(ctx context.Context, code string, at time.Time) error
	List(ctx context.Context, page, limit int) ([]models.Coupon, int64, error)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
