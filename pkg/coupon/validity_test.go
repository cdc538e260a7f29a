package coupon_test

import (
	"testing"
	"time"

	"github.com/medreza/marketplace-coupons/pkg/coupon"
	"github.com/medreza/marketplace-coupons/pkg/models"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }
func floatPtr(v float64) *float64 { return &v }

func activeCoupon() *models.Coupon {
	return &models.Coupon{
		Code:       "SAVE10",
		Type:       models.CouponTypePercentage,
		Value:      10,
		UserLimit:  1,
		ValidFrom:  now.Add(-24 * time.Hour),
		ValidUntil: now.Add(24 * time.Hour),
		IsActive:   true,
		UsedBy:     []models.Redemption{},
		CreatedBy:  "admin",
	}
}

func TestCheckValidity_Valid(t *testing.T) {
	v := coupon.CheckValidity(activeCoupon(), "user-1", 100, now)
	assert.True(t, v.Valid)
	assert.Empty(t, v.Reason)
}

func TestCheckValidity_Rules(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *models.Coupon)
		amount float64
		reason coupon.Reason
		msg    string
	}{
		{
			name:   "inactive",
			mutate: func(c *models.Coupon) { c.IsActive = false },
			amount: 100,
			reason: coupon.ReasonInactive,
			msg:    "coupon is not active",
		},
		{
			name:   "not yet valid",
			mutate: func(c *models.Coupon) { c.ValidFrom = now.Add(time.Hour) },
			amount: 100,
			reason: coupon.ReasonOutOfWindow,
			msg:    "coupon is expired or not yet valid",
		},
		{
			name:   "expired",
			mutate: func(c *models.Coupon) { c.ValidUntil = now.Add(-time.Second) },
			amount: 100,
			reason: coupon.ReasonOutOfWindow,
			msg:    "coupon is expired or not yet valid",
		},
		{
			name: "usage limit exhausted",
			mutate: func(c *models.Coupon) {
				c.UsageLimit = intPtr(2)
				c.UsedCount = 2
			},
			amount: 100,
			reason: coupon.ReasonUsageLimitExceeded,
			msg:    "coupon usage limit exceeded",
		},
		{
			name:   "minimum not met",
			mutate: func(c *models.Coupon) { c.MinimumAmount = 150 },
			amount: 149.99,
			reason: coupon.ReasonMinimumAmountUnmet,
			msg:    "minimum amount of 150.00 not met",
		},
		{
			name: "per-user limit reached",
			mutate: func(c *models.Coupon) {
				c.UsedBy = []models.Redemption{{User: "user-1", UsedAt: now.Add(-time.Hour)}}
				c.UsedCount = 1
			},
			amount: 100,
			reason: coupon.ReasonUserLimitReached,
			msg:    "per-user limit reached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := activeCoupon()
			tt.mutate(c)

			v := coupon.CheckValidity(c, "user-1", tt.amount, now)
			assert.False(t, v.Valid)
			assert.Equal(t, tt.reason, v.Reason)
			assert.Equal(t, tt.msg, v.Message)
		})
	}
}

func TestCheckValidity_WindowIsInclusive(t *testing.T) {
	c := activeCoupon()
	c.ValidFrom = now
	c.ValidUntil = now

	assert.True(t, coupon.CheckValidity(c, "user-1", 100, now).Valid)
}

func TestCheckValidity_MinimumIsInclusive(t *testing.T) {
	c := activeCoupon()
	c.MinimumAmount = 100

	assert.True(t, coupon.CheckValidity(c, "user-1", 100, now).Valid)
}

func TestCheckValidity_ShortCircuitsInOrder(t *testing.T) {
	c := activeCoupon()
	c.IsActive = false
	c.ValidUntil = now.Add(-time.Hour)
	c.MinimumAmount = 1000

	v := coupon.CheckValidity(c, "user-1", 1, now)
	assert.Equal(t, coupon.ReasonInactive, v.Reason)

	c.IsActive = true
	v = coupon.CheckValidity(c, "user-1", 1, now)
	assert.Equal(t, coupon.ReasonOutOfWindow, v.Reason)
}

func TestCheckValidity_FutureCoupon(t *testing.T) {
	c := activeCoupon()
	c.ValidFrom = now.Add(48 * time.Hour)
	c.ValidUntil = now.Add(72 * time.Hour)

	v := coupon.CheckValidity(c, "user-1", 100, now)
	assert.False(t, v.Valid)
	assert.Equal(t, "coupon is expired or not yet valid", v.Message)
}

func TestCheckValidity_UserLimitIndependentOfUsageLimit(t *testing.T) {
	c := activeCoupon()
	c.UsageLimit = intPtr(100)
	c.UserLimit = 2
	c.UsedCount = 2
	c.UsedBy = []models.Redemption{{User: "user-1"}, {User: "user-1"}}

	v := coupon.CheckValidity(c, "user-1", 100, now)
	assert.Equal(t, coupon.ReasonUserLimitReached, v.Reason)

	assert.True(t, coupon.CheckValidity(c, "user-2", 100, now).Valid)
}

func TestCheckValidity_Idempotent(t *testing.T) {
	c := activeCoupon()
	c.MinimumAmount = 50

	first := coupon.CheckValidity(c, "user-1", 10, now)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, coupon.CheckValidity(c, "user-1", 10, now))
	}
}
