package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CouponType string

const (
	CouponTypePercentage CouponType = "percentage"
	CouponTypeFixed      CouponType = "fixed"
)

const DefaultUserLimit = 1

// Coupon is stored as a single document per code. UsedBy is append-only and
// only grows through a conditional redeem at the store.
type Coupon struct {
	ID                   primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Code                 string             `json:"code" bson:"code"`
	Description          string             `json:"description,omitempty" bson:"description,omitempty"`
	Type                 CouponType         `json:"type" bson:"type"`
	Value                float64            `json:"value" bson:"value"`
	MinimumAmount        float64            `json:"minimum_amount" bson:"minimumAmount"`
	MaximumDiscount      *float64           `json:"maximum_discount,omitempty" bson:"maximumDiscount,omitempty"`
	UsageLimit           *int               `json:"usage_limit,omitempty" bson:"usageLimit,omitempty"`
	UsedCount            int                `json:"used_count" bson:"usedCount"`
	UserLimit            int                `json:"user_limit" bson:"userLimit"`
	ApplicableProducts   []string           `json:"applicable_products,omitempty" bson:"applicableProducts,omitempty"`
	ApplicableCategories []string           `json:"applicable_categories,omitempty" bson:"applicableCategories,omitempty"`
	ExcludeProducts      []string           `json:"exclude_products,omitempty" bson:"excludeProducts,omitempty"`
	ValidFrom            time.Time          `json:"valid_from" bson:"validFrom"`
	ValidUntil           time.Time          `json:"valid_until" bson:"validUntil"`
	IsActive             bool               `json:"is_active" bson:"isActive"`
	UsedBy               []Redemption       `json:"used_by" bson:"usedBy"`
	CreatedBy            string             `json:"created_by" bson:"createdBy"`
	CreatedAt            time.Time          `json:"created_at" bson:"createdAt"`
	UpdatedAt            time.Time          `json:"updated_at" bson:"updatedAt"`
}

type Redemption struct {
	User           string    `json:"user" bson:"user"`
	UsedAt         time.Time `json:"used_at" bson:"usedAt"`
	OrderAmount    float64   `json:"order_amount" bson:"orderAmount"`
	DiscountAmount float64   `json:"discount_amount" bson:"discountAmount"`
}

// RedemptionsBy counts the entries in UsedBy recorded for userID.
func (c *Coupon) RedemptionsBy(userID string) int {
	n := 0
	for _, r := range c.UsedBy {
		if r.User == userID {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so callers can't mutate a stored document.
func (c *Coupon) Clone() *Coupon {
	out := *c
	if c.MaximumDiscount != nil {
		v := *c.MaximumDiscount
		out.MaximumDiscount = &v
	}
	if c.UsageLimit != nil {
		v := *c.UsageLimit
		out.UsageLimit = &v
	}
	out.ApplicableProducts = cloneSlice(c.ApplicableProducts)
	out.ApplicableCategories = cloneSlice(c.ApplicableCategories)
	out.ExcludeProducts = cloneSlice(c.ExcludeProducts)
	out.UsedBy = cloneSlice(c.UsedBy)
	return &out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// NormalizeCode trims and upper-cases a coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type CreateCouponRequest struct {
	Code                 string     `json:"code" binding:"required,min=3,max=64"`
	Description          string     `json:"description"`
	Type                 CouponType `json:"type" binding:"required,oneof=percentage fixed"`
	Value                float64    `json:"value" binding:"gte=0"`
	MinimumAmount        float64    `json:"minimum_amount" binding:"gte=0"`
	MaximumDiscount      *float64   `json:"maximum_discount" binding:"omitempty,gte=0"`
	UsageLimit           *int       `json:"usage_limit" binding:"omitempty,gte=0"`
	UserLimit            *int       `json:"user_limit" binding:"omitempty,gte=1"`
	ApplicableProducts   []string   `json:"applicable_products"`
	ApplicableCategories []string   `json:"applicable_categories"`
	ExcludeProducts      []string   `json:"exclude_products"`
	ValidFrom            time.Time  `json:"valid_from" binding:"required"`
	ValidUntil           time.Time  `json:"valid_until" binding:"required,gtefield=ValidFrom"`
	CreatedBy            string     `json:"created_by" binding:"required"`
}

// ToCoupon builds an active coupon with no redemptions.
func (r *CreateCouponRequest) ToCoupon(now time.Time) *Coupon {
	userLimit := DefaultUserLimit
	if r.UserLimit != nil {
		userLimit = *r.UserLimit
	}
	return &Coupon{
		Code:                 NormalizeCode(r.Code),
		Description:          r.Description,
		Type:                 r.Type,
		Value:                r.Value,
		MinimumAmount:        r.MinimumAmount,
		MaximumDiscount:      r.MaximumDiscount,
		UsageLimit:           r.UsageLimit,
		UserLimit:            userLimit,
		ApplicableProducts:   r.ApplicableProducts,
		ApplicableCategories: r.ApplicableCategories,
		ExcludeProducts:      r.ExcludeProducts,
		ValidFrom:            r.ValidFrom,
		ValidUntil:           r.ValidUntil,
		IsActive:             true,
		UsedBy:               []Redemption{},
		CreatedBy:            r.CreatedBy,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

type ValidateCouponRequest struct {
	Code       string  `json:"code" binding:"required"`
	UserID     string  `json:"user_id" binding:"required"`
	CartAmount float64 `json:"cart_amount" binding:"gte=0"`
}

type ValidateCouponResponse struct {
	Valid          bool    `json:"valid"`
	Code           string  `json:"code"`
	Reason         string  `json:"reason,omitempty"`
	Message        string  `json:"message,omitempty"`
	DiscountAmount float64 `json:"discount_amount"`
}

type RedeemCouponRequest struct {
	Code        string  `json:"code" binding:"required"`
	UserID      string  `json:"user_id" binding:"required"`
	OrderAmount float64 `json:"order_amount" binding:"gte=0"`
}

type RedeemCouponResponse struct {
	Code           string  `json:"code"`
	UserID         string  `json:"user_id"`
	OrderAmount    float64 `json:"order_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	PayableAmount  float64 `json:"payable_amount"`
	UsedCount      int     `json:"used_count"`
	Remaining      *int    `json:"remaining,omitempty"`
}

type CouponListResponse struct {
	Coupons []Coupon `json:"coupons"`
	Total   int64    `json:"total"`
	Page    int      `json:"page"`
	Limit   int      `json:"limit"`
}
