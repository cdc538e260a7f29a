package coupon

import (
	"fmt"
	"time"

	"github.com/medreza/marketplace-coupons/pkg/models"
)

type Reason string

const (
	ReasonInactive           Reason = "inactive"
	ReasonOutOfWindow        Reason = "out_of_window"
	ReasonUsageLimitExceeded Reason = "usage_limit_exceeded"
	ReasonMinimumAmountUnmet Reason = "minimum_amount_unmet"
	ReasonUserLimitReached   Reason = "per_user_limit_reached"
)

// Validity is the outcome of CheckValidity. A failed check is an ordinary
// value, not an error.
type Validity struct {
	Valid   bool   `json:"valid"`
	Reason  Reason `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func invalid(reason Reason, msg string) Validity {
	return Validity{Reason: reason, Message: msg}
}

// CheckValidity reports whether userID may apply c to a cart of cartAmount
// at instant now. Rules are evaluated in a fixed order and the first failing
// rule decides the reason.
func CheckValidity(c *models.Coupon, userID string, cartAmount float64, now time.Time) Validity {
	if !c.IsActive {
		return invalid(ReasonInactive, "coupon is not active")
	}
	if now.Before(c.ValidFrom) || now.After(c.ValidUntil) {
		return invalid(ReasonOutOfWindow, "coupon is expired or not yet valid")
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return invalid(ReasonUsageLimitExceeded, "coupon usage limit exceeded")
	}
	if cartAmount < c.MinimumAmount {
		return invalid(ReasonMinimumAmountUnmet, fmt.Sprintf("minimum amount of %.2f not met", c.MinimumAmount))
	}
	if c.RedemptionsBy(userID) >= c.UserLimit {
		return invalid(ReasonUserLimitReached, "per-user limit reached")
	}
	return Validity{Valid: true}
}
