package coupon

import "github.com/medreza/marketplace-coupons/pkg/models"

// ComputeDiscount returns the discount c grants on amount. The result is
// never negative and never larger than amount.
func ComputeDiscount(c *models.Coupon, amount float64) float64 {
	if amount <= 0 {
		return 0
	}

	var discount float64
	switch c.Type {
	case models.CouponTypePercentage:
		discount = amount * c.Value / 100
		if c.MaximumDiscount != nil && discount > *c.MaximumDiscount {
			discount = *c.MaximumDiscount
		}
	case models.CouponTypeFixed:
		discount = c.Value
	}

	if discount > amount {
		discount = amount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}
