package coupon

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/medreza/marketplace-coupons/pkg/metrics"
	"github.com/medreza/marketplace-coupons/pkg/models"
	"github.com/medreza/marketplace-coupons/pkg/repository"
	"github.com/sirupsen/logrus"
)

const DefaultMaxAttempts = 3

var (
	ErrRedemptionConflict = errors.New("coupon redemption conflict, retry validation")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// ValidationError carries a failed Validity out of Redeem and Apply.
type ValidationError struct {
	Validity Validity
}

func (e *ValidationError) Error() string {
	return e.Validity.Message
}

// Cache is consulted by Preview only. On a miss Get returns the entry's
// current generation; Set must drop the write when an Invalidate has bumped
// the generation since.
type Cache interface {
	Get(ctx context.Context, code string) (coupon *models.Coupon, generation uint64, ok bool)
	Set(ctx context.Context, coupon *models.Coupon, generation uint64)
	Invalidate(ctx context.Context, code string)
}

// Quote is the read-only answer to "what would this coupon do for this cart".
type Quote struct {
	Coupon   *models.Coupon
	Validity Validity
	Discount float64
}

type Service struct {
	store       repository.CouponStore
	clock       Clock
	cache       Cache
	maxAttempts int
}

// NewService wires the coordinator. cache may be nil. maxAttempts below 1
// falls back to DefaultMaxAttempts.
func NewService(store repository.CouponStore, clock Clock, cache Cache, maxAttempts int) *Service {
	if clock == nil {
		clock = SystemClock{}
	}
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Service{store: store, clock: clock, cache: cache, maxAttempts: maxAttempts}
}

func (s *Service) Create(ctx context.Context, req *models.CreateCouponRequest) (*models.Coupon, error) {
	c := req.ToCoupon(s.clock.Now())
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"coupon_code": c.Code,
		"type":        c.Type,
		"created_by":  c.CreatedBy,
	}).Info("Coupon created")
	return c, nil
}

func (s *Service) Get(ctx context.Context, code string) (*models.Coupon, error) {
	return s.store.FindByCode(ctx, code)
}

func (s *Service) List(ctx context.Context, page, limit int) ([]models.Coupon, int64, error) {
	return s.store.List(ctx, page, limit)
}

func (s *Service) Deactivate(ctx context.Context, code string) error {
	if err := s.store.Deactivate(ctx, code, s.clock.Now()); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(ctx, code)
	}
	logrus.WithField("coupon_code", models.NormalizeCode(code)).Info("Coupon deactivated")
	return nil
}

// Preview validates the coupon for userID and cartAmount and computes the
// discount without recording anything.
func (s *Service) Preview(ctx context.Context, code, userID string, cartAmount float64) (*Quote, error) {
	if err := checkArgs(userID, cartAmount); err != nil {
		return nil, err
	}

	c, err := s.lookup(ctx, code)
	if err != nil {
		return nil, err
	}

	q := &Quote{Coupon: c, Validity: CheckValidity(c, userID, cartAmount, s.clock.Now())}
	if q.Validity.Valid {
		q.Discount = ComputeDiscount(c, cartAmount)
	}
	metrics.ObserveValidation(string(q.Validity.Reason))
	return q, nil
}

// Redeem records a redemption whose discount the caller already computed.
// The coupon is revalidated against fresh state on every attempt.
func (s *Service) Redeem(ctx context.Context, code, userID string, orderAmount, discountAmount float64) (*models.Coupon, error) {
	if !validAmount(discountAmount) {
		return nil, fmt.Errorf("%w: discount must be a non-negative number", ErrInvalidArgument)
	}
	c, _, err := s.redeem(ctx, code, userID, orderAmount, func(*models.Coupon) float64 {
		return discountAmount
	})
	return c, err
}

// Apply validates, computes the discount and records the redemption in one
// step. It returns the updated coupon and the discount granted.
func (s *Service) Apply(ctx context.Context, code, userID string, orderAmount float64) (*models.Coupon, float64, error) {
	return s.redeem(ctx, code, userID, orderAmount, func(c *models.Coupon) float64 {
		return ComputeDiscount(c, orderAmount)
	})
}

func (s *Service) redeem(ctx context.Context, code, userID string, orderAmount float64, discountFor func(*models.Coupon) float64) (*models.Coupon, float64, error) {
	if err := checkArgs(userID, orderAmount); err != nil {
		return nil, 0, err
	}

	log := logrus.WithFields(logrus.Fields{
		"coupon_code": models.NormalizeCode(code),
		"user_id":     userID,
	})

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		c, err := s.store.FindByCode(ctx, code)
		if err != nil {
			if !errors.Is(err, repository.ErrCouponNotFound) {
				metrics.ObserveRedemption(metrics.ResultError, 0)
			}
			return nil, 0, err
		}

		now := s.clock.Now()
		v := CheckValidity(c, userID, orderAmount, now)
		metrics.ObserveValidation(string(v.Reason))
		if !v.Valid {
			metrics.ObserveRedemption(metrics.ResultRejected, 0)
			return nil, 0, &ValidationError{Validity: v}
		}

		discount := discountFor(c)
		record := models.Redemption{
			User:           userID,
			UsedAt:         now,
			OrderAmount:    orderAmount,
			DiscountAmount: discount,
		}

		updated, err := s.store.ConditionalRedeem(ctx, c.ID.Hex(), record)
		if err == nil {
			if s.cache != nil {
				s.cache.Invalidate(ctx, c.Code)
			}
			metrics.ObserveRedemption(metrics.ResultSuccess, discount)
			log.WithFields(logrus.Fields{
				"attempt":  attempt,
				"discount": discount,
			}).Info("Coupon redeemed")
			return updated, discount, nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			metrics.ObserveRedemption(metrics.ResultError, 0)
			return nil, 0, err
		}

		metrics.ObserveConflict()
		log.WithField("attempt", attempt).Debug("Redeem: Lost race, revalidating")
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
	}

	metrics.ObserveRedemption(metrics.ResultConflict, 0)
	log.Warn("Redeem: Retries exhausted")
	return nil, 0, ErrRedemptionConflict
}

func (s *Service) lookup(ctx context.Context, code string) (*models.Coupon, error) {
	if s.cache == nil {
		return s.store.FindByCode(ctx, code)
	}

	cached, gen, ok := s.cache.Get(ctx, code)
	if ok {
		return cached, nil
	}
	c, err := s.store.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, c, gen)
	return c, nil
}

func checkArgs(userID string, amount float64) error {
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidArgument)
	}
	if !validAmount(amount) {
		return fmt.Errorf("%w: amount must be a non-negative number", ErrInvalidArgument)
	}
	return nil
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}
