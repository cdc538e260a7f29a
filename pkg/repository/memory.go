package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/medreza/marketplace-coupons/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps coupons in process. It is used for local runs without
// MongoDB and by tests; a single mutex serialises every write.
type MemoryStore struct {
	mu     sync.RWMutex
	byCode map[string]*models.Coupon
	byID   map[string]*models.Coupon
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byCode: make(map[string]*models.Coupon),
		byID:   make(map[string]*models.Coupon),
	}
}

func (s *MemoryStore) Create(_ context.Context, coupon *models.Coupon) error {
	coupon.Code = models.NormalizeCode(coupon.Code)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[coupon.Code]; ok {
		return ErrDuplicateCode
	}
	if coupon.ID.IsZero() {
		coupon.ID = primitive.NewObjectID()
	}
	if coupon.UsedBy == nil {
		coupon.UsedBy = []models.Redemption{}
	}

	stored := coupon.Clone()
	s.byCode[stored.Code] = stored
	s.byID[stored.ID.Hex()] = stored
	return nil
}

func (s *MemoryStore) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byCode[models.NormalizeCode(code)]
	if !ok {
		return nil, ErrCouponNotFound
	}
	return c.Clone(), nil
}

func (s *MemoryStore) ConditionalRedeem(_ context.Context, id string, record models.Redemption) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, ErrCouponNotFound
	}
	if !c.IsActive {
		return nil, ErrConflict
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return nil, ErrConflict
	}
	if c.RedemptionsBy(record.User) >= c.UserLimit {
		return nil, ErrConflict
	}

	c.UsedBy = append(c.UsedBy, record)
	c.UsedCount++
	c.UpdatedAt = record.UsedAt
	return c.Clone(), nil
}

func (s *MemoryStore) Deactivate(_ context.Context, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byCode[models.NormalizeCode(code)]
	if !ok {
		return ErrCouponNotFound
	}
	c.IsActive = false
	c.UpdatedAt = at
	return nil
}

func (s *MemoryStore) List(_ context.Context, page, limit int) ([]models.Coupon, int64, error) {
	page, limit = normalizePage(page, limit)

	s.mu.RLock()
	all := make([]models.Coupon, 0, len(s.byCode))
	for _, c := range s.byCode {
		all = append(all, *c.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].Code < all[j].Code
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := (page - 1) * limit
	if start >= len(all) {
		return []models.Coupon{}, total, nil
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}
