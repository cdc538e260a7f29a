package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/medreza/marketplace-coupons/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix = "coupon:"
	genSuffix = ":gen"
)

var errStaleEntry = errors.New("coupon cache entry is stale")

// CouponCache is a read-through cache for coupon lookups on the read-only
// validate path. Redemption never reads from it. Redis failures degrade to a
// cache miss.
//
// Every code has a generation counter next to its entry. Invalidate bumps it,
// and Set only writes while the counter still holds the value the miss
// reported, so a snapshot read before a redemption can't land after it.
type CouponCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

func NewCouponCache(client *redis.Client, ttl time.Duration) *CouponCache {
	return &CouponCache{client: client, ttl: ttl}
}

func Key(code string) string {
	return keyPrefix + models.NormalizeCode(code)
}

// GenerationKey is lower-case so it never collides with a normalised code.
func GenerationKey(code string) string {
	return Key(code) + genSuffix
}

func (c *CouponCache) Get(ctx context.Context, code string) (*models.Coupon, uint64, bool) {
	vals, err := c.client.MGet(ctx, Key(code), GenerationKey(code)).Result()
	if err != nil {
		logrus.WithField("coupon_code", code).WithError(err).Warn("CouponCache: Get failed")
		return nil, 0, false
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		logrus.WithField("coupon_code", code).WithError(err).Warn("CouponCache: Corrupt generation")
		return nil, 0, false
	}

	raw, ok := vals[0].(string)
	if !ok {
		return nil, gen, false
	}
	var coupon models.Coupon
	if err := json.Unmarshal([]byte(raw), &coupon); err != nil {
		logrus.WithField("coupon_code", code).WithError(err).Warn("CouponCache: Corrupt entry")
		return nil, gen, false
	}
	return &coupon, gen, true
}

func (c *CouponCache) Set(ctx context.Context, coupon *models.Coupon, gen uint64) {
	log := logrus.WithField("coupon_code", coupon.Code)

	raw, err := json.Marshal(coupon)
	if err != nil {
		log.WithError(err).Warn("CouponCache: Marshal failed")
		return
	}

	genKey := GenerationKey(coupon.Code)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		cur, err := parseGeneration(current)
		if err != nil {
			return err
		}
		if cur != gen {
			return errStaleEntry
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, Key(coupon.Code), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleEntry), errors.Is(err, redis.TxFailedErr):
		log.Debug("CouponCache: Dropped stale entry")
	default:
		log.WithError(err).Warn("CouponCache: Set failed")
	}
}

func (c *CouponCache) Invalidate(ctx context.Context, code string) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, GenerationKey(code))
		pipe.Del(ctx, Key(code))
		return nil
	})
	if err != nil {
		logrus.WithField("coupon_code", code).WithError(err).Warn("CouponCache: Invalidate failed")
	}
}

func parseGeneration(v interface{}) (uint64, error) {
	switch g := v.(type) {
	case nil:
		return 0, nil
	case string:
		if g == "" {
			return 0, nil
		}
		return strconv.ParseUint(g, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected generation value %T", v)
	}
}
