package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	deliveryKeyPrefix  = "webhook:delivery:"
	DefaultDeliveryTTL = 72 * time.Hour
)

// DeliveryGuard suppresses redelivered webhook events.
type DeliveryGuard interface {
	// Claim returns true the first time an event id is seen within the TTL.
	Claim(ctx context.Context, eventID string) (bool, error)
	// Release forgets an event id so a later redelivery is processed again.
	Release(ctx context.Context, eventID string) error
}

// RedisDeliveryGuard keeps claimed event ids as expiring Redis keys.
type RedisDeliveryGuard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeliveryGuard(client *redis.Client, ttl time.Duration) *RedisDeliveryGuard {
	if ttl <= 0 {
		ttl = DefaultDeliveryTTL
	}
	return &RedisDeliveryGuard{client: client, ttl: ttl}
}

func (g *RedisDeliveryGuard) Claim(ctx context.Context, eventID string) (bool, error) {
	return g.client.SetNX(ctx, deliveryKeyPrefix+eventID, time.Now().Unix(), g.ttl).Result()
}

func (g *RedisDeliveryGuard) Release(ctx context.Context, eventID string) error {
	return g.client.Del(ctx, deliveryKeyPrefix+eventID).Err()
}

// DeliveryID returns the vendor event id, or a content hash of the payload
// when the vendor did not send one.
func DeliveryID(eventID string, payload []byte) string {
	if id := strings.TrimSpace(eventID); id != "" {
		return id
	}
	sum := sha256.Sum256(payload)
	return "hash:" + hex.EncodeToString(sum[:])
}
