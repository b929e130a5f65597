// Package notify fans inventory change events out to interested consumers.
//
// Delivery contract: best-effort, at-least-once per connected subscriber,
// no persistence and no replay. A subscriber that attaches after a publish
// misses that event, and ordering is only per topic, never across topics.
// Consumers that need durability must not build on this package.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	StatusInStock    = "IN_STOCK"
	StatusOutOfStock = "OUT_OF_STOCK"
)

// InventoryUpdate is the message published on a product's inventory topic.
// Field names are part of the public consumer contract.
type InventoryUpdate struct {
	ProductID string `json:"productId"`
	Available int    `json:"available"`
	Status    string `json:"status"`
}

// NewInventoryUpdate derives the wire message from a clamped quantity.
func NewInventoryUpdate(productID string, available int) InventoryUpdate {
	status := StatusOutOfStock
	if available > 0 {
		status = StatusInStock
	}
	return InventoryUpdate{
		ProductID: productID,
		Available: available,
		Status:    status,
	}
}

// ProductInventoryTopic returns the per-product channel name.
func ProductInventoryTopic(productID string) string {
	return fmt.Sprintf("products:%s:inventory", productID)
}

// Publisher delivers a payload to all current subscribers of a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// RedisPublisher publishes over Redis pub/sub channels.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a publisher on an existing Redis client.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish sends the JSON-encoded payload to the topic. The call returns as
// soon as the broker accepted the message; no subscriber acknowledgement is
// awaited (fire-and-forget).
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify: marshal payload for %s: %w", topic, err)
	}
	return p.client.Publish(ctx, topic, data).Err()
}

// Subscribe attaches to the given topics. The caller owns the returned
// subscription and must Close it.
func (p *RedisPublisher) Subscribe(ctx context.Context, topics ...string) *redis.PubSub {
	return p.client.Subscribe(ctx, topics...)
}
