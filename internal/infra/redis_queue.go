package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gridtrade.com/internal/constants"
)

// NotificationEvent is the envelope pushed onto the external notification
// queue for downstream sinks (mailers, alert relays). Delivery is
// fire-and-forget; the engine never waits on or retries these.
type NotificationEvent struct {
	Type       string      `json:"type"` // order_filled, order_created, monitoring_update, ...
	StrategyID string      `json:"strategyId"`
	Payload    interface{} `json:"payload"`
	Timestamp  time.Time   `json:"timestamp"`
}

// PushNotification appends an event to the notification list.
// Direction: engine -> external sink. Action: RPUSH (sink should LPOP).
func PushNotification(ctx context.Context, rdb *redis.Client, event NotificationEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := rdb.RPush(ctx, constants.RedisQueueNotification, data).Err(); err != nil {
		return fmt.Errorf("failed to push notification to redis: %w", err)
	}
	return nil
}
