package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gridtrade.com/internal/constants"
	"gridtrade.com/internal/domain"
)

var _ domain.FeedClient = (*Client)(nil)

// Command 是发送给行情网关的统一指令。
type Command struct {
	Type      string                 `json:"Type"`      // "SUBSCRIBE" / "UNSUBSCRIBE"
	RequestID string                 `json:"RequestID"` // 用于追踪指令
	Payload   map[string]interface{} `json:"Payload"`
}

// Client handles all outgoing communication to the market data gateway via Redis.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new feed gateway client.
func NewClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// SendCommand pushes a unified command to the gateway command queue.
func (c *Client) SendCommand(ctx context.Context, cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	if err := c.rdb.LPush(ctx, constants.RedisQueueFeedCommand, data).Err(); err != nil {
		return fmt.Errorf("failed to push command to redis: %w", err)
	}
	return nil
}

// Subscribe sends a subscription request for a specific symbol.
func (c *Client) Subscribe(ctx context.Context, symbol string) error {
	cmd := Command{
		Type: "SUBSCRIBE",
		Payload: map[string]interface{}{
			"Symbol": symbol,
		},
		RequestID: fmt.Sprintf("sub-%s-%s", symbol, time.Now().Format("20060102150405")),
	}
	return c.SendCommand(ctx, cmd)
}

// Unsubscribe sends an unsubscribe request.
func (c *Client) Unsubscribe(ctx context.Context, symbol string) error {
	cmd := Command{
		Type: "UNSUBSCRIBE",
		Payload: map[string]interface{}{
			"Symbol": symbol,
		},
		RequestID: fmt.Sprintf("unsub-%s-%s", symbol, time.Now().Format("20060102150405")),
	}
	return c.SendCommand(ctx, cmd)
}
