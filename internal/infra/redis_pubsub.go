package infra

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
	"gridtrade.com/internal/constants"
)

// MarketMessage wraps the topic and the raw gateway payload.
type MarketMessage struct {
	Symbol  string          `json:"symbol"`
	Payload json.RawMessage `json:"payload"`
}

// MarketDataChan buffers ticks between the redis subscriber and the dispatcher.
var MarketDataChan = make(chan MarketMessage, 1000)

// StartMarketDataSubscriber starts a goroutine to subscribe to market data.
func StartMarketDataSubscriber(rdb *redis.Client, ctx context.Context) {
	// Subscribe to all channels matching pattern
	pubsub := rdb.PSubscribe(ctx, constants.RedisPubSubMarketPrefix+"*")

	// Wait for confirmation that subscription is created
	_, err := pubsub.Receive(ctx)
	if err != nil {
		log.Fatalf("Failed to subscribe to market data: %v", err)
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		log.Println("Started Market Data Subscriber Loop")
		for msg := range ch {
			// Strip "market." prefix to get the actual symbol
			symbol := strings.TrimPrefix(msg.Channel, constants.RedisPubSubMarketPrefix)

			message := MarketMessage{
				Symbol:  symbol,
				Payload: json.RawMessage(msg.Payload),
			}

			// Forward payload to internal channel non-blocking
			select {
			case MarketDataChan <- message:
				// Data sent
			default:
				log.Println("Warning: MarketDataChan is full, dropping message")
			}
		}
	}()
}
