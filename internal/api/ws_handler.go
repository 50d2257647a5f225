package api

import (
	"context"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"gridtrade.com/internal/domain"
	"gridtrade.com/internal/infra"
)

// WsRequest 客户端订阅指令
// topic 形如 "market.BANKNIFTY24DECFUT" 或 "strategy.grid_1700000000000"
type WsRequest struct {
	Action string `json:"action"` // subscribe / unsubscribe
	Topic  string `json:"topic"`
}

// InitWebsocket 注册 /ws 端点。市场主题的订阅会联动行情网关的引用计数。
func InitWebsocket(app *fiber.App, hub *infra.WsManager, marketSvc domain.MarketService) {
	// Middleware to force upgrade
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		log.Println("New WS connection")

		hub.Register <- c

		// 本连接订阅的市场合约，断开时归还引用计数
		localMarketSubs := make(map[string]bool)

		defer func() {
			hub.Unregister <- c
			for symbol := range localMarketSubs {
				if err := marketSvc.Unsubscribe(context.Background(), symbol); err != nil {
					log.Printf("WS Cleanup: Failed to unsubscribe %s: %v", symbol, err)
				}
			}
		}()

		// Read Loop
		var msg WsRequest
		for {
			if err := c.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Println("ws read error:", err)
				}
				break
			}

			switch msg.Action {
			case "subscribe":
				hub.Subscribe <- infra.TopicSubscription{Conn: c, Topic: msg.Topic}
				if symbol, ok := marketTopicSymbol(msg.Topic); ok && !localMarketSubs[symbol] {
					localMarketSubs[symbol] = true
					if err := marketSvc.Subscribe(context.Background(), symbol); err != nil {
						log.Printf("WS: Failed to subscribe %s: %v", symbol, err)
					}
				}
			case "unsubscribe":
				hub.Unsubscribe <- infra.TopicSubscription{Conn: c, Topic: msg.Topic}
				if symbol, ok := marketTopicSymbol(msg.Topic); ok && localMarketSubs[symbol] {
					delete(localMarketSubs, symbol)
					if err := marketSvc.Unsubscribe(context.Background(), symbol); err != nil {
						log.Printf("WS: Failed to unsubscribe %s: %v", symbol, err)
					}
				}
			default:
				log.Println("Unexpected action:", msg.Action)
			}
		}
	}))
}

// marketTopicSymbol extracts the symbol from a "market.<symbol>" topic.
func marketTopicSymbol(topic string) (string, bool) {
	const prefix = infra.TopicMarketPrefix
	if len(topic) > len(prefix) && topic[:len(prefix)] == prefix {
		return topic[len(prefix):], true
	}
	return "", false
}
