package infra

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"gridtrade.com/internal/domain"
)

var _ domain.Notifier = (*WsManager)(nil)

// Topic prefixes understood by the hub. Clients subscribe with e.g.
// {"action":"subscribe","topic":"market.NIFTY24DECFUT"} or
// {"action":"subscribe","topic":"strategy.grid_1700000000000"}.
const (
	TopicMarketPrefix   = "market."
	TopicStrategyPrefix = "strategy."
)

// WsManager manages WebSocket connections and topic subscriptions.
//
// 订阅结构:
// map[主题]map[连接对象]存在
// {
// 	"market.BANKNIFTY24DECFUT": { 0xc0000a0100: true, 0xc0000a0280: true },
// 	"strategy.grid_1700000000000": { 0xc0000a0400: true },
// }
type WsManager struct {
	clients       map[*websocket.Conn]bool
	subscriptions map[string]map[*websocket.Conn]bool

	mu sync.RWMutex

	Register    chan *websocket.Conn
	Unregister  chan *websocket.Conn
	Subscribe   chan TopicSubscription
	Unsubscribe chan TopicSubscription

	// sendChannels stores a buffered channel for each client.
	// This helps avoid blocking the engine loop if one client is slow.
	sendChannels map[*websocket.Conn]chan interface{}
}

type TopicSubscription struct {
	Conn  *websocket.Conn
	Topic string
}

// WsEnvelope is the frame sent to clients for topic pushes.
type WsEnvelope struct {
	Topic string      `json:"topic"`
	Data  interface{} `json:"data"`
}

func NewWsManager() *WsManager {
	return &WsManager{
		clients:       make(map[*websocket.Conn]bool),
		subscriptions: make(map[string]map[*websocket.Conn]bool),
		sendChannels:  make(map[*websocket.Conn]chan interface{}),
		Register:      make(chan *websocket.Conn),
		Unregister:    make(chan *websocket.Conn),
		Subscribe:     make(chan TopicSubscription),
		Unsubscribe:   make(chan TopicSubscription),
	}
}

// Start runs the hub event loop. It should be run in a separate goroutine.
func (manager *WsManager) Start() {
	log.Println("WsManager: Starting WebSocket hub...")
	for {
		select {
		case conn := <-manager.Register:
			manager.mu.Lock()
			manager.clients[conn] = true

			// Create a buffered channel for this connection
			sendCh := make(chan interface{}, 256)
			manager.sendChannels[conn] = sendCh

			// Dedicated writer goroutine per connection
			go func(conn *websocket.Conn, ch chan interface{}) {
				for msg := range ch {
					if err := conn.WriteJSON(msg); err != nil {
						// On error, let the connection close and unregister handle it
						log.Printf("WsManager: WriteLoop error: %v", err)
						conn.Close()
						return
					}
				}
			}(conn, sendCh)

			manager.mu.Unlock()
			log.Println("WsManager: New WebSocket client connected")

		case conn := <-manager.Unregister:
			manager.mu.Lock()
			if _, ok := manager.clients[conn]; ok {
				delete(manager.clients, conn)

				// Cleanup send channel
				if ch, exists := manager.sendChannels[conn]; exists {
					close(ch)
					delete(manager.sendChannels, conn)
				}

				// Remove from all topic subscriptions
				for topic, conns := range manager.subscriptions {
					delete(conns, conn)
					if len(conns) == 0 {
						delete(manager.subscriptions, topic)
					}
				}
			}
			manager.mu.Unlock()
			log.Println("WsManager: WebSocket client disconnected")

		case sub := <-manager.Subscribe:
			manager.mu.Lock()
			if manager.subscriptions[sub.Topic] == nil {
				manager.subscriptions[sub.Topic] = make(map[*websocket.Conn]bool)
			}
			manager.subscriptions[sub.Topic][sub.Conn] = true
			manager.mu.Unlock()
			log.Printf("WsManager: Client subscribed to %s", sub.Topic)

		case sub := <-manager.Unsubscribe:
			manager.mu.Lock()
			if conns, ok := manager.subscriptions[sub.Topic]; ok {
				delete(conns, sub.Conn)
				if len(conns) == 0 {
					delete(manager.subscriptions, sub.Topic)
				}
			}
			manager.mu.Unlock()
			log.Printf("WsManager: Client unsubscribed from %s", sub.Topic)
		}
	}
}

// broadcastTopic pushes a message to every subscriber of the topic.
// Slow clients whose buffers are full are skipped, not awaited.
func (manager *WsManager) broadcastTopic(topic string, data interface{}) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	subscribers, ok := manager.subscriptions[topic]
	if !ok {
		return
	}
	msg := WsEnvelope{Topic: topic, Data: data}
	for conn := range subscribers {
		if ch, exists := manager.sendChannels[conn]; exists {
			select {
			case ch <- msg:
			default:
				// Buffer full: drop message for this specific slow client
			}
		}
	}
}

// BroadcastMarketData pushes a raw market tick to "market.<symbol>" subscribers.
func (manager *WsManager) BroadcastMarketData(symbol string, data interface{}) {
	manager.broadcastTopic(TopicMarketPrefix+symbol, data)
}

// BroadcastStrategyUpdate pushes a strategy event (fill, monitoring, status)
// to "strategy.<id>" subscribers.
func (manager *WsManager) BroadcastStrategyUpdate(strategyID string, data interface{}) {
	manager.broadcastTopic(TopicStrategyPrefix+strategyID, data)
}

// BroadcastToAll pushes a message to every connected client regardless of topic.
func (manager *WsManager) BroadcastToAll(data interface{}) {
	manager.mu.RLock()
	defer manager.mu.RUnlock()

	for conn := range manager.clients {
		if ch, exists := manager.sendChannels[conn]; exists {
			select {
			case ch <- data:
			default:
			}
		}
	}
}
