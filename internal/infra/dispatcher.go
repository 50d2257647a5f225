package infra

import (
	"log"
)

// MarketDataDispatcher is responsible for distributing market data from Redis to various consumers.
type MarketDataDispatcher struct {
	wsManager *WsManager
	engine    TickHandler
}

// TickHandler defines the interface for components that need to process market data for trading strategies.
type TickHandler interface {
	OnMarketData(msg MarketMessage)
}

// NewMarketDataDispatcher creates a new dispatcher instance.
func NewMarketDataDispatcher(wsManager *WsManager, engine TickHandler) *MarketDataDispatcher {
	return &MarketDataDispatcher{
		wsManager: wsManager,
		engine:    engine,
	}
}

// Start begins listening to the MarketDataChan and dispatching messages.
// It should be run in a separate goroutine.
func (d *MarketDataDispatcher) Start() {
	log.Println("MarketDataDispatcher: Started listening for market data...")
	for msg := range MarketDataChan {
		// 1. Dispatch to WebSocket Clients (UI)
		d.wsManager.BroadcastMarketData(msg.Symbol, msg.Payload)

		// 2. Dispatch to Engine (fill matching). Done sequentially to keep
		// per-symbol tick ordering; panics are isolated so one bad payload
		// cannot take down the dispatcher.
		d.safeCallEngine(msg)
	}
	log.Println("MarketDataDispatcher: MarketDataChan closed, stopping.")
}

func (d *MarketDataDispatcher) safeCallEngine(msg MarketMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("MarketDataDispatcher: Panic in Engine.OnMarketData: %v", r)
		}
	}()
	d.engine.OnMarketData(msg)
}
