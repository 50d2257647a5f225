package service

import (
	"context"
	"log"
	"sync"

	"gridtrade.com/internal/domain"
)

// MarketServiceImpl 实现 domain.MarketService 接口
// 引用计数保证同一合约只向网关发一次订阅指令
type MarketServiceImpl struct {
	feedClient domain.FeedClient

	subscriptions map[string]int
	mu            sync.RWMutex
}

// NewMarketService 创建行情服务
func NewMarketService(feedClient domain.FeedClient) *MarketServiceImpl {
	return &MarketServiceImpl{
		feedClient:    feedClient,
		subscriptions: make(map[string]int),
	}
}

// Subscribe 订阅合约行情
func (s *MarketServiceImpl) Subscribe(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscriptions[symbol]++
	isFirst := s.subscriptions[symbol] == 1

	if isFirst {
		log.Printf("MarketService: First subscription for %s, sending to gateway", symbol)
		if err := s.feedClient.Subscribe(ctx, symbol); err != nil {
			s.subscriptions[symbol]--
			return domain.NewInternalError("failed to subscribe", err)
		}
	}

	return nil
}

// Unsubscribe 取消订阅合约行情
func (s *MarketServiceImpl) Unsubscribe(ctx context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscriptions[symbol] > 0 {
		s.subscriptions[symbol]--

		if s.subscriptions[symbol] == 0 {
			log.Printf("MarketService: No more subscribers for %s, unsubscribing from gateway", symbol)
			delete(s.subscriptions, symbol)

			if err := s.feedClient.Unsubscribe(ctx, symbol); err != nil {
				return domain.NewInternalError("failed to unsubscribe", err)
			}
		}
	}

	return nil
}

// GetActiveSymbols 获取当前活跃的订阅合约
func (s *MarketServiceImpl) GetActiveSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.subscriptions))
	for symbol := range s.subscriptions {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// AddExistingSubscription 添加已存在的订阅（用于启动时恢复，只计数不发指令）
func (s *MarketServiceImpl) AddExistingSubscription(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[symbol]++
}

// ResubscribeAll 重新订阅所有活跃合约（网关重连后调用）
func (s *MarketServiceImpl) ResubscribeAll(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log.Printf("MarketService: Resubscribing to %d symbols...", len(s.subscriptions))

	for symbol, count := range s.subscriptions {
		if count > 0 {
			if err := s.feedClient.Subscribe(ctx, symbol); err != nil {
				log.Printf("MarketService: Failed to re-subscribe to %s: %v", symbol, err)
				// Continue with other subscriptions even if one fails
			}
		}
	}
	return nil
}

// 确保实现了接口
var _ domain.MarketService = (*MarketServiceImpl)(nil)
