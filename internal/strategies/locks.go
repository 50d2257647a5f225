package strategies

import "sync"

// StrategyLocks provides a mutex per strategy ID so that fill processing and
// stop-live for the same strategy always serialize, while unrelated
// strategies proceed in parallel.
//
// 锁条目不回收：策略数量有限（单例约束下通常只有个位数），泄漏可忽略。
type StrategyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStrategyLocks() *StrategyLocks {
	return &StrategyLocks{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for the given strategy, creating it on first use.
func (s *StrategyLocks) Lock(strategyID string) {
	s.get(strategyID).Lock()
}

// Unlock releases the mutex for the given strategy.
func (s *StrategyLocks) Unlock(strategyID string) {
	s.get(strategyID).Unlock()
}

func (s *StrategyLocks) get(strategyID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[strategyID]
	if !ok {
		m = &sync.Mutex{}
		s.locks[strategyID] = m
	}
	return m
}
