package strategies

import (
	"container/heap"
	"sync"
	"time"
)

// Schedule is a thread-safe priority queue of strategy firings ordered by
// next fire time. A single scheduler loop peeks the earliest entry, sleeps
// until it is due and pops it; Upsert/Remove wake the loop so newly started
// strategies never wait behind a long sleep.
type Schedule struct {
	mu    sync.Mutex
	items scheduleHeap
	byID  map[string]*scheduleItem
	wake  chan struct{}
}

type scheduleItem struct {
	strategyID string
	fireAt     time.Time
	index      int
}

func NewSchedule() *Schedule {
	return &Schedule{
		byID: make(map[string]*scheduleItem),
		wake: make(chan struct{}, 1),
	}
}

// Upsert inserts the strategy or moves its fire time.
func (s *Schedule) Upsert(strategyID string, fireAt time.Time) {
	s.mu.Lock()
	if it, ok := s.byID[strategyID]; ok {
		it.fireAt = fireAt
		heap.Fix(&s.items, it.index)
	} else {
		it := &scheduleItem{strategyID: strategyID, fireAt: fireAt}
		heap.Push(&s.items, it)
		s.byID[strategyID] = it
	}
	s.mu.Unlock()
	s.notify()
}

// Remove drops the strategy from the schedule if present.
func (s *Schedule) Remove(strategyID string) {
	s.mu.Lock()
	if it, ok := s.byID[strategyID]; ok {
		heap.Remove(&s.items, it.index)
		delete(s.byID, strategyID)
	}
	s.mu.Unlock()
	s.notify()
}

// Peek returns the earliest fire time without removing the entry.
func (s *Schedule) Peek() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items.Len() == 0 {
		return time.Time{}, false
	}
	return s.items[0].fireAt, true
}

// PopDue removes and returns the earliest entry if it is due at `now`.
func (s *Schedule) PopDue(now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items.Len() == 0 || s.items[0].fireAt.After(now) {
		return "", false
	}
	it := heap.Pop(&s.items).(*scheduleItem)
	delete(s.byID, it.strategyID)
	return it.strategyID, true
}

// Len returns the number of scheduled strategies.
func (s *Schedule) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Len()
}

// Wake exposes the wakeup channel for the scheduler loop's select.
func (s *Schedule) Wake() <-chan struct{} {
	return s.wake
}

func (s *Schedule) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ---- heap.Interface ----

type scheduleHeap []*scheduleItem

func (h scheduleHeap) Len() int            { return len(h) }
func (h scheduleHeap) Less(i, j int) bool  { return h[i].fireAt.Before(h[j].fireAt) }
func (h scheduleHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *scheduleHeap) Push(x interface{}) {
	it := x.(*scheduleItem)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *scheduleHeap) Pop() interface{} {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
