package status

import (
	"sort"
	"sync"

	"github.com/hamed0406/keepwarm/internal/domain"
)

const DefaultCapacity = 100

// Store keeps a bounded, chronological history of ping outcomes per target.
// Each history has a single writer (the target's worker); readers always get
// copies.
type Store struct {
	capacity int

	mu        sync.RWMutex
	histories map[domain.TargetID]*history

	subMu   sync.Mutex
	subs    map[int]chan domain.PingOutcome
	nextSub int
}

func New(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity:  capacity,
		histories: make(map[domain.TargetID]*history),
		subs:      make(map[int]chan domain.PingOutcome),
	}
}

func (s *Store) Capacity() int { return s.capacity }

// Track creates an empty history for id if none exists.
func (s *Store) Track(id domain.TargetID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.histories[id]; !ok {
		s.histories[id] = &history{buf: make([]domain.PingOutcome, 0, s.capacity)}
	}
}

// Drop forgets the history of id.
func (s *Store) Drop(id domain.TargetID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, id)
}

// Append records o in the history of o.TargetID and publishes it to
// subscribers. It returns false if the target is not tracked.
func (s *Store) Append(o domain.PingOutcome) bool {
	h := s.get(o.TargetID)
	if h == nil {
		return false
	}
	h.append(o, s.capacity)
	s.publish(o)
	return true
}

// History returns up to limit of the most recent outcomes for id, oldest
// first. limit <= 0 means the whole history.
func (s *Store) History(id domain.TargetID, limit int) ([]domain.PingOutcome, bool) {
	h := s.get(id)
	if h == nil {
		return nil, false
	}
	out := h.snapshot()
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, true
}

func (s *Store) Latest(id domain.TargetID) (domain.PingOutcome, bool) {
	h := s.get(id)
	if h == nil {
		return domain.PingOutcome{}, false
	}
	return h.latest()
}

func (s *Store) Len(id domain.TargetID) int {
	h := s.get(id)
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.buf)
}

// Recent returns the last n outcomes across all targets ordered by timestamp.
func (s *Store) Recent(n int) []domain.PingOutcome {
	s.mu.RLock()
	hs := make([]*history, 0, len(s.histories))
	for _, h := range s.histories {
		hs = append(hs, h)
	}
	s.mu.RUnlock()

	var all []domain.PingOutcome
	for _, h := range hs {
		all = append(all, h.snapshot()...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// Subscribe returns a channel receiving every appended outcome. Outcomes are
// dropped for a subscriber whose buffer is full. The returned func
// unsubscribes and closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan domain.PingOutcome, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan domain.PingOutcome, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish(o domain.PingOutcome) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- o:
		default:
		}
	}
}

func (s *Store) get(id domain.TargetID) *history {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.histories[id]
}

// history is a fixed-capacity ring. Once full, next points at the oldest entry.
type history struct {
	mu   sync.RWMutex
	buf  []domain.PingOutcome
	next int
}

func (h *history) append(o domain.PingOutcome, capacity int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buf) < capacity {
		h.buf = append(h.buf, o)
		return
	}
	h.buf[h.next] = o
	h.next = (h.next + 1) % capacity
}

func (h *history) snapshot() []domain.PingOutcome {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]domain.PingOutcome, 0, len(h.buf))
	out = append(out, h.buf[h.next:]...)
	out = append(out, h.buf[:h.next]...)
	return out
}

func (h *history) latest() (domain.PingOutcome, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.buf) == 0 {
		return domain.PingOutcome{}, false
	}
	i := h.next - 1
	if i < 0 {
		i = len(h.buf) - 1
	}
	return h.buf[i], true
}
