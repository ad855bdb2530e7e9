package state

import (
	"sync"

	"tether/internal/logging"
)

// Store is the single writer of State. Dispatch serializes every transition;
// subscribers get a coalesced signal after each change and read the new
// state with Snapshot.
type Store struct {
	logger logging.Logger

	mu    sync.Mutex
	state State

	subMu  sync.Mutex
	subs   map[int]chan struct{}
	nextID int
}

func NewStore(logger logging.Logger) *Store {
	return &Store{
		logger: logging.OrNop(logger).With(logging.F("component", "state")),
		state:  Initial(),
		subs:   map[int]chan struct{}{},
	}
}

// Dispatch applies a and returns the states before and after it. Actions
// filtered out by InScope return prev == next.
func (s *Store) Dispatch(a Action) (prev, next State) {
	s.mu.Lock()
	prev = s.state
	next, changed := reduce(prev, a, s.logger)
	s.state = next
	s.mu.Unlock()

	if !changed {
		if s.logger.Enabled(logging.Debug) && !InScope(prev, a) {
			s.logger.Debug("action out of scope", logging.F("action", ActionName(a)), logging.F("current", prev.CurrentSessionID()))
		}
		return prev, next
	}
	s.notify()
	return prev, next
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel that receives after state changes. Signals
// coalesce: a slow reader sees one pending signal, not one per change.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
