package app

import (
	"context"
	"sync"

	"gestao/internal/core"
	applog "gestao/internal/log"
	"gestao/internal/session"
)

// Store serializes events and publishes each resulting state.
type Store struct {
	mu        sync.Mutex
	state     State
	observers []observer // registration order
	nextID    int
	logger    *applog.Logger

	// notify keeps observer deliveries in revision order.
	notify sync.Mutex
}

type observer struct {
	id int
	fn func(State)
}

func NewStore(logger *applog.Logger) *Store {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Store{
		state:  Initial(),
		logger: logger.WithComponent(applog.ComponentApp),
	}
}

// State returns the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies ev. Observers run after the lock is released.
func (s *Store) Dispatch(ev Event) State {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	next, changed := Reduce(s.state, ev)
	if !changed {
		s.mu.Unlock()
		return next
	}
	s.state = next
	obs := make([]observer, len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()

	s.logger.DebugContext(context.Background(), "State changed",
		applog.FieldStateRevision, next.Revision,
		applog.FieldUserID, next.Session.UID)

	for _, o := range obs {
		o.fn(next)
	}
	return next
}

// Observe calls fn for every new state and returns a cancel func.
// Observers are called in registration order.
func (s *Store) Observe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
	}
}

// OnSessionChange follows the session gate.
func (s *Store) OnSessionChange(st session.State) {
	s.Dispatch(SessionChanged{Session: st})
}

// SnapshotApplied makes the store a synchronizer sink.
func (s *Store) SnapshotApplied(uid string, txs []core.Transaction) {
	s.Dispatch(SnapshotApplied{UID: uid, Transactions: txs})
}

func (s *Store) SubscriptionFailed(uid string, err error) {
	s.Dispatch(SubscriptionFailed{UID: uid, Err: err})
}
