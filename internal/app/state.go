// Package app holds the client state and the only path that changes it:
// events are reduced into a new immutable State, then observers are told.
package app

import (
	"gestao/internal/core"
	"gestao/internal/session"
	"gestao/internal/views"
)

// Notice is a transient user-facing message, e.g. a failed sign-in.
type Notice struct {
	Message string `json:"message"`
}

// State is a snapshot of the client. Values are never mutated after they
// are published; Transactions is newest-first.
type State struct {
	Revision     uint64
	Session      session.State
	Screen       views.Screen
	Transactions []core.Transaction
	Loading      bool
	Notice       *Notice
}

// Initial is the state before any event.
func Initial() State {
	return State{Screen: views.DefaultScreen(), Transactions: []core.Transaction{}}
}

// Event is a state transition. The set is closed.
type Event interface {
	apply(State) (State, bool)
}

type (
	SessionChanged struct {
		Session session.State
	}

	SnapshotApplied struct {
		UID          string
		Transactions []core.Transaction
	}

	SubscriptionFailed struct {
		UID string
		Err error
	}

	ScreenSelected struct {
		Screen views.Screen
	}

	NoticeRaised struct {
		Message string
	}

	NoticeCleared struct{}
)

// Reduce returns the state after ev and whether anything changed. The
// revision only advances on change.
func Reduce(s State, ev Event) (State, bool) {
	next, changed := ev.apply(s)
	if !changed {
		return s, false
	}
	next.Revision = s.Revision + 1
	return next, true
}

func (e SessionChanged) apply(s State) (State, bool) {
	if s.Session == e.Session {
		return s, false
	}
	s.Session = e.Session
	s.Transactions = []core.Transaction{}
	s.Loading = e.Session.IsAuthenticated()
	s.Notice = nil
	s.Screen = views.DefaultScreen()
	return s, true
}

func (e SnapshotApplied) apply(s State) (State, bool) {
	if s.Session.UID == "" || s.Session.UID != e.UID {
		return s, false
	}
	s.Transactions = append(make([]core.Transaction, 0, len(e.Transactions)), e.Transactions...)
	s.Loading = false
	return s, true
}

// Last known transactions are kept.
func (e SubscriptionFailed) apply(s State) (State, bool) {
	if s.Session.UID == "" || s.Session.UID != e.UID || !s.Loading {
		return s, false
	}
	s.Loading = false
	return s, true
}

func (e ScreenSelected) apply(s State) (State, bool) {
	if e.Screen == nil || s.Screen == e.Screen {
		return s, false
	}
	s.Screen = e.Screen
	return s, true
}

func (e NoticeRaised) apply(s State) (State, bool) {
	s.Notice = &Notice{Message: e.Message}
	return s, true
}

func (NoticeCleared) apply(s State) (State, bool) {
	if s.Notice == nil {
		return s, false
	}
	s.Notice = nil
	return s, true
}
