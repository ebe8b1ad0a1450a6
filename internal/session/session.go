// Package session turns provider notifications into a stream of session
// states that observers can follow.
package session

import (
	"sync"
)

// State is either anonymous or authenticated for one uid.
type State struct {
	UID string
}

func Anonymous() State { return State{} }

func Authenticated(uid string) State { return State{UID: uid} }

func (s State) IsAuthenticated() bool { return s.UID != "" }

func (s State) String() string {
	if s.IsAuthenticated() {
		return "authenticated(" + s.UID + ")"
	}
	return "anonymous"
}

// Source is the part of an auth provider the gate depends on.
type Source interface {
	Current() (uid string, ok bool)
	Watch(fn func(uid string)) (unwatch func())
}

// Gate tracks the current session. Observers see every transition, in
// order, and never the same state twice in a row.
type Gate struct {
	mu        sync.Mutex
	state     State
	observers []observer // registration order
	nextID    int
	unwatch   func()

	// notify serializes deliveries so observers see transitions in order.
	notify sync.Mutex
}

type observer struct {
	id int
	fn func(State)
}

// NewGate starts in the source's current session and follows its changes.
func NewGate(src Source) *Gate {
	g := &Gate{}
	if uid, ok := src.Current(); ok {
		g.state = Authenticated(uid)
	}
	g.unwatch = src.Watch(func(uid string) {
		g.set(Authenticated(uid))
	})
	return g
}

// Current returns the session state.
func (g *Gate) Current() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// UID returns the authenticated uid, or false when anonymous.
func (g *Gate) UID() (string, bool) {
	s := g.Current()
	return s.UID, s.IsAuthenticated()
}

// Observe calls fn with the current state, then with every transition.
// Observers are called in registration order.
func (g *Gate) Observe(fn func(State)) (cancel func()) {
	g.notify.Lock()
	defer g.notify.Unlock()

	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.observers = append(g.observers, observer{id: id, fn: fn})
	current := g.state
	g.mu.Unlock()

	fn(current)

	return func() {
		g.mu.Lock()
		g.observers = removeObserver(g.observers, id)
		g.mu.Unlock()
	}
}

// Close stops following the source. Observers keep the last state.
func (g *Gate) Close() {
	g.mu.Lock()
	unwatch := g.unwatch
	g.unwatch = nil
	g.mu.Unlock()
	if unwatch != nil {
		unwatch()
	}
}

func (g *Gate) set(next State) {
	g.notify.Lock()
	defer g.notify.Unlock()

	g.mu.Lock()
	if g.state == next {
		g.mu.Unlock()
		return
	}
	g.state = next
	obs := make([]observer, len(g.observers))
	copy(obs, g.observers)
	g.mu.Unlock()

	for _, o := range obs {
		o.fn(next)
	}
}

func removeObserver(obs []observer, id int) []observer {
	for i, o := range obs {
		if o.id == id {
			return append(obs[:i:i], obs[i+1:]...)
		}
	}
	return obs
}
