package remote

import (
	"sync"
)

// Hub fans snapshots out to the subscribers of a path.
//
// Each subscription has its own delivery goroutine and a one-slot mailbox:
// a newer event replaces an undelivered older one. Snapshots are full
// replacements, so only the latest one matters. Publishing never blocks.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*hubSubscription]struct{}
}

type hubEvent struct {
	snap Snapshot
	err  error
}

type hubSubscription struct {
	hub      *Hub
	path     string
	listener Listener

	mu      sync.Mutex
	pending *hubEvent
	closed  bool

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*hubSubscription]struct{})}
}

// Subscribe registers l on path and queues initial as its first delivery.
func (h *Hub) Subscribe(path string, l Listener, initial Snapshot) Subscription {
	return h.subscribe(path, l, &hubEvent{snap: Snapshot{Path: path, Children: CloneChildren(initial.Children)}})
}

// SubscribeError registers l on path and queues err as its first delivery.
func (h *Hub) SubscribeError(path string, l Listener, err error) Subscription {
	return h.subscribe(path, l, &hubEvent{err: err})
}

func (h *Hub) subscribe(path string, l Listener, first *hubEvent) Subscription {
	s := &hubSubscription{
		hub:      h,
		path:     path,
		listener: l,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	if h.subs[path] == nil {
		h.subs[path] = make(map[*hubSubscription]struct{})
	}
	h.subs[path][s] = struct{}{}
	h.mu.Unlock()

	s.enqueue(first)
	go s.run()
	return s
}

// Publish queues snap for every subscriber of snap.Path.
func (h *Hub) Publish(snap Snapshot) {
	for _, s := range h.subscribers(snap.Path) {
		s.enqueue(&hubEvent{snap: Snapshot{Path: snap.Path, Children: CloneChildren(snap.Children)}})
	}
}

// PublishError queues err for every subscriber of path.
func (h *Hub) PublishError(path string, err error) {
	for _, s := range h.subscribers(path) {
		s.enqueue(&hubEvent{err: err})
	}
}

// Count returns the number of live subscriptions on path.
func (h *Hub) Count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[path])
}

// CloseAll releases every subscription.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	var all []*hubSubscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()

	for _, s := range all {
		_ = s.Close()
	}
}

func (h *Hub) subscribers(path string) []*hubSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[path]
	out := make([]*hubSubscription, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	return out
}

func (h *Hub) remove(s *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[s.path]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.path)
		}
	}
}

func (s *hubSubscription) enqueue(ev *hubEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = ev
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *hubSubscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		ev := s.pending
		s.pending = nil
		closed := s.closed
		s.mu.Unlock()

		if closed {
			return
		}
		if ev == nil {
			continue
		}
		if ev.err != nil {
			s.listener.OnError(ev.err)
		} else {
			s.listener.OnSnapshot(ev.snap)
		}
	}
}

// Close stops deliveries. An in-flight callback may still be running when
// Close returns, but nothing is delivered after it.
func (s *hubSubscription) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()
		close(s.done)
		s.hub.remove(s)
	})
	return nil
}
