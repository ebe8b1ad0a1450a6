package memory

import (
	"context"
	"sync"

	"gestao/internal/remote"
)

type node struct {
	order []string
	data  map[string][]byte
}

// Store is an in-process remote.Store. Children keep insertion order and a
// rewrite of an existing key keeps its original position.
type Store struct {
	mu    sync.Mutex
	nodes map[string]*node
	hub   *remote.Hub
	keys  func() string
}

var _ remote.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		nodes: make(map[string]*node),
		hub:   remote.NewHub(),
		keys:  remote.NewKey,
	}
}

// GenerateKey returns a new time-ordered key.
func (s *Store) GenerateKey() string {
	return s.keys()
}

// Write stores the child and notifies subscribers of path.
func (s *Store) Write(ctx context.Context, path, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := remote.ValidatePath(path); err != nil {
		return err
	}
	if err := remote.ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.nodes[path]
	if n == nil {
		n = &node{data: make(map[string][]byte)}
		s.nodes[path] = n
	}
	if _, exists := n.data[key]; !exists {
		n.order = append(n.order, key)
	}
	n.data[key] = append([]byte(nil), data...)

	// Publish under the lock so subscribers see writes in commit order.
	s.hub.Publish(s.snapshotLocked(path))
	return nil
}

// Subscribe delivers the current snapshot of path, then one per write.
func (s *Store) Subscribe(ctx context.Context, path string, l remote.Listener) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := remote.ValidatePath(path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hub.Subscribe(path, l, s.snapshotLocked(path)), nil
}

// Fail reports err to every subscriber of path, e.g. a revoked permission.
func (s *Store) Fail(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hub.PublishError(path, err)
}

// Snapshot returns the current children of path.
func (s *Store) Snapshot(path string) remote.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(path)
}

// Subscribers returns the number of live subscriptions on path.
func (s *Store) Subscribers(path string) int {
	return s.hub.Count(path)
}

// Close releases every subscription.
func (s *Store) Close() error {
	s.hub.CloseAll()
	return nil
}

func (s *Store) snapshotLocked(path string) remote.Snapshot {
	snap := remote.Snapshot{Path: path}
	n := s.nodes[path]
	if n == nil {
		return snap
	}
	snap.Children = make([]remote.Child, 0, len(n.order))
	for _, k := range n.order {
		snap.Children = append(snap.Children, remote.Child{Key: k, Data: append([]byte(nil), n.data[k]...)})
	}
	return snap
}
