// Package remote describes the hierarchical record store the client syncs
// against: key generation, child writes and whole-subtree subscriptions.
package remote

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidPath = errors.New("invalid record path")
	ErrInvalidKey  = errors.New("invalid record key")
)

type (
	// Child is a single raw record under a path. Data is opaque to the store.
	Child struct {
		Key  string
		Data []byte
	}

	// Snapshot is the full set of children at Path, in insertion order.
	Snapshot struct {
		Path     string
		Children []Child
	}

	// Listener receives subscription notifications in emission order.
	Listener interface {
		OnSnapshot(Snapshot)
		OnError(error)
	}

	// Subscription is a live registration. Close is idempotent.
	Subscription interface {
		Close() error
	}
)

// Ports for the store collaborator.
type (
	KeyGenerator interface {
		// GenerateKey returns a new globally unique, time-ordered key.
		GenerateKey() string
	}

	Writer interface {
		// Write stores data at path/key. Completion means the write is durable
		// for this backend; callers may choose not to wait for it.
		Write(ctx context.Context, path, key string, data []byte) error
	}

	Subscriber interface {
		// Subscribe registers l for snapshots of path. The current snapshot is
		// delivered first, then one per change.
		Subscribe(ctx context.Context, path string, l Listener) (Subscription, error)
	}

	Store interface {
		KeyGenerator
		Writer
		Subscriber
	}
)

// TransactionsPath is the subtree holding a user's transactions.
func TransactionsPath(uid string) string {
	return "users/" + uid + "/transactions"
}

// NewKey returns a UUIDv7 string, so lexical key order follows creation time.
func NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ValidatePath rejects empty paths and empty segments.
func ValidatePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}
	for _, seg := range strings.Split(path, "/") {
		if strings.TrimSpace(seg) == "" {
			return ErrInvalidPath
		}
	}
	return nil
}

// ValidateKey rejects keys that would break path addressing.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.Contains(key, "/") {
		return ErrInvalidKey
	}
	return nil
}

// ListenerFuncs adapts two functions to Listener. Nil funcs are skipped.
type ListenerFuncs struct {
	Snapshot func(Snapshot)
	Error    func(error)
}

func (f ListenerFuncs) OnSnapshot(s Snapshot) {
	if f.Snapshot != nil {
		f.Snapshot(s)
	}
}

func (f ListenerFuncs) OnError(err error) {
	if f.Error != nil {
		f.Error(err)
	}
}

// CloneChildren deep-copies children so snapshots never share buffers.
func CloneChildren(in []Child) []Child {
	out := make([]Child, len(in))
	for i, c := range in {
		out[i] = Child{Key: c.Key, Data: append([]byte(nil), c.Data...)}
	}
	return out
}
