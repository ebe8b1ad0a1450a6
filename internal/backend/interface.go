package backend

import (
	"context"

	"gestao/internal/auth"
	"gestao/internal/remote"
)

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// BackendResult is everything the application needs from a backend.
type BackendResult struct {
	Store remote.Store
	Users auth.UserStore
	// Ready reports whether the backend can serve requests.
	Ready func(ctx context.Context) error
	// Consume applies changes made by other processes until ctx ends. Nil
	// when the backend has no cross-process fan-out.
	Consume func(ctx context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Optional change fan-out, sqlite only
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
