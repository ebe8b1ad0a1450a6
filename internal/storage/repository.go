// Package storage is the SQLite-backed remote store and user store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gestao/internal/auth"
	applog "gestao/internal/log"
	"gestao/internal/remote"

	_ "modernc.org/sqlite"
)

// ChangeNotifier announces a committed write to other processes.
type ChangeNotifier interface {
	PublishChange(ctx context.Context, path, key string) error
}

type SQLiteRepository struct {
	db       *sql.DB
	hub      *remote.Hub
	notifier ChangeNotifier
	logger   *applog.Logger
	keys     func() string

	// publishMu orders snapshot reads with their delivery to the hub.
	publishMu sync.Mutex
}

var (
	_ remote.Store   = (*SQLiteRepository)(nil)
	_ auth.UserStore = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string, logger *applog.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer keeps seq order equal to commit order.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = applog.Discard()
	}

	return &SQLiteRepository{
		db:     db,
		hub:    remote.NewHub(),
		logger: logger.WithComponent(applog.ComponentStorage),
		keys:   remote.NewKey,
	}, nil
}

// SetNotifier installs the cross-process change publisher.
func (r *SQLiteRepository) SetNotifier(n ChangeNotifier) {
	r.notifier = n
}

func (r *SQLiteRepository) Close() error {
	r.hub.CloseAll()
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) GenerateKey() string {
	return r.keys()
}

// Write upserts path/key, then refreshes local subscribers and announces the
// change. A failed announcement is logged and does not fail the write.
func (r *SQLiteRepository) Write(ctx context.Context, path, key string, data []byte) error {
	if err := remote.ValidatePath(path); err != nil {
		return err
	}
	if err := remote.ValidateKey(key); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO records (path, key, data) VALUES (?, ?, ?)
		ON CONFLICT (path, key) DO UPDATE SET data = excluded.data`,
		path, key, data)
	if err != nil {
		return fmt.Errorf("write record %s/%s: %w", path, key, err)
	}

	r.logger.DebugContext(ctx, "Record written",
		applog.FieldRecordPath, path,
		applog.FieldRecordKey, key,
		applog.FieldSizeBytes, len(data))

	if err := r.Refresh(ctx, path); err != nil {
		r.logger.WarnContext(ctx, "Failed to refresh subscribers after write",
			applog.FieldRecordPath, path,
			applog.FieldError, err)
	}

	if r.notifier != nil {
		if err := r.notifier.PublishChange(ctx, path, key); err != nil {
			r.logger.ErrorContext(ctx, "Failed to publish change",
				applog.FieldRecordPath, path,
				applog.FieldRecordKey, key,
				applog.FieldError, err)
		}
	}
	return nil
}

// Snapshot returns the children of path in insertion order.
func (r *SQLiteRepository) Snapshot(ctx context.Context, path string) (remote.Snapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT key, data FROM records WHERE path = ? ORDER BY seq`, path)
	if err != nil {
		return remote.Snapshot{}, fmt.Errorf("query records %s: %w", path, err)
	}
	defer rows.Close()

	snap := remote.Snapshot{Path: path, Children: []remote.Child{}}
	for rows.Next() {
		var c remote.Child
		if err := rows.Scan(&c.Key, &c.Data); err != nil {
			return remote.Snapshot{}, fmt.Errorf("scan record: %w", err)
		}
		snap.Children = append(snap.Children, c)
	}
	if err := rows.Err(); err != nil {
		return remote.Snapshot{}, fmt.Errorf("iterate records: %w", err)
	}
	return snap, nil
}

// Subscribe delivers the stored snapshot of path, then one per change. If
// the initial read fails the error is delivered to l instead.
func (r *SQLiteRepository) Subscribe(ctx context.Context, path string, l remote.Listener) (remote.Subscription, error) {
	if err := remote.ValidatePath(path); err != nil {
		return nil, err
	}
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	snap, err := r.Snapshot(ctx, path)
	if err != nil {
		return r.hub.SubscribeError(path, l, err), nil
	}
	return r.hub.Subscribe(path, l, snap), nil
}

// Refresh re-reads path and pushes it to local subscribers. It is a no-op
// when nobody is listening.
func (r *SQLiteRepository) Refresh(ctx context.Context, path string) error {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()
	if r.hub.Count(path) == 0 {
		return nil
	}
	snap, err := r.Snapshot(ctx, path)
	if err != nil {
		r.hub.PublishError(path, err)
		return err
	}
	r.hub.Publish(snap)
	return nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u auth.User) error {
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, created)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return auth.ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	r.logger.InfoContext(ctx, "User created", applog.FieldUserID, u.ID)
	return nil
}

func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	var u auth.User
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}
