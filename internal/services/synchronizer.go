package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gestao/internal/core"
	applog "gestao/internal/log"
	"gestao/internal/remote"
	"gestao/internal/session"
)

var ErrSynchronizerClosed = errors.New("synchronizer closed")

// SyncSink receives the outcome of a user's subscription.
type SyncSink interface {
	SnapshotApplied(uid string, txs []core.Transaction)
	SubscriptionFailed(uid string, err error)
}

// Synchronizer keeps at most one live subscription, for the signed-in user,
// and pushes each decoded snapshot to the sink.
type Synchronizer struct {
	remote remote.Subscriber
	sink   SyncSink
	logger *applog.Logger
	events *applog.StructuredLogger

	mu     sync.Mutex
	uid    string
	gen    uint64
	sub    remote.Subscription
	closed bool
}

func NewSynchronizer(sub remote.Subscriber, sink SyncSink, logger *applog.Logger) *Synchronizer {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentSynchronizer)
	return &Synchronizer{
		remote: sub,
		sink:   sink,
		logger: logger,
		events: applog.NewStructuredLogger(logger),
	}
}

// Attach subscribes to uid's transactions, releasing any previous
// subscription first. Attaching the already attached uid is a no-op.
// A subscribe failure is reported to the sink and returned.
func (s *Synchronizer) Attach(ctx context.Context, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSynchronizerClosed
	}
	if s.sub != nil && s.uid == uid {
		return nil
	}
	s.releaseLocked(ctx)

	s.gen++
	s.uid = uid
	path := remote.TransactionsPath(uid)
	l := &syncListener{s: s, gen: s.gen, uid: uid, path: path}

	sub, err := s.remote.Subscribe(ctx, path, l)
	if err != nil {
		s.sink.SubscriptionFailed(uid, err)
		return fmt.Errorf("subscribe %s: %w", path, err)
	}
	s.sub = sub

	s.logger.InfoContext(ctx, "Subscribed to transactions",
		applog.FieldUserID, uid,
		applog.FieldOperation, applog.OpSubscribe)
	return nil
}

// Release drops the current subscription, if any. No snapshot reaches the
// sink after Release returns.
func (s *Synchronizer) Release(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(ctx)
}

// OnSessionChange follows the session gate.
func (s *Synchronizer) OnSessionChange(st session.State) {
	ctx := context.Background()
	if !st.IsAuthenticated() {
		s.Release(ctx)
		return
	}
	if err := s.Attach(ctx, st.UID); err != nil {
		s.logger.WarnContext(ctx, "Subscription failed",
			applog.FieldUserID, st.UID,
			applog.FieldError, err)
	}
}

// SessionFollower is a state holder that must learn about a session change
// before that user's first snapshot arrives.
type SessionFollower interface {
	OnSessionChange(session.State)
}

// FollowSession registers state and then s on gate. The gate calls
// observers in registration order, so a snapshot for a newly signed-in user
// always lands on a state that already holds that user.
func FollowSession(gate *session.Gate, state SessionFollower, s *Synchronizer) (cancel func()) {
	cancelState := gate.Observe(state.OnSessionChange)
	cancelSync := gate.Observe(s.OnSessionChange)
	return func() {
		cancelSync()
		cancelState()
	}
}

// Close releases the subscription and refuses further attaches.
func (s *Synchronizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(context.Background())
	s.closed = true
	return nil
}

// Attached returns the uid with a live subscription.
func (s *Synchronizer) Attached() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uid, s.sub != nil
}

func (s *Synchronizer) releaseLocked(ctx context.Context) {
	// Bumping gen discards callbacks already in flight.
	s.gen++
	if s.sub == nil {
		s.uid = ""
		return
	}
	if err := s.sub.Close(); err != nil {
		s.logger.WarnContext(ctx, "Failed to close subscription",
			applog.FieldUserID, s.uid,
			applog.FieldError, err)
	}
	s.logger.InfoContext(ctx, "Released subscription",
		applog.FieldUserID, s.uid,
		applog.FieldOperation, applog.OpRelease)
	s.sub = nil
	s.uid = ""
}

func (s *Synchronizer) applySnapshot(l *syncListener, snap remote.Snapshot) {
	txs, dropped := DecodeSnapshot(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	if l.gen != s.gen {
		return
	}
	ctx := context.Background()
	for _, d := range dropped {
		s.logger.DebugContext(ctx, "Dropped malformed record",
			applog.FieldRecordPath, l.path,
			applog.FieldRecordKey, d.Key,
			applog.FieldError, d.Err,
			applog.FieldOperation, applog.OpDecode)
	}
	s.events.LogSnapshotApplied(ctx, l.uid, l.path, len(snap.Children), len(dropped))
	s.sink.SnapshotApplied(l.uid, txs)
}

func (s *Synchronizer) applyError(l *syncListener, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.gen != s.gen {
		return
	}
	s.logger.WarnContext(context.Background(), "Subscription error",
		applog.FieldUserID, l.uid,
		applog.FieldError, err)
	s.sink.SubscriptionFailed(l.uid, err)
}

type syncListener struct {
	s    *Synchronizer
	gen  uint64
	uid  string
	path string
}

func (l *syncListener) OnSnapshot(snap remote.Snapshot) { l.s.applySnapshot(l, snap) }
func (l *syncListener) OnError(err error)               { l.s.applyError(l, err) }

// DecodeFailure is a child that could not become a Transaction.
type DecodeFailure struct {
	Key string
	Err error
}

// DecodeSnapshot decodes every child and returns the valid ones newest-first.
// Undecodable children are reported in dropped and otherwise ignored.
func DecodeSnapshot(snap remote.Snapshot) (txs []core.Transaction, dropped []DecodeFailure) {
	decoded := make([]core.Transaction, 0, len(snap.Children))
	for _, c := range snap.Children {
		t, err := core.DecodeTransaction(c.Key, c.Data)
		if err != nil {
			dropped = append(dropped, DecodeFailure{Key: c.Key, Err: err})
			continue
		}
		decoded = append(decoded, t)
	}
	return core.Reversed(decoded), dropped
}
