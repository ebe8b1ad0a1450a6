package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gestao/internal/core"
	applog "gestao/internal/log"
	"gestao/internal/remote"
)

const defaultWriteTimeout = 10 * time.Second

var ErrNotAuthenticated = errors.New("not authenticated")

// Form is the raw input of the new-transaction form.
type Form struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Kind        string `json:"kind"`
	Category    string `json:"category"`
}

// ValidationError names the form field that failed.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Message is the text shown to the user.
func (e *ValidationError) Message() string {
	switch {
	case errors.Is(e.Err, core.ErrInvalidAmount):
		return "Valor inválido"
	case errors.Is(e.Err, core.ErrInvalidKind):
		return "Tipo inválido"
	default:
		return "Preencha todos os campos"
	}
}

// SessionReader reports the signed-in user.
type SessionReader interface {
	UID() (string, bool)
}

type keyWriter interface {
	remote.KeyGenerator
	remote.Writer
}

// TransactionWriter validates a form and hands the record to the remote
// store without waiting for the write.
type TransactionWriter struct {
	store        keyWriter
	session      SessionReader
	logger       *applog.Logger
	events       *applog.StructuredLogger
	now          func() time.Time
	writeTimeout time.Duration

	wg sync.WaitGroup
}

type WriterOption func(*TransactionWriter)

// WithClock sets the source of the stamped date.
func WithClock(now func() time.Time) WriterOption {
	return func(w *TransactionWriter) { w.now = now }
}

func WithWriteTimeout(d time.Duration) WriterOption {
	return func(w *TransactionWriter) { w.writeTimeout = d }
}

func NewTransactionWriter(store keyWriter, sess SessionReader, logger *applog.Logger, opts ...WriterOption) *TransactionWriter {
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentWriter)
	w := &TransactionWriter{
		store:        store,
		session:      sess,
		logger:       logger,
		events:       applog.NewStructuredLogger(logger),
		now:          time.Now,
		writeTimeout: defaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Validate checks f and returns the transaction it describes, without id
// or date.
func Validate(f Form) (core.Transaction, error) {
	t := core.Transaction{
		Description: strings.TrimSpace(f.Description),
		Category:    strings.TrimSpace(f.Category),
		Kind:        core.Expense,
	}
	if t.Description == "" {
		return core.Transaction{}, &ValidationError{Field: "description", Err: core.ErrEmptyDescription}
	}
	if t.Category == "" {
		return core.Transaction{}, &ValidationError{Field: "category", Err: core.ErrEmptyCategory}
	}
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.Transaction{}, &ValidationError{Field: "amount", Err: err}
	}
	t.Amount = amount
	if strings.TrimSpace(f.Kind) != "" {
		kind, err := core.ParseKind(f.Kind)
		if err != nil {
			return core.Transaction{}, &ValidationError{Field: "kind", Err: err}
		}
		t.Kind = kind
	}
	return t, nil
}

// Submit validates f, assigns a key and today's date, and starts the write.
// The returned transaction is what was handed to the store; a failed write
// is only logged.
func (w *TransactionWriter) Submit(ctx context.Context, f Form) (core.Transaction, error) {
	t, err := Validate(f)
	if err != nil {
		return core.Transaction{}, err
	}
	uid, ok := w.session.UID()
	if !ok {
		return core.Transaction{}, ErrNotAuthenticated
	}

	t.ID = w.store.GenerateKey()
	t.Date = core.FormatDate(w.now())
	data, err := core.EncodeTransaction(t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("encode transaction: %w", err)
	}

	path := remote.TransactionsPath(uid)
	w.events.LogTransactionSubmitted(ctx, uid, t.ID, t.Description, t.Amount.Cents, string(t.Kind), t.Category)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.writeTimeout)
		defer cancel()
		if err := w.store.Write(wctx, path, t.ID, data); err != nil {
			w.events.LogError(wctx, "Failed to write transaction", err, applog.OpWrite,
				applog.NewFields().WithUser(uid).WithTransaction(t.ID, t.Description, t.Amount.Cents, string(t.Kind), t.Category))
		}
	}()

	return t, nil
}

// Wait blocks until every started write has finished.
func (w *TransactionWriter) Wait() {
	w.wg.Wait()
}
