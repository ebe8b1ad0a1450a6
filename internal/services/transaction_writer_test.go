package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gestao/internal/core"
	"gestao/internal/remote"
	"gestao/internal/remote/memory"
)

type fixedSession struct{ uid string }

func (f fixedSession) UID() (string, bool) { return f.uid, f.uid != "" }

type recordingStore struct {
	mu     sync.Mutex
	writes []remote.Child
	paths  []string
	err    error
	n      int
}

func (r *recordingStore) GenerateKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.n++
	return "key-" + strconv.Itoa(r.n)
}

func (r *recordingStore) Write(ctx context.Context, path, key string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	r.writes = append(r.writes, remote.Child{Key: key, Data: data})
	return r.err
}

var fixedNow = func() time.Time { return time.Date(2025, time.March, 7, 15, 4, 0, 0, time.UTC) }

func TestSubmitWritesCommaAmount(t *testing.T) {
	store := &recordingStore{}
	w := NewTransactionWriter(store, fixedSession{uid: "u1"}, nil, WithClock(fixedNow))

	tx, err := w.Submit(context.Background(), Form{
		Description: "Café",
		Amount:      "12,50",
		Kind:        "EXPENSE",
		Category:    "Comida",
	})
	require.NoError(t, err)
	w.Wait()

	assert.Equal(t, int64(1250), tx.Amount.Cents)
	assert.Equal(t, "07/03/2025", tx.Date)
	assert.Equal(t, "key-1", tx.ID)

	require.Len(t, store.writes, 1)
	assert.Equal(t, "users/u1/transactions", store.paths[0])
	assert.Equal(t, "key-1", store.writes[0].Key)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(store.writes[0].Data, &wire))
	assert.Equal(t, 12.5, wire["value"])
	assert.Equal(t, "DESPESA", wire["type"])
	assert.Equal(t, "07/03/2025", wire["date"])
	assert.Equal(t, "key-1", wire["id"])
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name  string
		form  Form
		field string
		want  error
		msg   string
	}{
		{"blank description", Form{Description: "  ", Amount: "10", Category: "Casa"}, "description", core.ErrEmptyDescription, "Preencha todos os campos"},
		{"blank category", Form{Description: "Luz", Amount: "10", Category: ""}, "category", core.ErrEmptyCategory, "Preencha todos os campos"},
		{"bad amount", Form{Description: "Luz", Amount: "abc", Category: "Casa"}, "amount", core.ErrInvalidAmount, "Valor inválido"},
		{"zero amount", Form{Description: "Luz", Amount: "0", Category: "Casa"}, "amount", core.ErrInvalidAmount, "Valor inválido"},
		{"negative amount", Form{Description: "Luz", Amount: "-5", Category: "Casa"}, "amount", core.ErrInvalidAmount, "Valor inválido"},
		{"bad kind", Form{Description: "Luz", Amount: "5", Kind: "GIFT", Category: "Casa"}, "kind", core.ErrInvalidKind, "Tipo inválido"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingStore{}
			w := NewTransactionWriter(store, fixedSession{uid: "u1"}, nil)

			_, err := w.Submit(context.Background(), tt.form)
			w.Wait()

			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.msg, ve.Message())
			assert.Empty(t, store.writes)
			assert.Zero(t, store.n)
		})
	}
}

func TestSubmitDefaultsToExpenseAndAcceptsIncome(t *testing.T) {
	w := NewTransactionWriter(&recordingStore{}, fixedSession{uid: "u1"}, nil)

	tx, err := w.Submit(context.Background(), Form{Description: "Aluguel", Amount: "800", Category: "Casa"})
	require.NoError(t, err)
	assert.Equal(t, core.Expense, tx.Kind)

	tx, err = w.Submit(context.Background(), Form{Description: "Salário", Amount: "5000", Kind: "RECEITA", Category: "Trabalho"})
	require.NoError(t, err)
	assert.Equal(t, core.Income, tx.Kind)
	w.Wait()
}

func TestSubmitRequiresSession(t *testing.T) {
	store := &recordingStore{}
	w := NewTransactionWriter(store, fixedSession{}, nil)

	_, err := w.Submit(context.Background(), Form{Description: "Luz", Amount: "10", Category: "Casa"})
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	w.Wait()
	assert.Empty(t, store.writes)
}

func TestSubmitWriteFailureIsNotReturned(t *testing.T) {
	store := &recordingStore{err: errors.New("network down")}
	w := NewTransactionWriter(store, fixedSession{uid: "u1"}, nil)

	_, err := w.Submit(context.Background(), Form{Description: "Luz", Amount: "10", Category: "Casa"})
	require.NoError(t, err)
	w.Wait()
	assert.Len(t, store.writes, 1)
}

func TestSubmitOutlivesRequestContext(t *testing.T) {
	store := &recordingStore{}
	w := NewTransactionWriter(store, fixedSession{uid: "u1"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := w.Submit(ctx, Form{Description: "Luz", Amount: "10", Category: "Casa"})
	cancel()
	require.NoError(t, err)
	w.Wait()
	assert.Len(t, store.writes, 1)
}

func TestSubmittedTransactionReachesSynchronizer(t *testing.T) {
	store := memory.New()
	sink := newFakeSink()
	s := NewSynchronizer(store, sink, nil)
	defer s.Close()
	require.NoError(t, s.Attach(context.Background(), "u1"))
	require.Empty(t, sink.next(t).txs)

	w := NewTransactionWriter(store, fixedSession{uid: "u1"}, nil, WithClock(fixedNow))
	tx, err := w.Submit(context.Background(), Form{Description: "Café", Amount: "12,50", Category: "Comida"})
	require.NoError(t, err)
	w.Wait()

	ev := sink.next(t)
	require.Len(t, ev.txs, 1)
	assert.Equal(t, tx, ev.txs[0])
}
