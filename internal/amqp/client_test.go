package amqp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"

	applog "gestao/internal/log"
)

type ackRecord struct {
	tag     uint64
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	records []ackRecord
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, ack: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ackRecord{tag: tag, requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func testClient() *Client {
	return &Client{origin: "self", logger: applog.Discard()}
}

func delivery(ack amqp091.Acknowledger, tag uint64, body string, redelivered bool) amqp091.Delivery {
	return amqp091.Delivery{Acknowledger: ack, DeliveryTag: tag, Body: []byte(body), Redelivered: redelivered}
}

func TestChangeMessageFromJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"path":"users/u/transactions","key":"k","origin":"o"}`, false},
		{"missing key", `{"path":"users/u/transactions"}`, true},
		{"missing path", `{"key":"k"}`, true},
		{"not json", `nope`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ChangeMessageFromJSON([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && (msg.Path != "users/u/transactions" || msg.Key != "k") {
				t.Errorf("unexpected message %+v", msg)
			}
		})
	}
}

func TestHandleDeliveries(t *testing.T) {
	ack := &fakeAcknowledger{}
	c := testClient()

	var handled []string
	handler := func(ctx context.Context, msg *ChangeMessage) error {
		handled = append(handled, msg.Key)
		if msg.Key == "fail" {
			return errors.New("refresh failed")
		}
		return nil
	}

	msgs := make(chan amqp091.Delivery, 8)
	msgs <- delivery(ack, 1, `{"path":"p/q","key":"ok","origin":"other"}`, false)
	msgs <- delivery(ack, 2, `{"path":"p/q","key":"own","origin":"self"}`, false)
	msgs <- delivery(ack, 3, `garbage`, false)
	msgs <- delivery(ack, 4, `{"path":"p/q","key":"fail","origin":"other"}`, false)
	msgs <- delivery(ack, 5, `{"path":"p/q","key":"fail","origin":"other"}`, true)
	close(msgs)

	err := c.handleDeliveries(context.Background(), msgs, handler)
	if err == nil {
		t.Fatal("expected error when channel closes")
	}

	if len(handled) != 3 || handled[0] != "ok" || handled[1] != "fail" || handled[2] != "fail" {
		t.Fatalf("handled = %v", handled)
	}

	want := []ackRecord{
		{tag: 1, ack: true},
		{tag: 2, ack: true},
		{tag: 3, requeue: false},
		{tag: 4, requeue: true},
		{tag: 5, requeue: false},
	}
	if len(ack.records) != len(want) {
		t.Fatalf("records = %+v", ack.records)
	}
	for i := range want {
		if ack.records[i] != want[i] {
			t.Errorf("record %d = %+v, want %+v", i, ack.records[i], want[i])
		}
	}
}

func TestHandleDeliveriesStopsOnContext(t *testing.T) {
	c := testClient()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.handleDeliveries(ctx, make(chan amqp091.Delivery), func(context.Context, *ChangeMessage) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}
