package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/lifenippon/apiserver/internal/mq"
)

// fakeBackend is an in-memory queue that delivers published messages
// to the subscriber synchronously.
type fakeBackend struct {
	published []mq.Message
}

func (b *fakeBackend) Publish(_ context.Context, queue string, data []byte, attrs map[string]string) error {
	b.published = append(b.published, mq.Message{ID: queue, Data: data, Attributes: attrs})
	return nil
}

func (b *fakeBackend) Subscribe(ctx context.Context, _ string, handler mq.Handler) error {
	for _, msg := range b.published {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (b *fakeBackend) Close() error { return nil }

var _ mq.Backend = (*fakeBackend)(nil)

type recordingSender struct {
	sent    []Email
	sendErr error
}

func (s *recordingSender) Send(_ context.Context, email Email) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, email)
	return nil
}

func TestQueueSender_PublishesJSONPayload(t *testing.T) {
	backend := &fakeBackend{}
	sender := NewQueueSender(backend, "emails")

	email := Email{To: []string{"alice@example.com"}, Subject: "Hello", HTML: "<p>hi</p>"}
	if err := sender.Send(context.Background(), email); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(backend.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(backend.published))
	}
	var decoded Email
	if err := json.Unmarshal(backend.published[0].Data, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded.Subject != "Hello" || len(decoded.To) != 1 || decoded.To[0] != "alice@example.com" {
		t.Errorf("decoded = %+v", decoded)
	}
	if backend.published[0].Attributes["subject"] != "Hello" {
		t.Errorf("attributes = %v", backend.published[0].Attributes)
	}
}

func TestWorker_DeliversQueuedEmail(t *testing.T) {
	backend := &fakeBackend{}
	if err := NewQueueSender(backend, "emails").Send(context.Background(), Email{
		To:      []string{"alice@example.com"},
		Subject: "Queued",
		HTML:    "<p>hi</p>",
	}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	sender := &recordingSender{}
	worker := NewWorker(backend, "emails", sender, slog.Default())
	if err := worker.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("delivered %d emails, want 1", len(sender.sent))
	}
	if sender.sent[0].Subject != "Queued" {
		t.Errorf("subject = %q", sender.sent[0].Subject)
	}
}

// Malformed payloads and delivery failures are acked, not retried: a
// poison message must not wedge the queue.
func TestWorker_AcksPoisonMessages(t *testing.T) {
	backend := &fakeBackend{
		published: []mq.Message{{ID: "1", Data: []byte("not json")}},
	}
	worker := NewWorker(backend, "emails", &recordingSender{}, slog.Default())
	if err := worker.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil for malformed payload", err)
	}

	backend = &fakeBackend{
		published: []mq.Message{{ID: "2", Data: []byte(`{"to":["a@b.c"],"subject":"x","html":"y"}`)}},
	}
	worker = NewWorker(backend, "emails", &recordingSender{sendErr: errors.New("smtp down")}, slog.Default())
	if err := worker.Run(context.Background()); err != nil {
		t.Errorf("Run() error = %v, want nil for delivery failure", err)
	}
}
