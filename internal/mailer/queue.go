package mailer

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/lifenippon/apiserver/internal/mq"
)

// QueueSender publishes email payloads to the mail queue instead of
// delivering inline. A mail worker consumes the queue and delivers
// over SMTP.
type QueueSender struct {
	backend mq.Backend
	queue   string
}

func NewQueueSender(backend mq.Backend, queue string) *QueueSender {
	return &QueueSender{backend: backend, queue: queue}
}

func (s *QueueSender) Send(ctx context.Context, email Email) error {
	data, err := json.Marshal(email)
	if err != nil {
		return err
	}
	return s.backend.Publish(ctx, s.queue, data, map[string]string{"subject": email.Subject})
}

// Worker consumes the mail queue and delivers each message over the
// wrapped sender. Delivery failures are logged and the message is
// acked anyway: email is best effort and a poison message must not
// wedge the queue.
type Worker struct {
	backend mq.Backend
	queue   string
	sender  Sender
	logger  *slog.Logger
}

func NewWorker(backend mq.Backend, queue string, sender Sender, logger *slog.Logger) *Worker {
	return &Worker{backend: backend, queue: queue, sender: sender, logger: logger}
}

// Run blocks consuming the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.backend.Subscribe(ctx, w.queue, func(ctx context.Context, msg mq.Message) error {
		var email Email
		if err := json.Unmarshal(msg.Data, &email); err != nil {
			w.logger.Error("discarding malformed mail payload", "id", msg.ID, "err", err)
			return nil
		}
		if err := w.sender.Send(ctx, email); err != nil {
			w.logger.Error("problem sending email", "id", msg.ID, "subject", email.Subject, "err", err)
			return nil
		}
		w.logger.Info("message sent", "id", msg.ID, "subject", email.Subject)
		return nil
	})
}
