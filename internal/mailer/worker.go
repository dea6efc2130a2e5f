package mailer

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rs/zerolog"

	"noyel/internal/metrics"
	"noyel/pkg/bus"
	"noyel/pkg/mail"
)

const (
	workerMaxDeliver = 10
	workerRetryDelay = 30 * time.Second
)

// Subscriber creates durable consumers; *bus.Bus implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, subj, durable string, opts bus.SubscribeOptions, fn func(ctx context.Context, data []byte) error) (io.Closer, error)
}

// Worker sends the messages queued by QueueOutbox.
type Worker struct {
	sub     Subscriber
	sender  mail.Sender
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewWorker(sub Subscriber, sender mail.Sender, m *metrics.Metrics, logger zerolog.Logger) *Worker {
	return &Worker{sub: sub, sender: sender, metrics: m, log: logger}
}

// Run consumes the queue until ctx ends.
func (w *Worker) Run(ctx context.Context) error {
	closer, err := w.sub.Subscribe(ctx, Subject, Durable, bus.SubscribeOptions{
		MaxDeliver: workerMaxDeliver,
		RetryDelay: workerRetryDelay,
	}, w.Handle)
	if err != nil {
		return err
	}
	w.log.Info().Str("subject", Subject).Str("durable", Durable).Msg("mail worker started")

	<-ctx.Done()
	return closer.Close()
}

// Handle sends one queued message. Malformed payloads are dropped; send
// failures are returned so the message is redelivered.
func (w *Worker) Handle(ctx context.Context, data []byte) error {
	var msg mail.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		w.log.Error().Err(err).Msg("drop malformed mail message")
		return nil
	}
	if err := msg.Validate(); err != nil {
		w.log.Error().Err(err).Str("template", msg.Template).Msg("drop invalid mail message")
		return nil
	}

	ctx = w.log.WithContext(ctx)
	if err := w.sender.Send(ctx, msg); err != nil {
		w.metrics.ObserveMail(msg.Template, metrics.OutcomeFailed)
		w.log.Warn().Err(err).Str("template", msg.Template).Str("to", msg.To).Msg("send queued mail")
		return err
	}
	w.metrics.ObserveMail(msg.Template, metrics.OutcomeSent)
	w.log.Debug().Str("template", msg.Template).Str("to", msg.To).Msg("queued mail sent")
	return nil
}
