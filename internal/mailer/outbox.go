// Package mailer composes noyel's notification emails and routes them to SMTP,
// either directly or through the NATS mail queue.
package mailer

import (
	"context"
	"fmt"

	"noyel/internal/metrics"
	"noyel/pkg/mail"
)

const (
	// Subject is the NATS subject carrying queued messages.
	Subject = "noyel.mail.outbound"
	// StreamName is the JetStream stream holding Subject.
	StreamName = "NOYEL_MAIL"
	// Durable names the consumer shared by mail workers.
	Durable = "noyel-mailer"
)

// Outbox accepts rendered messages for delivery.
type Outbox interface {
	Deliver(ctx context.Context, msg mail.Message) error
}

// DirectOutbox sends each message synchronously.
type DirectOutbox struct {
	sender  mail.Sender
	metrics *metrics.Metrics
}

func NewDirectOutbox(sender mail.Sender, m *metrics.Metrics) *DirectOutbox {
	return &DirectOutbox{sender: sender, metrics: m}
}

func (o *DirectOutbox) Deliver(ctx context.Context, msg mail.Message) error {
	if err := o.sender.Send(ctx, msg); err != nil {
		o.metrics.ObserveMail(msg.Template, metrics.OutcomeFailed)
		return err
	}
	o.metrics.ObserveMail(msg.Template, metrics.OutcomeSent)
	return nil
}

// Publisher publishes a JSON-encoded value; *bus.Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// QueueOutbox hands messages to the mail queue for a Worker to send.
type QueueOutbox struct {
	pub     Publisher
	metrics *metrics.Metrics
}

func NewQueueOutbox(pub Publisher, m *metrics.Metrics) *QueueOutbox {
	return &QueueOutbox{pub: pub, metrics: m}
}

func (o *QueueOutbox) Deliver(ctx context.Context, msg mail.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := o.pub.Publish(ctx, Subject, msg); err != nil {
		o.metrics.ObserveMail(msg.Template, metrics.OutcomeFailed)
		return fmt.Errorf("queue mail: %w", err)
	}
	o.metrics.ObserveMail(msg.Template, metrics.OutcomeQueued)
	return nil
}
