// Package metrics defines the Prometheus collectors exported by noyel.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mail delivery outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeQueued = "queued"
	OutcomeFailed = "failed"
)

// Metrics groups the application counters.
type Metrics struct {
	InvitationsCreated  prometheus.Counter
	InvitationsRedeemed prometheus.Counter
	EmailsVerified      prometheus.Counter
	MailSent            *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		InvitationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "noyel",
			Name:      "invitations_created_total",
			Help:      "Invitations created for email addresses.",
		}),
		InvitationsRedeemed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "noyel",
			Name:      "invitations_redeemed_total",
			Help:      "Invitations redeemed.",
		}),
		EmailsVerified: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "noyel",
			Name:      "emails_verified_total",
			Help:      "Email addresses verified.",
		}),
		MailSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noyel",
			Name:      "mail_messages_total",
			Help:      "Outbound email messages by template and outcome.",
		}, []string{"template", "outcome"}),
	}
}

// ObserveMail counts one message. A nil receiver is a no-op.
func (m *Metrics) ObserveMail(template, outcome string) {
	if m == nil {
		return
	}
	m.MailSent.WithLabelValues(template, outcome).Inc()
}

func (m *Metrics) InvitationCreated() {
	if m != nil {
		m.InvitationsCreated.Inc()
	}
}

func (m *Metrics) InvitationRedeemed() {
	if m != nil {
		m.InvitationsRedeemed.Inc()
	}
}

func (m *Metrics) EmailVerified() {
	if m != nil {
		m.EmailsVerified.Inc()
	}
}
