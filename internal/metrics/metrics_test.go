package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveMail(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveMail("invitation", OutcomeSent)
	m.ObserveMail("invitation", OutcomeSent)
	m.ObserveMail("verify_email", OutcomeFailed)

	tests := []struct {
		template string
		outcome  string
		want     float64
	}{
		{template: "invitation", outcome: OutcomeSent, want: 2},
		{template: "verify_email", outcome: OutcomeFailed, want: 1},
		{template: "verify_email", outcome: OutcomeSent, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.template+"/"+tt.outcome, func(t *testing.T) {
			got := testutil.ToFloat64(m.MailSent.WithLabelValues(tt.template, tt.outcome))
			if got != tt.want {
				t.Fatalf("mail_messages_total{%s,%s} = %v, want %v", tt.template, tt.outcome, got, tt.want)
			}
		})
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveMail("invitation", OutcomeSent)
	m.EmailVerified()
	m.InvitationCreated()
	m.InvitationRedeemed()
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.InvitationRedeemed()
	m.InvitationRedeemed()
	m.EmailVerified()
	if got := testutil.ToFloat64(m.EmailsVerified); got != 1 {
		t.Fatalf("emails_verified_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.InvitationsRedeemed); got != 2 {
		t.Fatalf("invitations_redeemed_total = %v, want 2", got)
	}
}
