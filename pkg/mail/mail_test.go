package mail

import (
	"context"
	"testing"
)

func TestNewSMTPSenderValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SMTPConfig
		wantErr bool
	}{
		{name: "valid", cfg: SMTPConfig{Host: "smtp.example.com", Port: 587, From: "noyel@example.com"}},
		{name: "with auth", cfg: SMTPConfig{Host: "smtp.example.com", Username: "u", Password: "p", From: "noyel@example.com"}},
		{name: "missing host", cfg: SMTPConfig{From: "noyel@example.com"}, wantErr: true},
		{name: "missing from", cfg: SMTPConfig{Host: "smtp.example.com"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSMTPSender(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSMTPSender() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLogSender(t *testing.T) {
	s := NewLogSender()
	ctx := context.Background()

	if err := s.Send(ctx, Message{Subject: "hi"}); err == nil {
		t.Fatalf("Send(no recipient) error = nil, want error")
	}
	if err := s.Send(ctx, Message{Template: "invitation", To: "bob@example.com", Subject: "hi", Body: "body"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	sent := s.Sent()
	if len(sent) != 1 || sent[0].To != "bob@example.com" {
		t.Fatalf("Sent() = %+v, want one message to bob", sent)
	}
}
