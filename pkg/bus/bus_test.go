package bus

import (
	"context"
	"testing"
)

func TestNilBus(t *testing.T) {
	var b *Bus
	noop := func(context.Context, []byte) error { return nil }

	tests := []struct {
		name string
		call func() error
	}{
		{"publish", func() error { return b.Publish(context.Background(), "noyel.test", map[string]string{"a": "b"}) }},
		{"ensure stream", func() error { return b.EnsureStream("TEST", "noyel.test") }},
		{"subscribe", func() error {
			_, err := b.Subscribe(context.Background(), "noyel.test", "durable", SubscribeOptions{}, noop)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err == nil {
				t.Fatal("expected error from nil bus")
			}
		})
	}

	b.Close()
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("nats://127.0.0.1:1"); err == nil {
		t.Fatal("expected connection error")
	}
}
