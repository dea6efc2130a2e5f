package session

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	userID := uuid.New()

	sess, err := store.Create(ctx, userID, time.Hour)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(sess.Token) < 40 {
		t.Fatalf("token %q is too short", sess.Token)
	}

	got, err := store.Get(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != userID {
		t.Fatalf("Get().UserID = %v, want %v", got.UserID, userID)
	}

	if err := store.Delete(ctx, sess.Token); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, sess.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	start := time.Now()
	store.now = func() time.Time { return start }

	sess, err := store.Create(ctx, uuid.New(), time.Minute)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr bool
	}{
		{name: "fresh", elapsed: 30 * time.Second},
		{name: "expired", elapsed: time.Minute, wantErr: true},
		{name: "stays expired", elapsed: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.now = func() time.Time { return start.Add(tt.elapsed) }
			_, err := store.Get(ctx, sess.Token)
			if tt.wantErr != errors.Is(err, ErrNotFound) {
				t.Fatalf("Get() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("NOYEL_TEST_REDIS_URL")
	if url == "" {
		t.Skip("NOYEL_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	userID := uuid.New()
	sess, err := store.Create(ctx, userID, time.Minute)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, err := store.Get(ctx, sess.Token)
	if err != nil || got.UserID != userID {
		t.Fatalf("Get() = %+v, %v, want user %v", got, err, userID)
	}
	if err := store.Delete(ctx, sess.Token); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Get(ctx, sess.Token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(deleted) error = %v, want ErrNotFound", err)
	}
}
