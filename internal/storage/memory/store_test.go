package memory

import (
	"context"
	"testing"
	"time"
)

func TestStoreWriteCopiesData(t *testing.T) {
	t.Parallel()

	store := New()
	payload := []byte("User-agent: *")
	if err := store.Write(context.Background(), "https://example.com", payload, time.Minute); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	payload[0] = 'u'

	got, ok, err := store.Read(context.Background(), "https://example.com")
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v", ok, err)
	}
	if string(got) != "User-agent: *" {
		t.Fatalf("expected stored copy to be immutable, got %q", got)
	}
}

func TestStoreExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := New(WithNow(func() time.Time { return now }))
	ctx := context.Background()
	if err := store.Write(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, ok, _ := store.Read(ctx, "k"); !ok {
		t.Fatal("expected entry before expiry")
	}
	now = now.Add(time.Second)
	if _, ok, _ := store.Read(ctx, "k"); ok {
		t.Fatal("expected entry to expire")
	}
	if store.Len() != 0 {
		t.Fatalf("expected expired entry to be evicted, len=%d", store.Len())
	}
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()

	store := New()
	ctx := context.Background()
	if err := store.Write(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete(missing) error = %v", err)
	}
	if _, ok, _ := store.Read(ctx, "k"); ok {
		t.Fatal("expected deleted entry to be gone")
	}
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	t.Parallel()

	if err := New().Write(context.Background(), " ", nil, 0); err == nil {
		t.Fatal("expected error for empty key")
	}
}
