package rendercache

import (
	"context"
	"testing"
	"time"
)

func TestMemorySetGetRoundTrip(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k1", []byte("hello"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := m.Get(ctx, "k1")
	if err != nil || !ok || string(v) != "hello" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}
}

func TestMemoryGetExpired(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "k1", []byte("hello"), -time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	_, ok, err := m.Get(ctx, "k1")
	if err != nil || ok {
		t.Fatalf("expected expired entry to miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "k1", []byte("hello"), time.Minute)
	m.Delete(ctx, "k1")
	_, ok, _ := m.Get(ctx, "k1")
	if ok {
		t.Fatal("expected key to be gone after Delete")
	}
}
