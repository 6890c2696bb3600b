package cache

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestMemory_PutAndGet(t *testing.T) {
	mem, err := NewMemory(16, time.Hour)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	ctx := context.Background()

	key := Key{Endpoint: "/repositories/acme"}
	payload := []byte(`{"slug":"api"}`)

	if err := mem.Put(ctx, key, payload); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := mem.Get(ctx, key, nil)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("Get = %s, want %s", got, payload)
	}
}

func TestMemory_Get_Expired(t *testing.T) {
	mem, err := NewMemory(16, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	ctx := context.Background()

	key := Key{Endpoint: "/repositories/acme"}
	if err := mem.Put(ctx, key, []byte(`"x"`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	time.Sleep(60 * time.Millisecond)

	if _, err := mem.Get(ctx, key, nil); err != ErrMiss {
		t.Errorf("Get after expiry = %v, want ErrMiss", err)
	}
}

func TestMemory_EvictsOldestBeyondSize(t *testing.T) {
	mem, err := NewMemory(2, time.Hour)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	ctx := context.Background()

	keys := []Key{
		{Endpoint: "/a"},
		{Endpoint: "/b"},
		{Endpoint: "/c"},
	}
	for _, k := range keys {
		if err := mem.Put(ctx, k, []byte(`"x"`)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	if _, err := mem.Get(ctx, keys[0], nil); err != ErrMiss {
		t.Errorf("oldest key should have been evicted, got %v", err)
	}
	if _, err := mem.Get(ctx, keys[2], nil); err != nil {
		t.Errorf("newest key should still be cached, got %v", err)
	}
}

func TestMemory_ValidatorRejects(t *testing.T) {
	mem, err := NewMemory(16, time.Hour)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	ctx := context.Background()

	key := Key{Endpoint: "/repositories/acme"}
	if err := mem.Put(ctx, key, []byte(`{}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	reject := func([]byte) bool { return false }
	if _, err := mem.Get(ctx, key, reject); err != ErrMiss {
		t.Errorf("Get with rejecting validator = %v, want ErrMiss", err)
	}
}

func TestTiered_BackfillsMemoryFromPersistent(t *testing.T) {
	persistent, err := NewFileStore(t.TempDir(), time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	mem, err := NewMemory(16, time.Hour)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	tiered := NewTiered(mem, persistent)
	ctx := context.Background()

	key := Key{Endpoint: "/repositories/acme"}
	payload := []byte(`{"slug":"api"}`)

	// Written behind the tiered store's back, so memory is cold.
	if err := persistent.Put(ctx, key, payload); err != nil {
		t.Fatalf("persistent Put failed: %v", err)
	}

	got, err := tiered.Get(ctx, key, nil)
	if err != nil {
		t.Fatalf("tiered Get failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("tiered Get = %s, want %s", got, payload)
	}

	// Memory now holds the record.
	if _, err := mem.Get(ctx, key, nil); err != nil {
		t.Errorf("memory layer not backfilled: %v", err)
	}
}

func TestTiered_PutWritesBothLayers(t *testing.T) {
	persistent, err := NewFileStore(t.TempDir(), time.Hour, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	mem, err := NewMemory(16, time.Hour)
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	tiered := NewTiered(mem, persistent)
	ctx := context.Background()

	key := Key{Endpoint: "/repositories/acme"}
	if err := tiered.Put(ctx, key, []byte(`"x"`)); err != nil {
		t.Fatalf("tiered Put failed: %v", err)
	}

	if _, err := mem.Get(ctx, key, nil); err != nil {
		t.Errorf("memory layer missing record: %v", err)
	}
	if _, err := persistent.Get(ctx, key, nil); err != nil {
		t.Errorf("persistent layer missing record: %v", err)
	}
}
