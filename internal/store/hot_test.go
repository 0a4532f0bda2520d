package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestHotStoreInsertAndGet(t *testing.T) {
	h := NewHotStore(HotStoreConfig{})

	rec := testRecord("s1", "c1", time.Now())
	if err := h.Insert(rec); err != nil {
		t.Fatal(err)
	}

	got, ok := h.Get("s1", "c1")
	if !ok {
		t.Fatal("inserted record not found")
	}
	if got.Summary != rec.Summary {
		t.Errorf("summary = %q, want %q", got.Summary, rec.Summary)
	}

	// Mutating the returned copy must not affect the stored record.
	got.Embedding[0] = 99
	again, _ := h.Get("s1", "c1")
	if again.Embedding[0] == 99 {
		t.Error("Get returned an aliased record")
	}

	if _, ok := h.Get("s1", "missing"); ok {
		t.Error("lookup of missing record succeeded")
	}
}

func TestHotStoreRejectsDuplicateKey(t *testing.T) {
	h := NewHotStore(HotStoreConfig{})

	if err := h.Insert(testRecord("s1", "c1", time.Now())); err != nil {
		t.Fatal(err)
	}
	err := h.Insert(testRecord("s1", "c1", time.Now()))
	if !errors.Is(err, ErrConstraintViolation) {
		t.Fatalf("expected ErrConstraintViolation, got %v", err)
	}
	if h.Len() != 1 {
		t.Errorf("expected 1 record, got %d", h.Len())
	}
}

func TestHotStoreRecentOrder(t *testing.T) {
	h := NewHotStore(HotStoreConfig{})

	for i := 0; i < 5; i++ {
		if err := h.Insert(testRecord("s1", fmt.Sprintf("c%d", i), time.Now())); err != nil {
			t.Fatal(err)
		}
	}

	recent := h.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Recent(3) returned %d records", len(recent))
	}
	if recent[0].ConversationID != "c4" || recent[2].ConversationID != "c2" {
		t.Errorf("Recent order wrong: %s .. %s", recent[0].ConversationID, recent[2].ConversationID)
	}

	all := h.Recent(0)
	if len(all) != 5 {
		t.Errorf("Recent(0) should return everything, got %d", len(all))
	}
}

func TestHotStoreSizeBound(t *testing.T) {
	h := NewHotStore(HotStoreConfig{MaxEntries: 3})

	for i := 0; i < 10; i++ {
		if err := h.Insert(testRecord("s1", fmt.Sprintf("c%d", i), time.Now())); err != nil {
			t.Fatal(err)
		}
	}
	if h.Len() != 3 {
		t.Fatalf("expected 3 records after trim, got %d", h.Len())
	}
	// Oldest entries were evicted, newest kept.
	if _, ok := h.Get("s1", "c0"); ok {
		t.Error("oldest record survived the size bound")
	}
	if _, ok := h.Get("s1", "c9"); !ok {
		t.Error("newest record was evicted")
	}
}

func TestHotStoreAgeSweep(t *testing.T) {
	h := NewHotStore(HotStoreConfig{MaxAge: 10 * time.Millisecond, SweepInterval: 5 * time.Millisecond})

	if err := h.Insert(testRecord("s1", "c1", time.Now())); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for h.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	h.Stop()

	if h.Len() != 0 {
		t.Errorf("aged record not evicted, %d remaining", h.Len())
	}
}
