package model

import (
	"errors"
	"testing"
	"time"
)

func validRecord() *MemoryRecord {
	return &MemoryRecord{
		SystemID:       "s1",
		ConversationID: "c1",
		Summary:        "a summary",
		Embedding:      make([]int8, EmbeddingDim),
		Timestamp:      time.Now(),
	}
}

func TestMemoryRecordValidate(t *testing.T) {
	if err := validRecord().Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	r := validRecord()
	r.Embedding = make([]int8, EmbeddingDim-1)
	if err := r.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("short embedding: expected ErrValidation, got %v", err)
	}

	r = validRecord()
	r.Embedding = make([]int8, EmbeddingDim+1)
	if err := r.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("long embedding: expected ErrValidation, got %v", err)
	}

	r = validRecord()
	r.SystemID = " "
	if err := r.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("blank system_id: expected ErrValidation, got %v", err)
	}

	r = validRecord()
	r.ConversationID = ""
	if err := r.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("empty conversation_id: expected ErrValidation, got %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	r := validRecord()
	r.Metadata = map[string]any{"k": "v"}
	c := r.Clone()

	c.Embedding[0] = 42
	c.Metadata["k"] = "changed"

	if r.Embedding[0] == 42 {
		t.Error("clone shares embedding slice with original")
	}
	if r.Metadata["k"] != "v" {
		t.Error("clone shares metadata map with original")
	}
}

func TestParseUploadKey(t *testing.T) {
	now := time.Now()

	d, err := ParseUploadKey("system_id=s1/upload_id=u42/payload.json", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.SystemID != "s1" || d.UploadID != "u42" {
		t.Errorf("parsed %q / %q, want s1 / u42", d.SystemID, d.UploadID)
	}
	if d.StorageKey != "system_id=s1/upload_id=u42/payload.json" {
		t.Errorf("storage key not preserved: %q", d.StorageKey)
	}

	bad := []string{
		"",
		"payload.json",
		"system_id=s1",
		"upload_id=u1/system_id=s1/x",
		"system_id=/upload_id=u1/x",
		"system_id=s1/upload_id=/x",
	}
	for _, key := range bad {
		if _, err := ParseUploadKey(key, now); !errors.Is(err, ErrValidation) {
			t.Errorf("key %q: expected ErrValidation, got %v", key, err)
		}
	}
}

func TestQuantizeRoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, -0.5, 2.0, -2.0}
	q := Quantize(in)

	want := []int8{0, 127, -127, 64, -64, 127, -127}
	for i, b := range q {
		if b != want[i] {
			t.Errorf("Quantize[%d] = %d, want %d", i, b, want[i])
		}
	}

	out := Dequantize(q)
	for i := range out {
		if out[i] < -1 || out[i] > 1 {
			t.Errorf("Dequantize[%d] = %f outside [-1, 1]", i, out[i])
		}
	}
	if out[1] != 1 || out[2] != -1 {
		t.Errorf("saturated values should round-trip to ±1, got %f / %f", out[1], out[2])
	}
}
