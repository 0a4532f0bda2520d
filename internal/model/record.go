// Package model defines the core data types shared across the ingestion
// pipeline and the storage tiers.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// EmbeddingDim is the fixed length of every stored embedding vector.
// The quantization contract (symmetric int8, scale 1/127) is shared with
// downstream similarity consumers; changing either side silently corrupts
// similarity scores, so length and range are validated at every boundary.
const EmbeddingDim = 384

// ErrValidation marks records or payloads that fail structural validation.
// Validation failures are never retried automatically.
var ErrValidation = goerr.New("validation failed")

// MemoryRecord is a single conversation-memory entry. Records are immutable
// once persisted; there is no update path.
type MemoryRecord struct {
	SystemID       string         `json:"system_id"`
	ConversationID string         `json:"conversation_id"`
	Summary        string         `json:"summary"`
	Embedding      []int8         `json:"embedding"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Key returns the uniqueness key of the record.
func (r *MemoryRecord) Key() string {
	return r.SystemID + "/" + r.ConversationID
}

// Validate checks the record against the storage contract. The embedding
// must be exactly EmbeddingDim elements; int8 already bounds the range.
func (r *MemoryRecord) Validate() error {
	if r == nil {
		return goerr.Wrap(ErrValidation, "record is nil")
	}
	if strings.TrimSpace(r.SystemID) == "" {
		return goerr.Wrap(ErrValidation, "system_id is empty")
	}
	if strings.TrimSpace(r.ConversationID) == "" {
		return goerr.Wrap(ErrValidation, "conversation_id is empty")
	}
	if len(r.Embedding) != EmbeddingDim {
		return goerr.Wrap(ErrValidation, "embedding length mismatch",
			goerr.Value("want", EmbeddingDim), goerr.Value("got", len(r.Embedding)))
	}
	if r.Timestamp.IsZero() {
		return goerr.Wrap(ErrValidation, "timestamp is zero")
	}
	return nil
}

// Clone returns a deep copy, so callers can hand records to the hot tier
// without aliasing the embedding or metadata.
func (r *MemoryRecord) Clone() *MemoryRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Embedding = append([]int8(nil), r.Embedding...)
	if r.Metadata != nil {
		c.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// UploadDescriptor identifies a pending ingestion unit discovered in object
// storage. Descriptors live only for the processing cycle; they are never
// persisted.
type UploadDescriptor struct {
	SystemID     string
	UploadID     string
	StorageKey   string
	DiscoveredAt time.Time
}

// ParseUploadKey parses an object-storage key of the form
// "system_id=<id>/upload_id=<id>/..." into an UploadDescriptor.
func ParseUploadKey(key string, discoveredAt time.Time) (UploadDescriptor, error) {
	parts := strings.Split(key, "/")
	if len(parts) < 2 {
		return UploadDescriptor{}, goerr.Wrap(ErrValidation, "upload key has too few segments", goerr.Value("key", key))
	}
	systemID, ok := strings.CutPrefix(parts[0], "system_id=")
	if !ok || systemID == "" {
		return UploadDescriptor{}, goerr.Wrap(ErrValidation, "upload key missing system_id segment", goerr.Value("key", key))
	}
	uploadID, ok := strings.CutPrefix(parts[1], "upload_id=")
	if !ok || uploadID == "" {
		return UploadDescriptor{}, goerr.Wrap(ErrValidation, "upload key missing upload_id segment", goerr.Value("key", key))
	}
	return UploadDescriptor{
		SystemID:     systemID,
		UploadID:     uploadID,
		StorageKey:   key,
		DiscoveredAt: discoveredAt,
	}, nil
}

func (d UploadDescriptor) String() string {
	return fmt.Sprintf("%s/%s", d.SystemID, d.UploadID)
}
