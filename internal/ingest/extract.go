package ingest

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/stratamem/stratamem/internal/model"
)

// uploadPayload is the on-storage upload format: either a single record
// object or a batch under "records".
type uploadPayload struct {
	Records []uploadRecord `json:"records"`
	uploadRecord
}

type uploadRecord struct {
	ConversationID string         `json:"conversation_id"`
	Summary        string         `json:"summary"`
	Embedding      []int          `json:"embedding"`
	Timestamp      string         `json:"timestamp"`
	Metadata       map[string]any `json:"metadata"`
}

// ExtractRecords parses an upload payload into candidate records for the
// system named by the descriptor. Any malformed record fails the whole
// upload; partial batches are never ingested.
func ExtractRecords(desc model.UploadDescriptor, payload []byte) ([]*model.MemoryRecord, error) {
	var p uploadPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "upload payload is not valid JSON",
			goerr.Value("upload", desc.String()))
	}

	raws := p.Records
	if len(raws) == 0 {
		if p.ConversationID == "" {
			return nil, nil
		}
		raws = []uploadRecord{p.uploadRecord}
	}

	out := make([]*model.MemoryRecord, 0, len(raws))
	for i, raw := range raws {
		rec, err := raw.toRecord(desc.SystemID)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid record in upload",
				goerr.Value("upload", desc.String()), goerr.Value("index", i))
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r uploadRecord) toRecord(systemID string) (*model.MemoryRecord, error) {
	if len(r.Embedding) != model.EmbeddingDim {
		return nil, goerr.Wrap(model.ErrValidation, "embedding length mismatch",
			goerr.Value("want", model.EmbeddingDim), goerr.Value("got", len(r.Embedding)))
	}
	emb := make([]int8, len(r.Embedding))
	for i, v := range r.Embedding {
		if v < -128 || v > 127 {
			return nil, goerr.Wrap(model.ErrValidation, "embedding value out of int8 range",
				goerr.Value("index", i), goerr.Value("value", v))
		}
		emb[i] = int8(v)
	}

	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return nil, goerr.Wrap(model.ErrValidation, "timestamp is not RFC3339",
			goerr.Value("timestamp", r.Timestamp))
	}

	rec := &model.MemoryRecord{
		SystemID:       systemID,
		ConversationID: r.ConversationID,
		Summary:        r.Summary,
		Embedding:      emb,
		Timestamp:      ts,
		Metadata:       r.Metadata,
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}
