package dedup

import (
	"log/slog"
	"sync"
)

// DefaultSimilarityThreshold is the minimum estimated Jaccard similarity at
// which a record counts as a near-duplicate.
const DefaultSimilarityThreshold = 0.8

// defaultMaxTracked bounds the per-system index so the filter's memory stays
// bounded under continuous ingestion. Oldest entries fall out first; the
// warm store's primary key still rejects any exact duplicate that slips
// past an evicted hash.
const defaultMaxTracked = 100000

// Config holds tuning knobs for the Service.
type Config struct {
	Permutations int     // MinHash signature width (default: 128)
	Threshold    float64 // near-duplicate similarity threshold (default: 0.8)
	MaxTracked   int     // per-system index cap (default: 100000)
}

// Service composes the exact and approximate detectors over per-system
// indexes. Dedup scope is per system: identical content uploaded by two
// different systems is not a duplicate.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	systems map[string]*systemIndex
}

type systemIndex struct {
	hashes    map[string]struct{}
	hashOrder []string
	prints    []candidate
	nextOrder int
}

// Decision is the outcome of a duplicate check for one record.
type Decision struct {
	ExactDuplicate bool
	Similar        []Match // near-duplicates at or above the threshold
}

// NewService creates a Service. Zero config fields fall back to defaults.
func NewService(cfg Config) *Service {
	if cfg.Permutations <= 0 {
		cfg.Permutations = DefaultPermutations
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultSimilarityThreshold
	}
	if cfg.MaxTracked <= 0 {
		cfg.MaxTracked = defaultMaxTracked
	}
	return &Service{
		cfg:     cfg,
		systems: make(map[string]*systemIndex),
	}
}

// IsDuplicate reports whether content is an exact duplicate of something
// already tracked for systemID. Read-only; does not modify the index.
func (s *Service) IsDuplicate(systemID, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.systems[systemID]
	if !ok {
		return false
	}
	_, dup := idx.hashes[ContentHash(content)]
	return dup
}

// CheckAndAdd atomically tests content for systemID and, when it is not an
// exact duplicate, records its hash and fingerprint under conversationID.
// The single critical section closes the window where two identical
// concurrent uploads could both pass the check.
func (s *Service) CheckAndAdd(systemID, conversationID, content string) Decision {
	hash := ContentHash(content)
	fp := ComputeFingerprint(content, s.cfg.Permutations)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.systems[systemID]
	if !ok {
		idx = &systemIndex{hashes: make(map[string]struct{})}
		s.systems[systemID] = idx
	}

	if _, dup := idx.hashes[hash]; dup {
		return Decision{ExactDuplicate: true}
	}

	similar := FindSimilar(fp, idx.prints, s.cfg.Threshold)

	idx.hashes[hash] = struct{}{}
	idx.hashOrder = append(idx.hashOrder, hash)
	idx.prints = append(idx.prints, candidate{
		conversationID: conversationID,
		signature:      fp,
		order:          idx.nextOrder,
	})
	idx.nextOrder++
	idx.trim(s.cfg.MaxTracked)

	return Decision{Similar: similar}
}

// FindSimilar ranks tracked fingerprints for systemID against fp.
func (s *Service) FindSimilar(systemID string, fp Signature, threshold float64) []Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.systems[systemID]
	if !ok {
		return nil
	}
	return FindSimilar(fp, idx.prints, threshold)
}

// Seed registers an already-persisted record without running a check. Used
// to rebuild the filter from the warm store at startup.
func (s *Service) Seed(systemID, conversationID, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.systems[systemID]
	if !ok {
		idx = &systemIndex{hashes: make(map[string]struct{})}
		s.systems[systemID] = idx
	}
	hash := ContentHash(content)
	if _, dup := idx.hashes[hash]; dup {
		return
	}
	idx.hashes[hash] = struct{}{}
	idx.hashOrder = append(idx.hashOrder, hash)
	idx.prints = append(idx.prints, candidate{
		conversationID: conversationID,
		signature:      ComputeFingerprint(content, s.cfg.Permutations),
		order:          idx.nextOrder,
	})
	idx.nextOrder++
	idx.trim(s.cfg.MaxTracked)
}

// trim drops the oldest tracked entries beyond the cap.
func (idx *systemIndex) trim(max int) {
	for len(idx.hashOrder) > max {
		old := idx.hashOrder[0]
		idx.hashOrder = idx.hashOrder[1:]
		delete(idx.hashes, old)
	}
	if excess := len(idx.prints) - max; excess > 0 {
		slog.Debug("dedup index trimmed", "evicted", excess)
		idx.prints = append([]candidate(nil), idx.prints[excess:]...)
	}
}
