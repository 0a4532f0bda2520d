package dedup

import (
	"hash/fnv"
	"sort"
)

const (
	// DefaultPermutations is the default MinHash signature width.
	DefaultPermutations = 128
	// shingleSize is the k-gram width used to shingle content bytes.
	shingleSize = 5
)

// Signature is a MinHash signature: one minimum hash value per permutation.
// The matching-position fraction between two signatures of equal width is an
// unbiased estimator of the Jaccard similarity of the shingle sets.
type Signature []uint64

// Match pairs a candidate signature with its estimated similarity.
type Match struct {
	ConversationID string
	Similarity     float64
}

// ComputeFingerprint builds a MinHash signature over content using the given
// number of permutations. Identical (content, permutations) inputs always
// yield identical signatures. Content shorter than the shingle width is
// treated as a single shingle.
func ComputeFingerprint(content string, permutations int) Signature {
	if permutations <= 0 {
		permutations = DefaultPermutations
	}

	shingles := shingle([]byte(content))
	sig := make(Signature, permutations)
	for i := range sig {
		sig[i] = ^uint64(0)
	}

	var seed [4]byte
	for _, sh := range shingles {
		for i := 0; i < permutations; i++ {
			seed[0] = byte(i)
			seed[1] = byte(i >> 8)
			seed[2] = byte(i >> 16)
			seed[3] = byte(i >> 24)

			h := fnv.New64a()
			h.Write(seed[:])
			h.Write(sh)
			if v := h.Sum64(); v < sig[i] {
				sig[i] = v
			}
		}
	}
	return sig
}

// Similarity estimates the Jaccard similarity of two signatures as the
// fraction of matching positions. Signatures of different widths are not
// comparable and score 0.
func Similarity(a, b Signature) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

// candidate is a stored fingerprint with its insertion position, used for
// deterministic tie-breaking in FindSimilar.
type candidate struct {
	conversationID string
	signature      Signature
	order          int
}

// FindSimilar returns candidates whose estimated similarity to fp is at
// least threshold, sorted by descending similarity. Ties are broken by
// ascending insertion order (oldest first). An empty candidate list yields
// an empty result for any threshold.
func FindSimilar(fp Signature, candidates []candidate, threshold float64) []Match {
	type scored struct {
		match Match
		order int
	}
	var kept []scored
	for _, c := range candidates {
		sim := Similarity(fp, c.signature)
		if sim >= threshold {
			kept = append(kept, scored{
				match: Match{ConversationID: c.conversationID, Similarity: sim},
				order: c.order,
			})
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].match.Similarity != kept[j].match.Similarity {
			return kept[i].match.Similarity > kept[j].match.Similarity
		}
		return kept[i].order < kept[j].order
	})
	out := make([]Match, len(kept))
	for i, s := range kept {
		out[i] = s.match
	}
	return out
}

// shingle splits b into overlapping k-grams. Short content becomes a single
// shingle so that tiny records still fingerprint deterministically.
func shingle(b []byte) [][]byte {
	if len(b) <= shingleSize {
		return [][]byte{b}
	}
	out := make([][]byte, 0, len(b)-shingleSize+1)
	for i := 0; i+shingleSize <= len(b); i++ {
		out = append(out, b[i:i+shingleSize])
	}
	return out
}
