package dedup

import (
	"strings"
	"testing"
)

func TestComputeFingerprintDeterministic(t *testing.T) {
	content := "we discussed the quarterly migration plan and next steps"

	a := ComputeFingerprint(content, 64)
	b := ComputeFingerprint(content, 64)
	if len(a) != 64 {
		t.Fatalf("signature length = %d, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("signature not deterministic at position %d", i)
		}
	}

	if got := len(ComputeFingerprint(content, 128)); got != 128 {
		t.Errorf("signature length = %d, want 128", got)
	}
	// Length depends only on the permutation count, not the content.
	if got := len(ComputeFingerprint("x", 128)); got != 128 {
		t.Errorf("short content signature length = %d, want 128", got)
	}
}

func TestSimilarityBounds(t *testing.T) {
	content := "a conversation about deploying the new cache layer"
	sig := ComputeFingerprint(content, 128)

	if got := Similarity(sig, sig); got != 1 {
		t.Errorf("self similarity = %f, want 1", got)
	}
	other := ComputeFingerprint("completely unrelated grocery list for the weekend", 128)
	if got := Similarity(sig, other); got < 0 || got > 1 {
		t.Errorf("similarity %f outside [0, 1]", got)
	}
	if got := Similarity(sig, ComputeFingerprint(content, 64)); got != 0 {
		t.Errorf("mismatched widths should score 0, got %f", got)
	}
}

func TestNearIdenticalContentScoresHigh(t *testing.T) {
	base := strings.Repeat("the meeting covered incident response and on-call rotation. ", 20)
	tweaked := base + "one extra sentence at the end."

	sim := Similarity(ComputeFingerprint(base, 128), ComputeFingerprint(tweaked, 128))
	if sim < 0.5 {
		t.Errorf("near-identical content similarity = %f, want >= 0.5", sim)
	}

	unrelated := Similarity(
		ComputeFingerprint(base, 128),
		ComputeFingerprint("totally different topic about birds and weather patterns", 128),
	)
	if unrelated >= sim {
		t.Errorf("unrelated similarity %f should be below near-identical %f", unrelated, sim)
	}
}

func TestFindSimilarEmptyCandidates(t *testing.T) {
	fp := ComputeFingerprint("anything", 32)
	for _, threshold := range []float64{0, 0.5, 1} {
		if got := FindSimilar(fp, nil, threshold); len(got) != 0 {
			t.Errorf("threshold %f: expected empty result, got %d matches", threshold, len(got))
		}
	}
}

func TestFindSimilarThresholdAndOrdering(t *testing.T) {
	base := strings.Repeat("records of the support conversation with customer four. ", 10)
	fp := ComputeFingerprint(base, 128)

	candidates := []candidate{
		{conversationID: "identical", signature: ComputeFingerprint(base, 128), order: 0},
		{conversationID: "unrelated", signature: ComputeFingerprint("short note", 128), order: 1},
		{conversationID: "identical-later", signature: ComputeFingerprint(base, 128), order: 2},
	}

	// Threshold 0 returns everything.
	all := FindSimilar(fp, candidates, 0)
	if len(all) != 3 {
		t.Fatalf("threshold 0 returned %d matches, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Similarity > all[i-1].Similarity {
			t.Error("results not sorted by descending similarity")
		}
	}
	// Equal scores keep insertion order.
	if all[0].ConversationID != "identical" || all[1].ConversationID != "identical-later" {
		t.Errorf("tie-break by insertion order violated: %s, %s", all[0].ConversationID, all[1].ConversationID)
	}

	// Threshold 1 requires exact signature equality.
	exact := FindSimilar(fp, candidates, 1)
	if len(exact) != 2 {
		t.Fatalf("threshold 1 returned %d matches, want 2", len(exact))
	}
	for _, m := range exact {
		if m.Similarity != 1 {
			t.Errorf("match %s below threshold 1: %f", m.ConversationID, m.Similarity)
		}
	}

	// Every result satisfies the threshold.
	for _, threshold := range []float64{0.3, 0.8} {
		for _, m := range FindSimilar(fp, candidates, threshold) {
			if m.Similarity < threshold {
				t.Errorf("match %s similarity %f below threshold %f", m.ConversationID, m.Similarity, threshold)
			}
		}
	}
}
