package gesture

import (
	"testing"

	"github.com/signsos/signstream-core/internal/config"
)

func testVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	vocab, err := NewVocabulary(config.VocabularyConfig{
		Classes:        []string{"help", "cannot", "speak", "hello", "space", "done"},
		SendLabel:      "done",
		SeparatorLabel: "space",
		SeparatorText:  " ",
	})
	if err != nil {
		t.Fatalf("build vocabulary: %v", err)
	}
	return vocab
}

func TestResolveReclassifiesNarrowSendAsSeparator(t *testing.T) {
	r := NewResolver(testVocabulary(t), 12)

	res := r.Resolve("done", 90, "space", 85)
	if res.Label != "space" {
		t.Fatalf("expected effective label space, got %q", res.Label)
	}
	if res.Confidence != 85 {
		t.Fatalf("expected runner-up confidence adopted, got %v", res.Confidence)
	}
	if res.Margin < 12 {
		t.Fatalf("expected synthetic margin above threshold, got %v", res.Margin)
	}
}

func TestResolveIsIdempotentForUnambiguousInput(t *testing.T) {
	r := NewResolver(testVocabulary(t), 12)

	res := r.Resolve("done", 96, "space", 76)
	if res.Label != "done" || res.Confidence != 96 || res.Margin != 20 {
		t.Fatalf("expected unambiguous input unchanged, got %+v", res)
	}

	again := r.Resolve(res.Label, res.Confidence, "space", 76)
	if again != res {
		t.Fatalf("expected resolution stable under re-resolution, got %+v", again)
	}
}

func TestResolveIgnoresNonConfusablePairs(t *testing.T) {
	r := NewResolver(testVocabulary(t), 12)

	// A narrow margin between two character labels is not the confusable
	// pair; the top label stands.
	res := r.Resolve("help", 70, "hello", 68)
	if res.Label != "help" || res.Margin != 2 {
		t.Fatalf("expected pass-through for non-confusable pair, got %+v", res)
	}

	// Separator on top with send as runner-up is also not reclassified.
	res = r.Resolve("space", 70, "done", 68)
	if res.Label != "space" {
		t.Fatalf("expected separator reading preserved, got %+v", res)
	}
}
