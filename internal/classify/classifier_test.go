package classify

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestNormalizeLandmarksPadsOneHand(t *testing.T) {
	landmarks := make([]float64, 63)
	landmarks[0] = 0.5

	padded, hands, err := NormalizeLandmarks(landmarks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(padded) != 126 {
		t.Fatalf("expected padded length 126, got %d", len(padded))
	}
	if hands != 1 {
		t.Fatalf("expected 1 hand, got %d", hands)
	}
	if padded[0] != 0.5 || padded[63] != 0 {
		t.Fatalf("unexpected padding: %v %v", padded[0], padded[63])
	}
}

func TestNormalizeLandmarksAcceptsTwoHands(t *testing.T) {
	_, hands, err := NormalizeLandmarks(make([]float64, 126))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hands != 2 {
		t.Fatalf("expected 2 hands, got %d", hands)
	}
}

func TestNormalizeLandmarksRejectsOddLengths(t *testing.T) {
	_, _, err := NormalizeLandmarks(make([]float64, 64))
	if !errors.Is(err, ErrInvalidLandmarks) {
		t.Fatalf("expected ErrInvalidLandmarks, got %v", err)
	}
}

func TestMockClassifierIsDeterministic(t *testing.T) {
	m := NewMockClassifier([]string{"help", "cannot", "speak", "hello"})
	landmarks := make([]float64, 63)
	for i := range landmarks {
		landmarks[i] = 0.01 * float64(i)
	}

	first, err := m.Classify(context.Background(), landmarks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.Classify(context.Background(), landmarks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable classification, got %+v then %+v", first, second)
	}
	if first.Label == "" || first.Confidence <= 0 {
		t.Fatalf("expected a ranked result, got %+v", first)
	}
	if first.Label == first.RunnerUpLabel {
		t.Fatalf("runner-up must differ from top label: %+v", first)
	}
}

func TestMockClassifierHandlesExtremeLandmarks(t *testing.T) {
	classes := []string{"help", "cannot", "speak", "hello"}
	m := NewMockClassifier(classes)
	known := make(map[string]bool, len(classes))
	for _, c := range classes {
		known[c] = true
	}

	cases := map[string]float64{
		"max float": math.MaxFloat64,
		"infinity":  math.Inf(1),
		"nan":       math.NaN(),
	}
	for name, v := range cases {
		landmarks := make([]float64, 63)
		for i := range landmarks {
			landmarks[i] = v
		}
		res, err := m.Classify(context.Background(), landmarks)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if !known[res.Label] {
			t.Fatalf("%s: expected a vocabulary label, got %q", name, res.Label)
		}
	}
}

func TestNewExecClassifierRejectsEmptyCommand(t *testing.T) {
	if _, err := NewExecClassifier(""); err == nil {
		t.Fatal("expected error for empty command")
	}
}
