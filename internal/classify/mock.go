package classify

import (
	"context"
	"math"
)

type mockClassifier struct {
	classes []string
}

// NewMockClassifier maps landmark vectors onto the class list
// deterministically, so repeated input yields a stable streak.
func NewMockClassifier(classes []string) Classifier {
	return &mockClassifier{classes: append([]string(nil), classes...)}
}

func (m *mockClassifier) Classify(_ context.Context, landmarks []float64) (Result, error) {
	padded, hands, err := NormalizeLandmarks(landmarks)
	if err != nil {
		return Result{}, err
	}
	if len(m.classes) == 0 {
		return Result{HandsDetected: hands}, nil
	}

	var sum float64
	for _, v := range padded {
		sum += math.Abs(v)
	}
	// The scaled sum may be non-finite or exceed the int range; a float
	// to int conversion there is undefined, so reduce in float space first.
	scaled := sum * 1000
	idx := 0
	if !math.IsNaN(scaled) && !math.IsInf(scaled, 0) {
		idx = int(math.Mod(scaled, float64(len(m.classes))))
	}
	runnerUp := (idx + 1) % len(m.classes)

	result := Result{
		Label:         m.classes[idx],
		Confidence:    96,
		HandsDetected: hands,
	}
	if runnerUp != idx {
		result.RunnerUpLabel = m.classes[runnerUp]
		result.RunnerUpConfidence = 3
	}
	return result, nil
}
