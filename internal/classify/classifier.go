// Package classify is the boundary to the hand-sign classifier. The core
// never runs inference itself; it hands a landmark vector to a backend and
// gets back a ranked classification with percentage confidences.
package classify

import (
	"context"
	"errors"
	"fmt"
)

const (
	// One hand: 21 landmarks x 3 coordinates.
	oneHandLen = 63
	// Feature length the models are trained on; one-hand input is padded.
	featureLen = 126
)

// ErrInvalidLandmarks marks input vectors the classifier cannot accept.
var ErrInvalidLandmarks = errors.New("invalid landmark vector")

// Result is a ranked classification. Confidences are percentages (0-100).
type Result struct {
	Label              string  `json:"label"`
	Confidence         float64 `json:"confidence"`
	RunnerUpLabel      string  `json:"runner_up_label,omitempty"`
	RunnerUpConfidence float64 `json:"runner_up_confidence,omitempty"`
	HandsDetected      int     `json:"hands_detected"`
}

// Classifier abstracts classification backends.
type Classifier interface {
	Classify(ctx context.Context, landmarks []float64) (Result, error)
}

// NormalizeLandmarks validates a landmark vector and pads one-hand input to
// the full feature length. It returns the padded vector and the hand count.
func NormalizeLandmarks(landmarks []float64) ([]float64, int, error) {
	switch len(landmarks) {
	case oneHandLen:
		padded := make([]float64, featureLen)
		copy(padded, landmarks)
		return padded, 1, nil
	case featureLen:
		return landmarks, 2, nil
	default:
		return nil, 0, fmt.Errorf("%w: length %d, expected %d or %d",
			ErrInvalidLandmarks, len(landmarks), oneHandLen, featureLen)
	}
}
