package gesture

import (
	"errors"
	"fmt"
)

// ErrInvalidFrame marks classification input the engine refuses to evaluate.
// Frames rejected with this error leave session state untouched.
var ErrInvalidFrame = errors.New("invalid classification frame")

// Frame is one classifier observation presented to the engine.
// Confidences are percentages in [0, 100].
type Frame struct {
	HandPresent        bool
	Label              string
	Confidence         float64
	RunnerUpLabel      string
	RunnerUpConfidence float64
}

func (f Frame) validate() error {
	if f.HandPresent && f.Label == "" {
		return fmt.Errorf("%w: hand present without a label", ErrInvalidFrame)
	}
	if f.Confidence < 0 || f.Confidence > 100 {
		return fmt.Errorf("%w: confidence %.1f out of range", ErrInvalidFrame, f.Confidence)
	}
	if f.RunnerUpConfidence < 0 || f.RunnerUpConfidence > 100 {
		return fmt.Errorf("%w: runner-up confidence %.1f out of range", ErrInvalidFrame, f.RunnerUpConfidence)
	}
	if f.RunnerUpLabel != "" && f.RunnerUpConfidence > f.Confidence {
		return fmt.Errorf("%w: runner-up confidence exceeds top confidence", ErrInvalidFrame)
	}
	return nil
}
