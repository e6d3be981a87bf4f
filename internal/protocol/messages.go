package protocol

import "time"

// ClassificationFrame is one classifier observation streamed from an edge
// capture client. Confidences are percentages (0-100).
type ClassificationFrame struct {
	SessionID          string    `json:"session_id"`
	HandPresent        bool      `json:"hand_present"`
	Label              string    `json:"label,omitempty"`
	Confidence         float64   `json:"confidence"`
	RunnerUpLabel      string    `json:"runner_up_label,omitempty"`
	RunnerUpConfidence float64   `json:"runner_up_confidence,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// CommitEvent announces a text-buffer mutation or a send on the bus.
type CommitEvent struct {
	SessionID string    `json:"session_id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	Buffer    string    `json:"buffer"`
	AudioURL  string    `json:"audio_url,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	// Per-session frame subjects: gesture.frame.<session_id>.
	SubjectFramePrefix = "gesture.frame"
	SubjectCommit      = "gesture.commit"
)
