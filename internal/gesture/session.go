package gesture

import "time"

// SessionState carries all per-session bookkeeping. One instance is owned by
// exactly one frame-processing loop; nothing here is safe for concurrent use.
type SessionState struct {
	ID string

	// Committed text.
	TextBuffer string

	// Running streak of identical effective labels.
	LastPredictedLabel string
	StableCount        int

	// Anti-duplicate guards for append/separator commits.
	LastAppendedLabel string
	LastAppendTime    time.Time

	// A held gesture must not re-commit; the hand has to leave the frame
	// (or the label change) before the same label counts again.
	LastCommittedLabel  string
	HandLeftSinceCommit bool

	// Send cooldown guard.
	LastSendTime time.Time
}

func NewSessionState(id string) *SessionState {
	return &SessionState{ID: id, HandLeftSinceCommit: true}
}

// Observe feeds one frame's presence and effective label into the streak
// tracker and returns the updated stable count. Hand loss resets the streak
// and re-arms the repeat-commit guard.
func (s *SessionState) Observe(handPresent bool, label string) int {
	if !handPresent {
		s.LastPredictedLabel = ""
		s.StableCount = 0
		s.HandLeftSinceCommit = true
		return 0
	}
	if label == s.LastPredictedLabel {
		s.StableCount++
	} else {
		s.LastPredictedLabel = label
		s.StableCount = 1
	}
	return s.StableCount
}

// Reset atomically clears every bookkeeping field. Safe to invoke between
// frames; the session keeps its identity.
func (s *SessionState) Reset() {
	s.TextBuffer = ""
	s.LastPredictedLabel = ""
	s.StableCount = 0
	s.LastAppendedLabel = ""
	s.LastAppendTime = time.Time{}
	s.LastCommittedLabel = ""
	s.HandLeftSinceCommit = true
	s.LastSendTime = time.Time{}
}
