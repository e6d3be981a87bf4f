package gesture

// resolvedMargin is the synthetic margin reported once an ambiguous pair has
// been settled in favor of the separator reading.
const resolvedMargin = 100.0

// Resolution is the effective classification after ambiguity handling.
type Resolution struct {
	Label      string
	Confidence float64
	Margin     float64
}

// Resolver reclassifies a send reading as a separator when the classifier
// cannot tell the two confusable gestures apart. A false send flushes and
// dispatches the buffer, a missed separator costs a single space, so ties
// default to separator.
type Resolver struct {
	sendLabel      string
	separatorLabel string
	minMargin      float64
}

func NewResolver(vocab *Vocabulary, minMargin float64) *Resolver {
	return &Resolver{
		sendLabel:      vocab.SendLabel(),
		separatorLabel: vocab.SeparatorLabel(),
		minMargin:      minMargin,
	}
}

// Resolve returns the effective label, confidence, and margin for a ranked
// classifier pair. Inputs that are already unambiguous pass through unchanged.
func (r *Resolver) Resolve(label string, confidence float64, runnerUp string, runnerUpConfidence float64) Resolution {
	margin := confidence - runnerUpConfidence
	if label == r.sendLabel && runnerUp == r.separatorLabel && margin < r.minMargin {
		return Resolution{
			Label:      runnerUp,
			Confidence: runnerUpConfidence,
			Margin:     resolvedMargin,
		}
	}
	return Resolution{Label: label, Confidence: confidence, Margin: margin}
}
