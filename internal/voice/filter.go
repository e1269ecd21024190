package voice

// Verdict is the filter decision for one recognition result.
type Verdict int

const (
	VerdictAccept Verdict = iota + 1
	VerdictIgnore
)

const (
	// minConfidence rejects utterances the engine itself is unsure about.
	minConfidence = 0.70
	// minWords suppresses single-syllable false triggers from an always-on
	// microphone; stray wake-like utterances are almost always one word.
	minWords = 2
)

// Decide accepts a result only when it is final, confident, and long enough
// to plausibly be directed speech. Interim results are never surfaced.
func Decide(result RecognitionResult) Verdict {
	if !result.IsFinal {
		return VerdictIgnore
	}
	if result.Confidence < minConfidence {
		return VerdictIgnore
	}
	if result.WordCount() < minWords {
		return VerdictIgnore
	}
	return VerdictAccept
}
