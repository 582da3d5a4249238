package speech

import "strings"

// Alternative is one hypothesis for a recognized segment.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// RecognitionResult is one segment of speech, best alternative first.
type RecognitionResult struct {
	Alternatives []Alternative `json:"alternatives"`
	Final        bool          `json:"final"`
}

// RecognitionEvent carries every result recognized so far in the current stream.
type RecognitionEvent struct {
	Results []RecognitionResult `json:"results"`
}

// Transcript concatenates the top alternative of every result with no separator.
func (e RecognitionEvent) Transcript() string {
	var b strings.Builder
	for _, result := range e.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		b.WriteString(result.Alternatives[0].Transcript)
	}
	return b.String()
}

// Final reports whether every result in the event is final.
func (e RecognitionEvent) Final() bool {
	if len(e.Results) == 0 {
		return false
	}
	for _, result := range e.Results {
		if !result.Final {
			return false
		}
	}
	return true
}
