package domain

import "unicode"

// MinTranscriptChars is the minimum number of non-whitespace characters a
// transcript must contain before it is worth sending to the language model.
const MinTranscriptChars = 50

// NonWhitespaceLen counts the characters of s that are not whitespace.
func NonWhitespaceLen(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}

// QuizQuestion is one multiple-choice question produced by the analysis.
// Options maps single-letter labels (A through D) to option text, and
// CorrectAnswer is always one of those labels.
type QuizQuestion struct {
	Question      string            `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
}

// AnalysisResult is the structured output of the language-model stage. A
// validated result always has a non-empty summary, at least MinInsights
// insights, and exactly QuizLength questions.
type AnalysisResult struct {
	Summary  string         `json:"summary"`
	Insights []string       `json:"insights"`
	Quiz     []QuizQuestion `json:"quiz"`
}

const (
	MinInsights = 5
	QuizLength  = 5
)
