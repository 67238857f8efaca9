// Package analysis parses and repairs language-model output into the
// structured result the pipeline expects. Models routinely wrap JSON in
// markdown fences or prose, emit option lists instead of label maps, and
// answer with option text instead of a label; this package normalizes all of
// that before anything downstream sees it.
package analysis

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/avela/lectern/internal/domain"
)

const (
	optionCount    = 4
	snippetMaxLen  = 200
	fenceDelimiter = "```"
)

// ParseAndValidate extracts the JSON payload from a raw model response,
// decodes it, and normalizes every quiz question. It never mutates valid
// input; it only repairs recoverable deviations.
func ParseAndValidate(raw string) (*domain.AnalysisResult, error) {
	payload, err := extractPayload(raw)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, &domain.SchemaError{Snippet: snippet(payload)}
	}

	result := &domain.AnalysisResult{}

	rawSummary, ok := fields["summary"]
	if !ok {
		return nil, &domain.SchemaError{Field: "summary", Snippet: snippet(payload)}
	}
	if err := json.Unmarshal(rawSummary, &result.Summary); err != nil || strings.TrimSpace(result.Summary) == "" {
		return nil, &domain.SchemaError{Field: "summary", Snippet: snippet(string(rawSummary))}
	}

	rawInsights, ok := fields["insights"]
	if !ok {
		return nil, &domain.SchemaError{Field: "insights", Snippet: snippet(payload)}
	}
	if err := json.Unmarshal(rawInsights, &result.Insights); err != nil || len(result.Insights) < domain.MinInsights {
		return nil, &domain.SchemaError{Field: "insights", Snippet: snippet(string(rawInsights))}
	}

	rawQuiz, ok := fields["quiz"]
	if !ok {
		return nil, &domain.SchemaError{Field: "quiz", Snippet: snippet(payload)}
	}
	var questions []rawQuestion
	if err := json.Unmarshal(rawQuiz, &questions); err != nil || len(questions) != domain.QuizLength {
		return nil, &domain.SchemaError{Field: "quiz", Snippet: snippet(string(rawQuiz))}
	}

	result.Quiz = make([]domain.QuizQuestion, 0, len(questions))
	for i, q := range questions {
		normalized, err := normalizeQuestion(i, q)
		if err != nil {
			return nil, err
		}
		result.Quiz = append(result.Quiz, normalized)
	}

	return result, nil
}

type rawQuestion struct {
	Question      *string         `json:"question"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer *string         `json:"correct_answer"`
}

func normalizeQuestion(index int, q rawQuestion) (domain.QuizQuestion, error) {
	if q.Question == nil || strings.TrimSpace(*q.Question) == "" {
		return domain.QuizQuestion{}, &domain.ValidationError{Question: index, Detail: "missing question text"}
	}
	if q.CorrectAnswer == nil {
		return domain.QuizQuestion{}, &domain.ValidationError{Question: index, Detail: "missing correct_answer"}
	}

	options, err := normalizeOptions(index, q.Options)
	if err != nil {
		return domain.QuizQuestion{}, err
	}

	answer, err := resolveAnswer(index, *q.CorrectAnswer, options)
	if err != nil {
		return domain.QuizQuestion{}, err
	}

	return domain.QuizQuestion{
		Question:      *q.Question,
		Options:       options,
		CorrectAnswer: answer,
	}, nil
}

// normalizeOptions accepts either the canonical label map or a bare list of
// option texts, which is assigned labels A through D in order.
func normalizeOptions(index int, raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, &domain.ValidationError{Question: index, Detail: "missing options"}
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		options := make(map[string]string, len(asMap))
		for label, text := range asMap {
			options[strings.ToUpper(strings.TrimSpace(label))] = text
		}
		if len(options) != optionCount {
			return nil, &domain.ValidationError{
				Question: index,
				Detail:   fmt.Sprintf("expected %d options, got %d", optionCount, len(options)),
			}
		}
		return options, nil
	}

	var asList []string
	if err := json.Unmarshal(raw, &asList); err != nil {
		return nil, &domain.SchemaError{Field: "quiz.options", Snippet: snippet(string(raw))}
	}
	if len(asList) != optionCount {
		return nil, &domain.ValidationError{
			Question: index,
			Detail:   fmt.Sprintf("expected %d options, got %d", optionCount, len(asList)),
		}
	}
	options := make(map[string]string, optionCount)
	for i, text := range asList {
		options[string(rune('A'+i))] = text
	}
	return options, nil
}

// resolveAnswer maps whatever the model put in correct_answer to an option
// label. Single letters match labels case-insensitively; anything else is
// matched against option text, first exactly, then trimmed and lowercased.
// Ties resolve to the lowest label.
func resolveAnswer(index int, answer string, options map[string]string) (string, error) {
	trimmed := strings.TrimSpace(answer)

	if len(trimmed) == 1 {
		label := strings.ToUpper(trimmed)
		if _, ok := options[label]; ok {
			return label, nil
		}
	}

	labels := sortedLabels(options)
	for _, label := range labels {
		if options[label] == answer {
			return label, nil
		}
	}

	want := strings.ToLower(strings.TrimSpace(answer))
	for _, label := range labels {
		if strings.ToLower(strings.TrimSpace(options[label])) == want {
			return label, nil
		}
	}

	return "", &domain.ValidationError{
		Question: index,
		Detail:   fmt.Sprintf("correct_answer %q matches no option label or text (options: %v)", answer, options),
	}
}

func sortedLabels(options map[string]string) []string {
	labels := make([]string, 0, len(options))
	for label := range options {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// extractPayload strips everything around the JSON object: a markdown code
// fence if present, otherwise whatever prose surrounds the outermost braces.
func extractPayload(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", &domain.SchemaError{Snippet: ""}
	}

	if start := strings.Index(s, fenceDelimiter); start != -1 {
		rest := s[start+len(fenceDelimiter):]
		if nl := strings.IndexByte(rest, '\n'); nl != -1 {
			lang := strings.TrimSpace(rest[:nl])
			if lang == "" || strings.EqualFold(lang, "json") {
				rest = rest[nl+1:]
				if end := strings.Index(rest, fenceDelimiter); end != -1 {
					s = strings.TrimSpace(rest[:end])
				}
			}
		}
	}

	open := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if open == -1 || end == -1 || end < open {
		return "", &domain.SchemaError{Snippet: snippet(s)}
	}
	return s[open : end+1], nil
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > snippetMaxLen {
		return s[:snippetMaxLen]
	}
	return s
}
