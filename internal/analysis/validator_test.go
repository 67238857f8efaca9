package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avela/lectern/internal/domain"
)

// buildResponse assembles a schema-correct reply with five insights and five
// questions, letting tests override individual pieces.
func buildResponse(t *testing.T, mutate func(m map[string]any)) string {
	t.Helper()

	quiz := make([]any, 0, domain.QuizLength)
	for i := 0; i < domain.QuizLength; i++ {
		quiz = append(quiz, map[string]any{
			"question":       fmt.Sprintf("Question %d?", i+1),
			"options":        map[string]string{"A": "London", "B": "Paris", "C": "Rome", "D": "Berlin"},
			"correct_answer": "B",
		})
	}
	m := map[string]any{
		"summary": "The lecture covers European capitals.",
		"insights": []string{
			"Capitals are political centers.",
			"Geography shapes history.",
			"Rivers anchored early settlements.",
			"Trade routes built cities.",
			"Borders moved more than cities did.",
		},
		"quiz": quiz,
	}
	if mutate != nil {
		mutate(m)
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return string(raw)
}

func TestParseAndValidate_PlainJSON(t *testing.T) {
	result, err := ParseAndValidate(buildResponse(t, nil))
	require.NoError(t, err)

	assert.Equal(t, "The lecture covers European capitals.", result.Summary)
	assert.Len(t, result.Insights, 5)
	require.Len(t, result.Quiz, 5)
	assert.Equal(t, "B", result.Quiz[0].CorrectAnswer)
	assert.Equal(t, "Paris", result.Quiz[0].Options["B"])
}

func TestParseAndValidate_FencedJSON(t *testing.T) {
	valid := buildResponse(t, nil)
	for name, wrapped := range map[string]string{
		"json tag": "Here is the analysis:\n```json\n" + valid + "\n```\nHope that helps!",
		"bare":     "```\n" + valid + "\n```",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := ParseAndValidate(wrapped)
			require.NoError(t, err)
			assert.Equal(t, "The lecture covers European capitals.", result.Summary)
		})
	}
}

func TestParseAndValidate_ProseAroundBraces(t *testing.T) {
	result, err := ParseAndValidate("Sure! " + buildResponse(t, nil) + " Let me know if you need more.")
	require.NoError(t, err)
	require.Len(t, result.Quiz, 5)
}

func TestParseAndValidate_OptionsList(t *testing.T) {
	raw := buildResponse(t, func(m map[string]any) {
		m["quiz"].([]any)[0] = map[string]any{
			"question":       "What is the capital of France?",
			"options":        []string{"Paris", "London", "Rome", "Berlin"},
			"correct_answer": "Paris",
		}
	})
	result, err := ParseAndValidate(raw)
	require.NoError(t, err)

	q := result.Quiz[0]
	assert.Equal(t, map[string]string{
		"A": "Paris",
		"B": "London",
		"C": "Rome",
		"D": "Berlin",
	}, q.Options)
	assert.Equal(t, "A", q.CorrectAnswer)
}

func TestResolveAnswer(t *testing.T) {
	options := map[string]string{"A": "London", "B": "Paris", "C": "Rome", "D": "Berlin"}

	tests := []struct {
		name   string
		answer string
		want   string
	}{
		{"upper label", "B", "B"},
		{"lower label", "b", "B"},
		{"label with spaces", " c ", "C"},
		{"exact text", "Paris", "B"},
		{"trimmed lowercased text", "  paris ", "B"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveAnswer(0, tt.answer, options)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAnswer_NoMatch(t *testing.T) {
	options := map[string]string{"A": "London", "B": "Paris", "C": "Rome", "D": "Berlin"}

	_, err := resolveAnswer(2, "Madrid", options)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Question)
	assert.Contains(t, err.Error(), "question 3")
	assert.Contains(t, err.Error(), "Madrid")
}

func TestParseAndValidate_WrongOptionCount(t *testing.T) {
	raw := buildResponse(t, func(m map[string]any) {
		m["quiz"].([]any)[2] = map[string]any{
			"question":       "q",
			"options":        []string{"one", "two", "three"},
			"correct_answer": "one",
		}
	})
	_, err := ParseAndValidate(raw)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 2, verr.Question)
	assert.Contains(t, verr.Detail, "got 3")
}

func TestParseAndValidate_UnresolvableAnswer(t *testing.T) {
	raw := buildResponse(t, func(m map[string]any) {
		m["quiz"].([]any)[4].(map[string]any)["correct_answer"] = "Madrid"
	})
	_, err := ParseAndValidate(raw)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 4, verr.Question)
}

func TestParseAndValidate_SchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]any)
		raw    string
		field  string
	}{
		{name: "not json at all", raw: "the model refused to answer"},
		{name: "unbalanced braces", raw: "{only an opening"},
		{name: "summary missing", mutate: func(m map[string]any) { delete(m, "summary") }, field: "summary"},
		{name: "summary wrong type", mutate: func(m map[string]any) { m["summary"] = 42 }, field: "summary"},
		{name: "summary empty", mutate: func(m map[string]any) { m["summary"] = "  " }, field: "summary"},
		{name: "insights missing", mutate: func(m map[string]any) { delete(m, "insights") }, field: "insights"},
		{name: "insights wrong type", mutate: func(m map[string]any) { m["insights"] = "oops" }, field: "insights"},
		{name: "insights too few", mutate: func(m map[string]any) { m["insights"] = []string{"one", "two"} }, field: "insights"},
		{name: "quiz missing", mutate: func(m map[string]any) { delete(m, "quiz") }, field: "quiz"},
		{name: "quiz wrong type", mutate: func(m map[string]any) { m["quiz"] = "not a list" }, field: "quiz"},
		{name: "quiz wrong length", mutate: func(m map[string]any) { m["quiz"] = m["quiz"].([]any)[:3] }, field: "quiz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			if raw == "" {
				raw = buildResponse(t, tt.mutate)
			}
			_, err := ParseAndValidate(raw)
			var serr *domain.SchemaError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tt.field, serr.Field)
		})
	}
}

func TestParseAndValidate_SnippetBounded(t *testing.T) {
	long := strings.Repeat("x", 5000)
	_, err := ParseAndValidate(long)
	var serr *domain.SchemaError
	require.ErrorAs(t, err, &serr)
	assert.LessOrEqual(t, len(serr.Snippet), snippetMaxLen)
}

func TestParseAndValidate_MixedCaseLabels(t *testing.T) {
	raw := buildResponse(t, func(m map[string]any) {
		m["quiz"].([]any)[0] = map[string]any{
			"question":       "q",
			"options":        map[string]string{"a": "one", "b": "two", "c": "three", "d": "four"},
			"correct_answer": "three",
		}
	})
	result, err := ParseAndValidate(raw)
	require.NoError(t, err)

	q := result.Quiz[0]
	assert.Equal(t, "C", q.CorrectAnswer)
	assert.Equal(t, "one", q.Options["A"])
}
