package session

import (
	"encoding/json"
	"strings"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

// Grade evaluates a raw answer payload against a question. Answers arrive as
// JSON arrays (one element per selected value). Polls are never graded.
func Grade(q models.Question, answer json.RawMessage) (correct bool, points int) {
	if !q.Type.Graded() {
		return false, 0
	}

	switch q.Type {
	case models.QuestionTypeMultipleChoice:
		var picked []int
		if err := json.Unmarshal(answer, &picked); err != nil {
			return false, 0
		}
		if sameOptionSet(picked, q.CorrectOptions) {
			return true, q.Points
		}

	case models.QuestionTypeTrueFalse:
		var picked []bool
		if err := json.Unmarshal(answer, &picked); err != nil {
			return false, 0
		}
		if len(picked) == 1 && q.CorrectBool != nil && picked[0] == *q.CorrectBool {
			return true, q.Points
		}

	case models.QuestionTypeShortAnswer:
		var picked []string
		if err := json.Unmarshal(answer, &picked); err != nil {
			return false, 0
		}
		if len(picked) == 1 && matchesKeywords(picked[0], q.Keywords) {
			return true, q.Points
		}
	}

	return false, 0
}

// CorrectAnswerJSON renders the question's correct answer for feedback
// payloads, in the same array shape answers are submitted in.
func CorrectAnswerJSON(q models.Question) json.RawMessage {
	switch q.Type {
	case models.QuestionTypeMultipleChoice:
		if len(q.CorrectOptions) == 0 {
			return nil
		}
		data, _ := json.Marshal(q.CorrectOptions)
		return data
	case models.QuestionTypeTrueFalse:
		if q.CorrectBool == nil {
			return nil
		}
		data, _ := json.Marshal([]bool{*q.CorrectBool})
		return data
	case models.QuestionTypeShortAnswer:
		if len(q.Keywords) == 0 {
			return nil
		}
		data, _ := json.Marshal(q.Keywords)
		return data
	}
	return nil
}

func sameOptionSet(a, b []int) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	set := make(map[int]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	for _, v := range a {
		if !set[v] {
			return false
		}
	}
	return true
}

// matchesKeywords checks a short answer against the configured keywords,
// case-insensitively. Any keyword contained in the answer counts.
func matchesKeywords(answer string, keywords []string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	if answer == "" {
		return false
	}
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(answer, kw) {
			return true
		}
	}
	return false
}
