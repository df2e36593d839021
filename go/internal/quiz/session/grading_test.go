package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

func boolPtr(b bool) *bool { return &b }

func TestGradeMultipleChoice(t *testing.T) {
	q := models.Question{
		Type:           models.QuestionTypeMultipleChoice,
		CorrectOptions: []int{1, 3},
		Points:         10,
	}

	tests := []struct {
		name    string
		answer  string
		correct bool
		points  int
	}{
		{"exact set", `[1,3]`, true, 10},
		{"order does not matter", `[3,1]`, true, 10},
		{"partial selection", `[1]`, false, 0},
		{"extra selection", `[1,3,2]`, false, 0},
		{"wrong options", `[0,2]`, false, 0},
		{"empty answer", `[]`, false, 0},
		{"malformed payload", `"not an array"`, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, points := Grade(q, json.RawMessage(tt.answer))
			assert.Equal(t, tt.correct, correct)
			assert.Equal(t, tt.points, points)
		})
	}
}

func TestGradeTrueFalse(t *testing.T) {
	q := models.Question{
		Type:        models.QuestionTypeTrueFalse,
		CorrectBool: boolPtr(true),
		Points:      5,
	}

	correct, points := Grade(q, json.RawMessage(`[true]`))
	assert.True(t, correct)
	assert.Equal(t, 5, points)

	correct, points = Grade(q, json.RawMessage(`[false]`))
	assert.False(t, correct)
	assert.Zero(t, points)

	correct, _ = Grade(q, json.RawMessage(`[true,false]`))
	assert.False(t, correct, "multiple selections are invalid")
}

func TestGradeShortAnswer(t *testing.T) {
	q := models.Question{
		Type:     models.QuestionTypeShortAnswer,
		Keywords: []string{"photosynthesis", "chlorophyll"},
		Points:   8,
	}

	tests := []struct {
		name    string
		answer  string
		correct bool
	}{
		{"exact keyword", `["photosynthesis"]`, true},
		{"keyword within sentence", `["plants use Photosynthesis to make food"]`, true},
		{"case insensitive", `["CHLOROPHYLL"]`, true},
		{"no keyword", `["plants eat sunlight"]`, false},
		{"empty answer", `[""]`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, _ := Grade(q, json.RawMessage(tt.answer))
			assert.Equal(t, tt.correct, correct)
		})
	}
}

func TestGradePollNeverScores(t *testing.T) {
	q := models.Question{
		Type:    models.QuestionTypePoll,
		Options: []string{"cats", "dogs"},
		Points:  100,
	}

	correct, points := Grade(q, json.RawMessage(`[0]`))
	assert.False(t, correct)
	assert.Zero(t, points)
}

func TestCorrectAnswerJSON(t *testing.T) {
	mc := models.Question{Type: models.QuestionTypeMultipleChoice, CorrectOptions: []int{2}}
	assert.JSONEq(t, `[2]`, string(CorrectAnswerJSON(mc)))

	tf := models.Question{Type: models.QuestionTypeTrueFalse, CorrectBool: boolPtr(false)}
	assert.JSONEq(t, `[false]`, string(CorrectAnswerJSON(tf)))

	sa := models.Question{Type: models.QuestionTypeShortAnswer, Keywords: []string{"mitochondria"}}
	assert.JSONEq(t, `["mitochondria"]`, string(CorrectAnswerJSON(sa)))

	poll := models.Question{Type: models.QuestionTypePoll}
	assert.Nil(t, CorrectAnswerJSON(poll))
}
