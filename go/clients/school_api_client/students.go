package school_api_client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/quiz/roster"
)

type StudentRecord struct {
	SchoolID string `json:"school_id"`
	Name     string `json:"name"`
	Grade    string `json:"grade"`
	Email    string `json:"email"`
}

type StudentsResponse struct {
	ClassID  string          `json:"class_id"`
	Results  int             `json:"results"`
	Students []StudentRecord `json:"students"`
}

// FetchStudents implements roster.ClassDirectory.
func (c *SchoolApiClient) FetchStudents(ctx context.Context, classID uuid.UUID) ([]roster.Student, error) {
	endpoint := fmt.Sprintf("%s/%s%s", ClassesEndpoint, classID, StudentsEndpoint)
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get class students: %w", err)
	}

	var resp StudentsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse students response: %w", err)
	}

	students := make([]roster.Student, 0, len(resp.Students))
	for _, s := range resp.Students {
		students = append(students, roster.Student{
			SchoolID: s.SchoolID,
			Name:     s.Name,
		})
	}
	return students, nil
}
