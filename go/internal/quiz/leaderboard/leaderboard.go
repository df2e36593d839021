// Package leaderboard ranks session participants from their recorded
// submissions.
package leaderboard

import (
	"sort"

	"github.com/google/uuid"

	"github.com/Mhrnqaruni/ata-quiz-engine/go/internal/models"
)

// Compute builds the ranked leaderboard for a session. Ordering is score
// descending, then total answer time ascending, then join time ascending,
// which keeps the result deterministic for tied scores. Ranks are 1-based.
func Compute(participants []models.Participant, submissions []models.AnswerSubmission) []models.LeaderboardEntry {
	type tally struct {
		correct int
		timeMs  int
	}
	tallies := make(map[uuid.UUID]tally, len(participants))
	for _, sub := range submissions {
		t := tallies[sub.ParticipantID]
		if sub.IsCorrect {
			t.correct++
		}
		t.timeMs += sub.TimeTakenMs
		tallies[sub.ParticipantID] = t
	}

	entries := make([]models.LeaderboardEntry, 0, len(participants))
	joinOrder := make(map[uuid.UUID]int, len(participants))
	for i, p := range participants {
		joinOrder[p.ID] = i
		t := tallies[p.ID]
		entries = append(entries, models.LeaderboardEntry{
			ParticipantID:  p.ID,
			DisplayName:    p.DisplayName,
			Score:          p.Score,
			CorrectAnswers: t.correct,
			TotalTimeMs:    t.timeMs,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].TotalTimeMs != entries[j].TotalTimeMs {
			return entries[i].TotalTimeMs < entries[j].TotalTimeMs
		}
		return joinOrder[entries[i].ParticipantID] < joinOrder[entries[j].ParticipantID]
	})

	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// TopN returns the first n entries of a computed leaderboard, or the whole
// board when it has fewer than n entries.
func TopN(entries []models.LeaderboardEntry, n int) []models.LeaderboardEntry {
	if n < 0 || n >= len(entries) {
		return entries
	}
	return entries[:n]
}

// Rank returns the rank of a participant on a computed leaderboard, or 0 if
// the participant is not on it.
func Rank(entries []models.LeaderboardEntry, participantID uuid.UUID) int {
	for _, e := range entries {
		if e.ParticipantID == participantID {
			return e.Rank
		}
	}
	return 0
}
