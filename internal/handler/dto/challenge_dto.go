package dto

import (
	"time"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	"github.com/yourusername/challenge-api/internal/handler/helper"
)

// QuestionResponse представляет вопрос в формате для ответа клиенту.
// Правильный вариант никогда не попадает в ответ.
type QuestionResponse struct {
	ID         uint                    `json:"id"`
	TopicID    string                  `json:"topic_id"`
	Text       string                  `json:"text"`
	Options    []helper.QuestionOption `json:"options"`
	Difficulty int                     `json:"difficulty"`
}

// ChallengeResponse представляет челлендж в формате для ответа клиенту
type ChallengeResponse struct {
	ID                  string             `json:"id"`
	Type                string             `json:"type"`
	Status              string             `json:"status"`
	CreatorID           uint               `json:"creator_id"`
	OpponentID          *uint              `json:"opponent_id,omitempty"`
	ModuleID            string             `json:"module_id"`
	TopicIDs            []string           `json:"topic_ids"`
	QuestionCount       int                `json:"question_count"`
	GameDurationSeconds int                `json:"game_duration_seconds"`
	GameStartedAt       *time.Time         `json:"game_started_at,omitempty"`
	ExpiresAt           *time.Time         `json:"expires_at,omitempty"`
	RematchChallengeID  *string            `json:"rematch_challenge_id,omitempty"`
	Questions           []QuestionResponse `json:"questions,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
}

// NewQuestionResponse создает DTO для вопроса
func NewQuestionResponse(q *entity.Question) QuestionResponse {
	return QuestionResponse{
		ID:         q.ID,
		TopicID:    q.TopicID,
		Text:       q.Text,
		Options:    helper.ConvertOptionsToObjects(q.Options),
		Difficulty: q.Difficulty,
	}
}

// NewChallengeResponse создает DTO для челленджа. Вопросы включаются только
// когда игра идёт: до старта участники не должны видеть последовательность.
func NewChallengeResponse(challenge *entity.Challenge, questions []entity.Question) *ChallengeResponse {
	resp := &ChallengeResponse{
		ID:                  challenge.ID,
		Type:                challenge.Type,
		Status:              challenge.Status,
		CreatorID:           challenge.CreatorID,
		OpponentID:          challenge.OpponentID,
		ModuleID:            challenge.ModuleID,
		TopicIDs:            []string(challenge.TopicIDs),
		QuestionCount:       len(challenge.QuestionIDs),
		GameDurationSeconds: challenge.GameDurationSeconds,
		GameStartedAt:       challenge.GameStartedAt,
		ExpiresAt:           challenge.ExpiresAt,
		RematchChallengeID:  challenge.RematchChallengeID,
		CreatedAt:           challenge.CreatedAt,
	}

	for i := range questions {
		resp.Questions = append(resp.Questions, NewQuestionResponse(&questions[i]))
	}
	return resp
}

// RematchResponse — результат реванш-переговоров
type RematchResponse struct {
	Outcome   string             `json:"outcome"`
	Challenge *ChallengeResponse `json:"challenge"`
}
