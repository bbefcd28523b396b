package repository

import (
	"time"

	"github.com/yourusername/challenge-api/internal/domain/entity"
)

// MemberStats — агрегат по участнику группы за окно соревнования
type MemberStats struct {
	UserID           uint
	Username         string
	CorrectAnswers   int
	AttemptedAnswers int
	FirstCompletedAt time.Time
}

// AttemptRepository определяет методы для работы с сыгранными забегами
type AttemptRepository interface {
	Save(attempt *entity.ChallengeAttempt) error
	GetByChallenge(challengeID string) ([]entity.ChallengeAttempt, error)
	CountByChallenge(challengeID string) (int64, error)

	// AggregateByGroupWindow агрегирует correct/attempted по участникам группы
	// в пределах временного окна соревнования.
	AggregateByGroupWindow(groupID uint, from, to time.Time) ([]MemberStats, error)
}
