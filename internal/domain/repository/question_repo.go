package repository

import (
	"github.com/yourusername/challenge-api/internal/domain/entity"
)

// QuestionRepository определяет методы для доступа к пулу вопросов
type QuestionRepository interface {
	GetByID(id uint) (*entity.Question, error)
	GetByIDs(ids []uint) ([]entity.Question, error)

	// GetByTopics возвращает кандидатов по модулю и списку тем.
	// difficulty — опциональный фильтр сложности (nil — без фильтра).
	GetByTopics(moduleID string, topicIDs []string, difficulty *int) ([]entity.Question, error)
	CountByTopics(moduleID string, topicIDs []string) (int64, error)
}
