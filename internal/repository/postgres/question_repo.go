package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	apperrors "github.com/yourusername/challenge-api/internal/pkg/errors"
)

// QuestionRepo реализует repository.QuestionRepository
type QuestionRepo struct {
	db *gorm.DB
}

// NewQuestionRepo создает новый репозиторий вопросов
func NewQuestionRepo(db *gorm.DB) *QuestionRepo {
	return &QuestionRepo{db: db}
}

// GetByID возвращает вопрос по ID
func (r *QuestionRepo) GetByID(id uint) (*entity.Question, error) {
	var question entity.Question
	err := r.db.First(&question, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &question, nil
}

// GetByIDs возвращает вопросы по списку ID. Порядок результата не гарантируется,
// вызывающий восстанавливает порядок по question_ids челленджа.
func (r *QuestionRepo) GetByIDs(ids []uint) ([]entity.Question, error) {
	var questions []entity.Question
	err := r.db.Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

// GetByTopics возвращает кандидатов по модулю и темам с опциональным фильтром сложности
func (r *QuestionRepo) GetByTopics(moduleID string, topicIDs []string, difficulty *int) ([]entity.Question, error) {
	query := r.db.Where("module_id = ? AND topic_id IN ?", moduleID, topicIDs)
	if difficulty != nil {
		query = query.Where("difficulty = ?", *difficulty)
	}

	var questions []entity.Question
	err := query.Find(&questions).Error
	return questions, err
}

// CountByTopics возвращает размер пула кандидатов по модулю и темам
func (r *QuestionRepo) CountByTopics(moduleID string, topicIDs []string) (int64, error) {
	var count int64
	err := r.db.Model(&entity.Question{}).
		Where("module_id = ? AND topic_id IN ?", moduleID, topicIDs).
		Count(&count).Error
	return count, err
}
