package postgres

import (
	"time"

	"gorm.io/gorm"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	"github.com/yourusername/challenge-api/internal/domain/repository"
)

// AttemptRepo реализует repository.AttemptRepository
type AttemptRepo struct {
	db *gorm.DB
}

// NewAttemptRepo создает новый репозиторий забегов
func NewAttemptRepo(db *gorm.DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Save сохраняет сыгранный забег
func (r *AttemptRepo) Save(attempt *entity.ChallengeAttempt) error {
	return r.db.Create(attempt).Error
}

// GetByChallenge возвращает забеги челленджа, отсортированные для лидерборда:
// счёт по убыванию, при равенстве — более ранний completed_at, затем меньший user_id.
// Вторичные ключи выбраны, чтобы порядок был детерминирован между запросами.
func (r *AttemptRepo) GetByChallenge(challengeID string) ([]entity.ChallengeAttempt, error) {
	var attempts []entity.ChallengeAttempt
	err := r.db.Where("challenge_id = ?", challengeID).
		Order("score DESC, completed_at ASC, user_id ASC").
		Find(&attempts).Error
	return attempts, err
}

// CountByChallenge возвращает количество сданных забегов челленджа
func (r *AttemptRepo) CountByChallenge(challengeID string) (int64, error) {
	var count int64
	err := r.db.Model(&entity.ChallengeAttempt{}).
		Where("challenge_id = ?", challengeID).
		Count(&count).Error
	return count, err
}

// AggregateByGroupWindow агрегирует статистику участников группы за окно соревнования.
// Членство определяется по group_members; учитываются только забеги внутри окна.
func (r *AttemptRepo) AggregateByGroupWindow(groupID uint, from, to time.Time) ([]repository.MemberStats, error) {
	var stats []repository.MemberStats
	err := r.db.Table("challenge_attempts").
		Select(`
			challenge_attempts.user_id,
			challenge_attempts.username,
			COALESCE(SUM(challenge_attempts.correct_answers), 0) as correct_answers,
			COALESCE(SUM(challenge_attempts.attempted_answers), 0) as attempted_answers,
			MIN(challenge_attempts.completed_at) as first_completed_at
		`).
		Joins("JOIN group_members ON group_members.user_id = challenge_attempts.user_id").
		Where("group_members.group_id = ?", groupID).
		Where("challenge_attempts.completed_at >= ? AND challenge_attempts.completed_at <= ?", from, to).
		Group("challenge_attempts.user_id, challenge_attempts.username").
		Scan(&stats).Error
	return stats, err
}
