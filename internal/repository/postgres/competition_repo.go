package postgres

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	apperrors "github.com/yourusername/challenge-api/internal/pkg/errors"
)

// CompetitionRepo реализует repository.CompetitionRepository
type CompetitionRepo struct {
	db *gorm.DB
}

// NewCompetitionRepo создает новый репозиторий соревнований
func NewCompetitionRepo(db *gorm.DB) *CompetitionRepo {
	return &CompetitionRepo{db: db}
}

// GetByID возвращает соревнование по ID
func (r *CompetitionRepo) GetByID(id uint) (*entity.Competition, error) {
	var competition entity.Competition
	err := r.db.First(&competition, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &competition, nil
}

// Create создает новое соревнование
func (r *CompetitionRepo) Create(competition *entity.Competition) error {
	return r.db.Create(competition).Error
}

// UpdateStatus обновляет статус соревнования
func (r *CompetitionRepo) UpdateStatus(id uint, status string) error {
	return r.db.Model(&entity.Competition{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}
