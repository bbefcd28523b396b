package repository

import (
	"github.com/yourusername/challenge-api/internal/domain/entity"
)

// CompetitionRepository определяет методы для работы с групповыми соревнованиями
type CompetitionRepository interface {
	GetByID(id uint) (*entity.Competition, error)
	Create(competition *entity.Competition) error

	// UpdateStatus — безусловная запись статуса. Используется для ленивой
	// финализации: повторная финализация идемпотентна, CAS здесь не нужен.
	UpdateStatus(id uint, status string) error
}
