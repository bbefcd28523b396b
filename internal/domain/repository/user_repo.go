package repository

import (
	"github.com/yourusername/challenge-api/internal/domain/entity"
)

// UserRepository определяет методы для работы с пользователями
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id uint) (*entity.User, error)
	GetByEmail(email string) (*entity.User, error)
	GetByUsername(username string) (*entity.User, error)
	IncrementGamesPlayed(userID uint, scoreDelta int64) error
}
