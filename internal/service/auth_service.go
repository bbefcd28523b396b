package service

import (
	"fmt"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	"github.com/yourusername/challenge-api/internal/domain/repository"
	apperrors "github.com/yourusername/challenge-api/internal/pkg/errors"
	"github.com/yourusername/challenge-api/pkg/auth"
)

// AuthService предоставляет методы для аутентификации и регистрации
type AuthService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
}

// NewAuthService создает новый сервис аутентификации
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// RegisterUser регистрирует нового пользователя.
// Пароль хешируется хуком BeforeSave; дубликаты username/email ловятся
// уникальными индексами и приходят сюда как ErrConflict.
func (s *AuthService) RegisterUser(username, email, password string) (*entity.User, error) {
	user := &entity.User{
		Username: username,
		Email:    email,
		Password: password,
	}

	if err := s.userRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// LoginUser аутентифицирует пользователя и возвращает JWT
func (s *AuthService) LoginUser(email, password string) (string, *entity.User, error) {
	user, err := s.userRepo.GetByEmail(email)
	if err != nil {
		// Не раскрываем, что именно не подошло
		return "", nil, fmt.Errorf("%w: invalid email or password", apperrors.ErrUnauthorized)
	}

	if !user.CheckPassword(password) {
		return "", nil, fmt.Errorf("%w: invalid email or password", apperrors.ErrUnauthorized)
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return token, user, nil
}
