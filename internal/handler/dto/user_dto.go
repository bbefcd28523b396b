package dto

import (
	"time"

	"github.com/yourusername/challenge-api/internal/domain/entity"
)

// UserResponse представляет пользователя в формате для ответа клиенту
type UserResponse struct {
	ID                    uint      `json:"id"`
	Username              string    `json:"username"`
	Email                 string    `json:"email"`
	ProfilePicture        string    `json:"profile_picture"`
	UnlockedPremiumTopics []string  `json:"unlocked_premium_topics"`
	GamesPlayed           int64     `json:"games_played"`
	TotalScore            int64     `json:"total_score"`
	CreatedAt             time.Time `json:"created_at"`
}

// NewUserResponse создает DTO пользователя
func NewUserResponse(user *entity.User) *UserResponse {
	return &UserResponse{
		ID:                    user.ID,
		Username:              user.Username,
		Email:                 user.Email,
		ProfilePicture:        user.ProfilePicture,
		UnlockedPremiumTopics: []string(user.UnlockedPremiumTopics),
		GamesPlayed:           user.GamesPlayed,
		TotalScore:            user.TotalScore,
		CreatedAt:             user.CreatedAt,
	}
}

// AuthResponse — ответ на успешный login/register
type AuthResponse struct {
	Token string        `json:"token,omitempty"`
	User  *UserResponse `json:"user"`
}
