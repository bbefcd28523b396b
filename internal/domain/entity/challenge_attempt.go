package entity

import "time"

// ChallengeAttempt представляет сыгранный забег участника в челлендже.
// Одна строка на участника; лидерборды строятся поверх этих строк.
type ChallengeAttempt struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	ChallengeID      string    `gorm:"size:16;not null;index" json:"challenge_id"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	Username         string    `gorm:"size:50;not null" json:"username"`
	Score            int       `gorm:"not null;default:0" json:"score"`
	CorrectAnswers   int       `gorm:"not null;default:0" json:"correct_answers"`
	AttemptedAnswers int       `gorm:"not null;default:0" json:"attempted_answers"`
	CompletedAt      time.Time `gorm:"not null;index" json:"completed_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// TableName определяет имя таблицы для GORM
func (ChallengeAttempt) TableName() string {
	return "challenge_attempts"
}

// Accuracy возвращает долю правильных ответов (0 при отсутствии попыток)
func (a *ChallengeAttempt) Accuracy() float64 {
	if a.AttemptedAnswers == 0 {
		return 0
	}
	return float64(a.CorrectAnswers) / float64(a.AttemptedAnswers)
}
