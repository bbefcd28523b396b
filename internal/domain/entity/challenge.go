package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Константы типов челленджа
const (
	// ChallengeTypeDuel — дуэль один на один с идентичным набором вопросов.
	ChallengeTypeDuel = "duel"
	// ChallengeTypePublic — одиночный забег на счёт с общим лидербордом.
	ChallengeTypePublic = "public"
)

// Константы статусов челленджа
const (
	ChallengeStatusWaiting  = "waiting"
	ChallengeStatusReady    = "ready"
	ChallengeStatusPlaying  = "playing"
	ChallengeStatusFinished = "finished"
	ChallengeStatusExpired  = "expired"
)

// UintArray - пользовательский тип для хранения упорядоченного списка ID вопросов в JSONB.
// Порядок элементов значим: он фиксируется при создании челленджа и одинаков для обоих участников.
type UintArray []uint

// Scan реализует интерфейс sql.Scanner для UintArray
func (a *UintArray) Scan(value interface{}) error {
	if value == nil {
		*a = UintArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*a = UintArray{}
		return nil
	}

	return json.Unmarshal(bytes, a)
}

// Value реализует интерфейс driver.Valuer для UintArray
func (a UintArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return []byte("[]"), nil // Возвращаем пустой JSON массив вместо null
	}
	return json.Marshal(a)
}

// Challenge представляет челлендж: дуэль или публичный забег на счёт.
// ID — короткий непрозрачный код, встраиваемый в invite-ссылки.
type Challenge struct {
	ID                    string      `gorm:"primaryKey;size:16" json:"id"`
	CreatorID             uint        `gorm:"not null;index" json:"creator_id"`
	OpponentID            *uint       `gorm:"index" json:"opponent_id,omitempty"`
	Type                  string      `gorm:"size:10;not null;default:'duel'" json:"type"`
	Status                string      `gorm:"size:20;not null;default:'waiting';index" json:"status"`
	ModuleID              string      `gorm:"size:50;not null" json:"module_id"`
	TopicIDs              StringArray `gorm:"type:jsonb;not null" json:"topic_ids"`
	QuestionIDs           UintArray   `gorm:"type:jsonb;not null" json:"-"`
	GameDurationSeconds   int         `gorm:"not null;default:120" json:"game_duration_seconds"`
	CreatorFinished       bool        `gorm:"not null;default:false" json:"creator_finished"`
	GameStartedAt         *time.Time  `json:"game_started_at,omitempty"`
	ExpiresAt             *time.Time  `json:"expires_at,omitempty"`
	RematchChallengeID    *string     `gorm:"size:16" json:"rematch_challenge_id,omitempty"`
	UnlockedPremiumTopics StringArray `gorm:"type:jsonb;not null;default:'[]'" json:"-"`
	CreatedAt             time.Time   `json:"created_at"`
	UpdatedAt             time.Time   `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Challenge) TableName() string {
	return "challenges"
}

// IsDuel проверяет, является ли челлендж дуэлью
func (ch *Challenge) IsDuel() bool {
	return ch.Type == ChallengeTypeDuel
}

// IsPublic проверяет, является ли челлендж публичным забегом
func (ch *Challenge) IsPublic() bool {
	return ch.Type == ChallengeTypePublic
}

// IsWaiting проверяет, ждёт ли челлендж оппонента
func (ch *Challenge) IsWaiting() bool {
	return ch.Status == ChallengeStatusWaiting
}

// IsFinished проверяет, завершён ли челлендж
func (ch *Challenge) IsFinished() bool {
	return ch.Status == ChallengeStatusFinished
}

// IsTerminal проверяет, находится ли челлендж в терминальном статусе
func (ch *Challenge) IsTerminal() bool {
	return ch.Status == ChallengeStatusFinished || ch.Status == ChallengeStatusExpired
}

// IsExpired лениво вычисляет истечение: статус expired ИЛИ waiting с прошедшим expires_at.
// Фонового свипера нет — каждый читатель обязан выводить истечение из метки времени сам.
func (ch *Challenge) IsExpired(now time.Time) bool {
	if ch.Status == ChallengeStatusExpired {
		return true
	}
	return ch.Status == ChallengeStatusWaiting && ch.ExpiresAt != nil && ch.ExpiresAt.Before(now)
}

// IsParticipant проверяет, является ли пользователь создателем или оппонентом челленджа
func (ch *Challenge) IsParticipant(userID uint) bool {
	if ch.CreatorID == userID {
		return true
	}
	return ch.OpponentID != nil && *ch.OpponentID == userID
}

// HasOpponent проверяет, принят ли челлендж вторым участником
func (ch *Challenge) HasOpponent() bool {
	return ch.OpponentID != nil
}

// GameDeadline возвращает момент окончания игры, если игра начата
func (ch *Challenge) GameDeadline() *time.Time {
	if ch.GameStartedAt == nil {
		return nil
	}
	deadline := ch.GameStartedAt.Add(time.Duration(ch.GameDurationSeconds) * time.Second)
	return &deadline
}

// GameTimeElapsed проверяет, истекло ли игровое время
func (ch *Challenge) GameTimeElapsed(now time.Time) bool {
	deadline := ch.GameDeadline()
	return deadline != nil && deadline.Before(now)
}
