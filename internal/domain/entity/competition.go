package entity

import "time"

// Константы статусов группового соревнования
const (
	CompetitionStatusActive   = "active"
	CompetitionStatusFinished = "finished"
)

// Competition представляет групповое соревнование с временным окном.
// Переход active → finished выполняется лениво при чтении после ends_at:
// повторная финализация идемпотентна, поэтому гонок здесь нет.
type Competition struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	GroupID   uint      `gorm:"not null;index" json:"group_id"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	ModuleID  string    `gorm:"size:50;not null" json:"module_id"`
	StartsAt  time.Time `gorm:"not null" json:"starts_at"`
	EndsAt    time.Time `gorm:"not null;index" json:"ends_at"`
	Status    string    `gorm:"size:20;not null;default:'active'" json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName определяет имя таблицы для GORM
func (Competition) TableName() string {
	return "competitions"
}

// IsOver проверяет, прошло ли окно соревнования
func (c *Competition) IsOver(now time.Time) bool {
	return c.EndsAt.Before(now)
}

// IsActive проверяет, активно ли соревнование по статусу
func (c *Competition) IsActive() bool {
	return c.Status == CompetitionStatusActive
}
