package service

import "time"

// Constants for default values
const (
	// MinQuestionCount — минимальный размер пула: челлендж никогда не
	// сохраняется с меньшим количеством вопросов.
	MinQuestionCount = 5

	// DefaultMaxQuestionsPerGame — максимум вопросов в одном забеге
	DefaultMaxQuestionsPerGame = 20

	// DefaultGameDurationSec — длительность игры по умолчанию, если модуль не задаёт свою
	DefaultGameDurationSec = 120

	// DefaultWaitingTTL — сколько дуэль ждёт оппонента до истечения
	DefaultWaitingTTL = 5 * time.Minute

	// inviteCodeLength — длина публичного invite-кода челленджа
	inviteCodeLength = 10

	// maxCodeAttempts — количество попыток перегенерации кода при коллизии (23505)
	maxCodeAttempts = 3
)

// Config содержит настройки жизненного цикла челленджей
type Config struct {
	MinQuestionCount    int
	MaxQuestionsPerGame int
	WaitingTTL          time.Duration

	// ModuleDurations — длительность игры в секундах по модулям учебной программы
	ModuleDurations        map[string]int
	DefaultGameDurationSec int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		MinQuestionCount:    MinQuestionCount,
		MaxQuestionsPerGame: DefaultMaxQuestionsPerGame,
		WaitingTTL:          DefaultWaitingTTL,
		ModuleDurations: map[string]int{
			"arithmetic": 120,
			"algebra":    180,
			"geometry":   180,
		},
		DefaultGameDurationSec: DefaultGameDurationSec,
	}
}

// GameDurationFor возвращает длительность игры для модуля (фиксирована на модуль)
func (c *Config) GameDurationFor(moduleID string) int {
	if d, ok := c.ModuleDurations[moduleID]; ok {
		return d
	}
	return c.DefaultGameDurationSec
}
