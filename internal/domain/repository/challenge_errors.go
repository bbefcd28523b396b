package repository

import "errors"

var (
	// ErrChallengeNotWaiting означает, что условное обновление не затронуло строку:
	// челлендж уже не в статусе waiting (принят другим, истёк или удалён).
	ErrChallengeNotWaiting = errors.New("challenge is not waiting")

	// ErrRematchAlreadyLinked означает, что указатель на реванш уже установлен
	// конкурирующим запросом. Ожидаемый исход проигранной гонки, не сбой.
	ErrRematchAlreadyLinked = errors.New("rematch is already linked")
)
