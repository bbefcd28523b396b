package repository

import (
	"time"

	"github.com/yourusername/challenge-api/internal/domain/entity"
)

// ChallengeRepository определяет методы для работы с челленджами.
// Все решающие гонку мутации выражены условными обновлениями (compare-and-swap):
// обработчики stateless и могут выполняться параллельно в независимых процессах,
// поэтому координация идёт исключительно через атомарные условные UPDATE в базе.
type ChallengeRepository interface {
	Create(challenge *entity.Challenge) error
	GetByID(id string) (*entity.Challenge, error)
	Delete(id string) error

	// AcceptIfWaiting атомарно устанавливает оппонента и переводит waiting → ready.
	// Возвращает ErrChallengeNotWaiting, если условие не выполнено (гонка проиграна
	// или челлендж уже не в ожидании).
	AcceptIfWaiting(id string, opponentID uint) error

	// LinkRematchIfUnset атомарно записывает указатель на реванш, только если он ещё NULL.
	// Это единственный CAS, решающий гонку реванш-переговоров.
	// Возвращает ErrRematchAlreadyLinked при проигранной гонке.
	LinkRematchIfUnset(id string, rematchID string) error

	// ClearRematchPointer безусловно сбрасывает указатель на реванш.
	// Вызывается только после подтверждения, что указатель протух.
	ClearRematchPointer(id string) error

	// MarkExpired переводит waiting → expired. Условие на waiting делает операцию
	// идемпотентной, повторная пометка не считается ошибкой.
	MarkExpired(id string) error

	UpdateStatus(id string, status string) error
	SetGameStarted(id string, startedAt time.Time) error
	SetCreatorFinished(id string) error
}
