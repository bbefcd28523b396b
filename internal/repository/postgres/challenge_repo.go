package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/yourusername/challenge-api/internal/domain/entity"
	"github.com/yourusername/challenge-api/internal/domain/repository"
	apperrors "github.com/yourusername/challenge-api/internal/pkg/errors"
)

// ChallengeRepo реализует repository.ChallengeRepository
type ChallengeRepo struct {
	db *gorm.DB
}

// NewChallengeRepo создает новый репозиторий челленджей
func NewChallengeRepo(db *gorm.DB) *ChallengeRepo {
	return &ChallengeRepo{db: db}
}

// Create создает новый челлендж.
// Коллизия invite-кода (уникальный первичный ключ) возвращается как ErrConflict,
// сервис перегенерирует код и повторит вставку.
func (r *ChallengeRepo) Create(challenge *entity.Challenge) error {
	if err := r.db.Create(challenge).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: challenge code %s", apperrors.ErrConflict, challenge.ID)
		}
		return err
	}
	return nil
}

// GetByID возвращает челлендж по invite-коду
func (r *ChallengeRepo) GetByID(id string) (*entity.Challenge, error) {
	var challenge entity.Challenge
	err := r.db.First(&challenge, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &challenge, nil
}

// Delete удаляет челлендж. Используется для зачистки осиротевшего реванша
// проигравшего гонку и для удаления непринятой дуэли её создателем.
func (r *ChallengeRepo) Delete(id string) error {
	return r.db.Delete(&entity.Challenge{}, "id = ?", id).Error
}

// AcceptIfWaiting атомарно назначает оппонента: waiting → ready.
// Фундаментальная гарантия "не более одного оппонента": из любого числа
// конкурентных принятий ровно одно затронет строку.
// - RowsAffected == 0 → репо-ошибка ErrChallengeNotWaiting, причину различает сервис перечитыванием
// - Другая DB ошибка → возвращается как есть
func (r *ChallengeRepo) AcceptIfWaiting(id string, opponentID uint) error {
	result := r.db.Model(&entity.Challenge{}).
		Where("id = ? AND status = ?", id, entity.ChallengeStatusWaiting).
		Updates(map[string]interface{}{
			"opponent_id": opponentID,
			"status":      entity.ChallengeStatusReady,
		})

	if result.Error != nil {
		return fmt.Errorf("accept challenge %s failed: %w", id, result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: challenge %s", repository.ErrChallengeNotWaiting, id)
	}

	return nil
}

// LinkRematchIfUnset атомарно записывает одноразовый указатель на реванш.
// Условие rematch_challenge_id IS NULL гарантирует, что из конкурентных
// запросов реванша победит ровно один — без блокировок, одним UPDATE.
func (r *ChallengeRepo) LinkRematchIfUnset(id string, rematchID string) error {
	result := r.db.Model(&entity.Challenge{}).
		Where("id = ? AND rematch_challenge_id IS NULL", id).
		Update("rematch_challenge_id", rematchID)

	if result.Error != nil {
		return fmt.Errorf("link rematch for challenge %s failed: %w", id, result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: challenge %s", repository.ErrRematchAlreadyLinked, id)
	}

	return nil
}

// ClearRematchPointer безусловно сбрасывает указатель на реванш.
// Вызывается только когда протухание указателя уже подтверждено читателем.
func (r *ChallengeRepo) ClearRematchPointer(id string) error {
	return r.db.Model(&entity.Challenge{}).
		Where("id = ?", id).
		Update("rematch_challenge_id", nil).
		Error
}

// MarkExpired переводит waiting → expired. RowsAffected == 0 не ошибка:
// другой читатель мог пометить строку раньше, результат тот же.
func (r *ChallengeRepo) MarkExpired(id string) error {
	return r.db.Model(&entity.Challenge{}).
		Where("id = ? AND status = ?", id, entity.ChallengeStatusWaiting).
		Update("status", entity.ChallengeStatusExpired).
		Error
}

// UpdateStatus обновляет статус челленджа
func (r *ChallengeRepo) UpdateStatus(id string, status string) error {
	return r.db.Model(&entity.Challenge{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

// SetGameStarted фиксирует момент начала игры и переводит челлендж в playing.
// Условие game_started_at IS NULL защищает от перезаписи при двойном старте.
func (r *ChallengeRepo) SetGameStarted(id string, startedAt time.Time) error {
	return r.db.Model(&entity.Challenge{}).
		Where("id = ? AND game_started_at IS NULL", id).
		Updates(map[string]interface{}{
			"game_started_at": startedAt,
			"status":          entity.ChallengeStatusPlaying,
		}).
		Error
}

// SetCreatorFinished помечает, что создатель дуэли сдал финальный счёт
func (r *ChallengeRepo) SetCreatorFinished(id string) error {
	return r.db.Model(&entity.Challenge{}).
		Where("id = ?", id).
		Update("creator_finished", true).
		Error
}

// isUniqueViolation проверяет Postgres unique violation (23505) для pgconn и lib/pq драйверов
func isUniqueViolation(err error) bool {
	// pgx/v5 driver (pgconn.PgError)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	// lib/pq driver
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return false
}
