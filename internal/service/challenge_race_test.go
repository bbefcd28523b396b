package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	"github.com/yourusername/challenge-api/internal/domain/repository"
	apperrors "github.com/yourusername/challenge-api/internal/pkg/errors"
)

// memChallengeStore — потокобезопасная реализация repository.ChallengeRepository
// в памяти. Каждый метод держит мьютекс целиком, то есть ведёт себя как
// однострочный атомарный UPDATE: это позволяет гонять настоящие конкурентные
// сценарии против той же семантики условных обновлений, что и у Postgres.
type memChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]*entity.Challenge
}

func newMemChallengeStore() *memChallengeStore {
	return &memChallengeStore{challenges: make(map[string]*entity.Challenge)}
}

func (s *memChallengeStore) put(ch *entity.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ch
	s.challenges[ch.ID] = &cp
}

func (s *memChallengeStore) Create(challenge *entity.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.challenges[challenge.ID]; exists {
		return fmt.Errorf("%w: duplicate id", apperrors.ErrConflict)
	}
	cp := *challenge
	s.challenges[challenge.ID] = &cp
	return nil
}

func (s *memChallengeStore) GetByID(id string) (*entity.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (s *memChallengeStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, id)
	return nil
}

func (s *memChallengeStore) AcceptIfWaiting(id string, opponentID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok || ch.Status != entity.ChallengeStatusWaiting {
		return repository.ErrChallengeNotWaiting
	}
	op := opponentID
	ch.OpponentID = &op
	ch.Status = entity.ChallengeStatusReady
	return nil
}

func (s *memChallengeStore) LinkRematchIfUnset(id string, rematchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if ch.RematchChallengeID != nil {
		return repository.ErrRematchAlreadyLinked
	}
	rid := rematchID
	ch.RematchChallengeID = &rid
	return nil
}

func (s *memChallengeStore) ClearRematchPointer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.challenges[id]; ok {
		ch.RematchChallengeID = nil
	}
	return nil
}

func (s *memChallengeStore) MarkExpired(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.challenges[id]; ok && ch.Status == entity.ChallengeStatusWaiting {
		ch.Status = entity.ChallengeStatusExpired
	}
	return nil
}

func (s *memChallengeStore) UpdateStatus(id string, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.challenges[id]; ok {
		ch.Status = status
	}
	return nil
}

func (s *memChallengeStore) SetGameStarted(id string, startedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.challenges[id]; ok && ch.GameStartedAt == nil {
		t := startedAt
		ch.GameStartedAt = &t
		ch.Status = entity.ChallengeStatusPlaying
	}
	return nil
}

func (s *memChallengeStore) SetCreatorFinished(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.challenges[id]; ok {
		ch.CreatorFinished = true
	}
	return nil
}

// memQuestionStore — минимальный пул вопросов для конкурентных тестов
type memQuestionStore struct {
	pool []entity.Question
}

func (s *memQuestionStore) GetByID(id uint) (*entity.Question, error) {
	for i := range s.pool {
		if s.pool[i].ID == id {
			return &s.pool[i], nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memQuestionStore) GetByIDs(ids []uint) ([]entity.Question, error) {
	return s.pool, nil
}

func (s *memQuestionStore) GetByTopics(moduleID string, topicIDs []string, difficulty *int) ([]entity.Question, error) {
	return s.pool, nil
}

func (s *memQuestionStore) CountByTopics(moduleID string, topicIDs []string) (int64, error) {
	return int64(len(s.pool)), nil
}

// memUserStore — статичные пользователи для конкурентных тестов
type memUserStore struct{}

func (s *memUserStore) Create(user *entity.User) error { return nil }

func (s *memUserStore) GetByID(id uint) (*entity.User, error) {
	return &entity.User{ID: id, Username: fmt.Sprintf("user%d", id)}, nil
}

func (s *memUserStore) GetByEmail(email string) (*entity.User, error) {
	return nil, apperrors.ErrNotFound
}

func (s *memUserStore) GetByUsername(username string) (*entity.User, error) {
	return nil, apperrors.ErrNotFound
}

func (s *memUserStore) IncrementGamesPlayed(userID uint, scoreDelta int64) error { return nil }

func newRaceTestService(store *memChallengeStore) *ChallengeService {
	return NewChallengeService(
		store,
		&memQuestionStore{pool: makePool(6)},
		&memUserStore{},
		new(MockAttemptRepository),
		DefaultConfig(),
	)
}

// TestConcurrentAccept_AtMostOneOpponent — свойство принятия: из N конкурентных
// Accept ровно один получает дуэль, остальные видят конфликт.
func TestConcurrentAccept_AtMostOneOpponent(t *testing.T) {
	const attempts = 50

	for run := 0; run < 20; run++ {
		// Arrange
		store := newMemChallengeStore()
		svc := newRaceTestService(store)

		expiresAt := time.Now().Add(5 * time.Minute)
		store.put(&entity.Challenge{
			ID:        "RACE000001",
			CreatorID: 1,
			Type:      entity.ChallengeTypeDuel,
			Status:    entity.ChallengeStatusWaiting,
			ExpiresAt: &expiresAt,
		})

		// Act: N игроков пытаются принять одновременно
		var wg sync.WaitGroup
		successes := make([]uint, 0, attempts)
		var resMu sync.Mutex

		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func(userID uint) {
				defer wg.Done()
				_, err := svc.Accept("RACE000001", userID)
				if err == nil {
					resMu.Lock()
					successes = append(successes, userID)
					resMu.Unlock()
				} else {
					assert.True(t, errors.Is(err, apperrors.ErrConflict),
						"проигравший должен видеть конфликт, получено: %v", err)
				}
			}(uint(i + 2))
		}
		wg.Wait()

		// Assert: ровно один победитель, его ID записан в строке
		require.Len(t, successes, 1, "принять дуэль должен ровно один игрок")
		final, err := store.GetByID("RACE000001")
		require.NoError(t, err)
		require.NotNil(t, final.OpponentID)
		assert.Equal(t, successes[0], *final.OpponentID)
		assert.Equal(t, entity.ChallengeStatusReady, final.Status)
	}
}

// TestConcurrentRematch_BothConverge — свойство реванша: оба участника,
// запросившие реванш одновременно, сходятся на одном выжившем челлендже,
// осиротевших кандидатов не остаётся.
func TestConcurrentRematch_BothConverge(t *testing.T) {
	for run := 0; run < 50; run++ {
		// Arrange
		store := newMemChallengeStore()
		svc := newRaceTestService(store)

		opponentID := uint(2)
		store.put(&entity.Challenge{
			ID:         "ORIGINAL01",
			CreatorID:  1,
			OpponentID: &opponentID,
			Type:       entity.ChallengeTypeDuel,
			Status:     entity.ChallengeStatusFinished,
			ModuleID:   "arithmetic",
			TopicIDs:   entity.StringArray{"fractions"},
		})

		// Act: оба участника жмут «реванш» одновременно
		type result struct {
			challenge *entity.Challenge
			outcome   RematchOutcome
			err       error
		}
		results := make([]result, 2)
		var wg sync.WaitGroup
		for i, userID := range []uint{1, 2} {
			wg.Add(1)
			go func(slot int, uid uint) {
				defer wg.Done()
				ch, outcome, err := svc.Rematch("ORIGINAL01", uid)
				results[slot] = result{ch, outcome, err}
			}(i, userID)
		}
		wg.Wait()

		// Assert: оба запроса успешны и указывают на один и тот же реванш
		require.NoError(t, results[0].err)
		require.NoError(t, results[1].err)
		assert.Equal(t, results[0].challenge.ID, results[1].challenge.ID,
			"участники должны сойтись на одном реванше")

		// У оригинала ровно один привязанный реванш, и он существует
		original, err := store.GetByID("ORIGINAL01")
		require.NoError(t, err)
		require.NotNil(t, original.RematchChallengeID)
		assert.Equal(t, results[0].challenge.ID, *original.RematchChallengeID)

		// Осиротевших челленджей не осталось: в сторе только оригинал и реванш
		store.mu.Lock()
		count := len(store.challenges)
		store.mu.Unlock()
		assert.Equal(t, 2, count, "спекулятивный кандидат проигравшего должен быть удалён")

		// Ровно один created, второй — accepted либо created (победитель гонки)
		outcomes := map[RematchOutcome]int{}
		outcomes[results[0].outcome]++
		outcomes[results[1].outcome]++
		assert.Equal(t, 1, outcomes[RematchOutcomeCreated], "гонку выигрывает ровно один")
		assert.Equal(t, 1, outcomes[RematchOutcomeAccepted], "проигравший присоединяется")
	}
}

// TestConcurrentRematch_RepeatedClicksSingleRematch — многократные клики обоих
// участников порождают не более одного реванша на оригинал.
func TestConcurrentRematch_RepeatedClicksSingleRematch(t *testing.T) {
	// Arrange
	store := newMemChallengeStore()
	svc := newRaceTestService(store)

	opponentID := uint(2)
	store.put(&entity.Challenge{
		ID:         "ORIGINAL01",
		CreatorID:  1,
		OpponentID: &opponentID,
		Type:       entity.ChallengeTypeDuel,
		Status:     entity.ChallengeStatusFinished,
		ModuleID:   "arithmetic",
		TopicIDs:   entity.StringArray{"fractions"},
	})

	// Act: по 10 кликов от каждого участника параллельно
	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 10; i++ {
		for _, userID := range []uint{1, 2} {
			wg.Add(1)
			go func(uid uint) {
				defer wg.Done()
				ch, _, err := svc.Rematch("ORIGINAL01", uid)
				if err == nil {
					ids <- ch.ID
				}
			}(userID)
		}
	}
	wg.Wait()
	close(ids)

	// Assert: все успешные ответы указывают на один реванш
	unique := make(map[string]bool)
	for id := range ids {
		unique[id] = true
	}
	assert.Len(t, unique, 1, "все клики должны сходиться на единственном реванше")
}
