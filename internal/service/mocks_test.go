package service

import (
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	"github.com/yourusername/challenge-api/internal/domain/repository"
)

// ============================================================================
// Общие моки репозиториев для тестов сервисов
// ============================================================================

// MockChallengeRepository реализует repository.ChallengeRepository
type MockChallengeRepository struct {
	mock.Mock
}

func (m *MockChallengeRepository) Create(challenge *entity.Challenge) error {
	args := m.Called(challenge)
	return args.Error(0)
}

func (m *MockChallengeRepository) GetByID(id string) (*entity.Challenge, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Challenge), args.Error(1)
}

func (m *MockChallengeRepository) Delete(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockChallengeRepository) AcceptIfWaiting(id string, opponentID uint) error {
	args := m.Called(id, opponentID)
	return args.Error(0)
}

func (m *MockChallengeRepository) LinkRematchIfUnset(id string, rematchID string) error {
	args := m.Called(id, rematchID)
	return args.Error(0)
}

func (m *MockChallengeRepository) ClearRematchPointer(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockChallengeRepository) MarkExpired(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

func (m *MockChallengeRepository) UpdateStatus(id string, status string) error {
	args := m.Called(id, status)
	return args.Error(0)
}

func (m *MockChallengeRepository) SetGameStarted(id string, startedAt time.Time) error {
	args := m.Called(id, startedAt)
	return args.Error(0)
}

func (m *MockChallengeRepository) SetCreatorFinished(id string) error {
	args := m.Called(id)
	return args.Error(0)
}

// MockQuestionRepository реализует repository.QuestionRepository
type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) GetByID(id uint) (*entity.Question, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByIDs(ids []uint) ([]entity.Question, error) {
	args := m.Called(ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) GetByTopics(moduleID string, topicIDs []string, difficulty *int) ([]entity.Question, error) {
	args := m.Called(moduleID, topicIDs, difficulty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Question), args.Error(1)
}

func (m *MockQuestionRepository) CountByTopics(moduleID string, topicIDs []string) (int64, error) {
	args := m.Called(moduleID, topicIDs)
	return args.Get(0).(int64), args.Error(1)
}

// MockUserRepository реализует repository.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *entity.User) error {
	args := m.Called(user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(id uint) (*entity.User, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(email string) (*entity.User, error) {
	args := m.Called(email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsername(username string) (*entity.User, error) {
	args := m.Called(username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) IncrementGamesPlayed(userID uint, scoreDelta int64) error {
	args := m.Called(userID, scoreDelta)
	return args.Error(0)
}

// MockAttemptRepository реализует repository.AttemptRepository
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Save(attempt *entity.ChallengeAttempt) error {
	args := m.Called(attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByChallenge(challengeID string) ([]entity.ChallengeAttempt, error) {
	args := m.Called(challengeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.ChallengeAttempt), args.Error(1)
}

func (m *MockAttemptRepository) CountByChallenge(challengeID string) (int64, error) {
	args := m.Called(challengeID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAttemptRepository) AggregateByGroupWindow(groupID uint, from, to time.Time) ([]repository.MemberStats, error) {
	args := m.Called(groupID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.MemberStats), args.Error(1)
}

// MockCompetitionRepository реализует repository.CompetitionRepository
type MockCompetitionRepository struct {
	mock.Mock
}

func (m *MockCompetitionRepository) GetByID(id uint) (*entity.Competition, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Competition), args.Error(1)
}

func (m *MockCompetitionRepository) Create(competition *entity.Competition) error {
	args := m.Called(competition)
	return args.Error(0)
}

func (m *MockCompetitionRepository) UpdateStatus(id uint, status string) error {
	args := m.Called(id, status)
	return args.Error(0)
}

// MockCacheRepository реализует repository.CacheRepository
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) Get(key string) (string, error) {
	args := m.Called(key)
	return args.String(0), args.Error(1)
}

func (m *MockCacheRepository) Set(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

func (m *MockCacheRepository) SetJSON(key string, value interface{}, expiration time.Duration) error {
	args := m.Called(key, value, expiration)
	return args.Error(0)
}

func (m *MockCacheRepository) GetJSON(key string, dest interface{}) error {
	args := m.Called(key, dest)
	return args.Error(0)
}

func (m *MockCacheRepository) Exists(key string) (bool, error) {
	args := m.Called(key)
	return args.Bool(0), args.Error(1)
}
