package service

import (
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	"github.com/yourusername/challenge-api/internal/domain/repository"
	apperrors "github.com/yourusername/challenge-api/internal/pkg/errors"
)

// leaderboardCacheTTL — срок жизни снапшота лидерборда в Redis.
// Клиенты поллят каждые ~5 секунд, снапшот позволяет отдавать им кеш
// вместо похода в Postgres на каждый запрос.
const leaderboardCacheTTL = 5 * time.Second

// LeaderboardEntry — строка лидерборда челленджа
type LeaderboardEntry struct {
	Rank           int       `json:"rank"`
	UserID         uint      `json:"user_id"`
	Username       string    `json:"username"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	Accuracy       float64   `json:"accuracy"`
	CompletedAt    time.Time `json:"completed_at"`
}

// CompetitionStanding — строка таблицы группового соревнования
type CompetitionStanding struct {
	Rank           int     `json:"rank"`
	UserID         uint    `json:"user_id"`
	Username       string  `json:"username"`
	SolvedProblems int     `json:"solved_problems"`
	Accuracy       float64 `json:"accuracy"`
}

// CompetitionBoard — соревнование вместе с таблицей
type CompetitionBoard struct {
	Competition *entity.Competition   `json:"competition"`
	Standings   []CompetitionStanding `json:"standings"`
}

// LeaderboardService строит read-проекции: публичные лидерборды челленджей
// и таблицы групповых соревнований. Сервис только читает забеги —
// запись идёт через ChallengeService.SubmitScore.
type LeaderboardService struct {
	attemptRepo     repository.AttemptRepository
	challengeRepo   repository.ChallengeRepository
	competitionRepo repository.CompetitionRepository
	cacheRepo       repository.CacheRepository

	now func() time.Time
}

// NewLeaderboardService создает новый сервис лидербордов
func NewLeaderboardService(
	attemptRepo repository.AttemptRepository,
	challengeRepo repository.ChallengeRepository,
	competitionRepo repository.CompetitionRepository,
	cacheRepo repository.CacheRepository,
) *LeaderboardService {
	return &LeaderboardService{
		attemptRepo:     attemptRepo,
		challengeRepo:   challengeRepo,
		competitionRepo: competitionRepo,
		cacheRepo:       cacheRepo,
		now:             time.Now,
	}
}

// ChallengeLeaderboard возвращает ранжированный список забегов публичного
// челленджа. Кеш — fail-open: недоступный Redis деградирует до прямого
// чтения из Postgres, а не до ошибки.
func (s *LeaderboardService) ChallengeLeaderboard(challengeID string) ([]LeaderboardEntry, error) {
	challenge, err := s.challengeRepo.GetByID(challengeID)
	if err != nil {
		return nil, err
	}
	if !challenge.IsPublic() {
		return nil, fmt.Errorf("%w: leaderboard is only available for public challenges", apperrors.ErrValidation)
	}

	cacheKey := fmt.Sprintf("leaderboard:challenge:%s", challengeID)
	if s.cacheRepo != nil {
		var cached []LeaderboardEntry
		if err := s.cacheRepo.GetJSON(cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	attempts, err := s.attemptRepo.GetByChallenge(challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(attempts))
	for i, a := range attempts {
		entries = append(entries, LeaderboardEntry{
			Rank:           i + 1,
			UserID:         a.UserID,
			Username:       a.Username,
			Score:          a.Score,
			CorrectAnswers: a.CorrectAnswers,
			Accuracy:       a.Accuracy(),
			CompletedAt:    a.CompletedAt,
		})
	}

	if s.cacheRepo != nil {
		if err := s.cacheRepo.SetJSON(cacheKey, entries, leaderboardCacheTTL); err != nil {
			log.Printf("[LeaderboardService] Не удалось закешировать лидерборд %s: %v", challengeID, err)
		}
	}

	return entries, nil
}

// CompetitionLeaderboard возвращает таблицу группового соревнования.
// Если окно прошло, а статус ещё active, соревнование финализируется лениво
// прямо в этом чтении — фоновых свиперов нет.
func (s *LeaderboardService) CompetitionLeaderboard(competitionID uint) (*CompetitionBoard, error) {
	competition, err := s.competitionRepo.GetByID(competitionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if competition.IsActive() && competition.IsOver(now) {
		// Идемпотентная финализация: конкурентные читатели пишут одно и то же
		if err := s.competitionRepo.UpdateStatus(competition.ID, entity.CompetitionStatusFinished); err != nil {
			log.Printf("[LeaderboardService] Не удалось финализировать соревнование %d: %v", competition.ID, err)
		} else {
			competition.Status = entity.CompetitionStatusFinished
		}
	}

	cacheKey := fmt.Sprintf("leaderboard:competition:%d", competitionID)
	if s.cacheRepo != nil {
		var cached CompetitionBoard
		if err := s.cacheRepo.GetJSON(cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	stats, err := s.attemptRepo.AggregateByGroupWindow(competition.GroupID, competition.StartsAt, competition.EndsAt)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate competition stats: %w", err)
	}

	standings := rankStandings(stats)
	board := &CompetitionBoard{Competition: competition, Standings: standings}

	if s.cacheRepo != nil {
		ttl := leaderboardCacheTTL
		if !competition.IsActive() {
			// Завершённая таблица неизменна, её можно держать дольше
			ttl = time.Hour
		}
		if err := s.cacheRepo.SetJSON(cacheKey, board, ttl); err != nil {
			log.Printf("[LeaderboardService] Не удалось закешировать таблицу соревнования %d: %v", competitionID, err)
		}
	}

	return board, nil
}

// rankStandings сортирует агрегаты и присваивает места.
// Порядок: больше решённых, при равенстве — кто решил раньше, затем меньший user id.
func rankStandings(stats []repository.MemberStats) []CompetitionStanding {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].CorrectAnswers != stats[j].CorrectAnswers {
			return stats[i].CorrectAnswers > stats[j].CorrectAnswers
		}
		if !stats[i].FirstCompletedAt.Equal(stats[j].FirstCompletedAt) {
			return stats[i].FirstCompletedAt.Before(stats[j].FirstCompletedAt)
		}
		return stats[i].UserID < stats[j].UserID
	})

	standings := make([]CompetitionStanding, 0, len(stats))
	for i, st := range stats {
		accuracy := 0.0
		if st.AttemptedAnswers > 0 {
			accuracy = float64(st.CorrectAnswers) / float64(st.AttemptedAnswers)
		}
		standings = append(standings, CompetitionStanding{
			Rank:           i + 1,
			UserID:         st.UserID,
			Username:       st.Username,
			SolvedProblems: st.CorrectAnswers,
			Accuracy:       accuracy,
		})
	}
	return standings
}
