package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	"github.com/yourusername/challenge-api/internal/domain/repository"
	apperrors "github.com/yourusername/challenge-api/internal/pkg/errors"
)

// RematchOutcome — исход реванш-переговоров для клиента
type RematchOutcome string

const (
	// RematchOutcomeCreated — вызывающий выиграл гонку и создал реванш
	RematchOutcomeCreated RematchOutcome = "created"
	// RematchOutcomeAccepted — вызывающий присоединился к реваншу второго участника
	RematchOutcomeAccepted RematchOutcome = "accepted"
	// RematchOutcomeAlreadyRequested — вызывающий уже запрашивал реванш, повторный клик бесплатен
	RematchOutcomeAlreadyRequested RematchOutcome = "already_requested"
)

// CreateChallengeParams — параметры создания челленджа
type CreateChallengeParams struct {
	ModuleID   string
	TopicIDs   []string
	Type       string
	Difficulty *int // опциональный фильтр сложности
	Randomize  bool // случайная подвыборка пула, если кандидатов больше лимита
}

// ChallengeService реализует жизненный цикл челленджа: создание, принятие,
// ленивое истечение и реванш-переговоры. Сервис полностью stateless —
// все решения между конкурирующими запросами принимают условные обновления в базе.
type ChallengeService struct {
	challengeRepo repository.ChallengeRepository
	questionRepo  repository.QuestionRepository
	userRepo      repository.UserRepository
	attemptRepo   repository.AttemptRepository
	config        *Config

	// now подменяется в тестах
	now func() time.Time
}

// NewChallengeService создает новый сервис челленджей
func NewChallengeService(
	challengeRepo repository.ChallengeRepository,
	questionRepo repository.QuestionRepository,
	userRepo repository.UserRepository,
	attemptRepo repository.AttemptRepository,
	config *Config,
) *ChallengeService {
	return &ChallengeService{
		challengeRepo: challengeRepo,
		questionRepo:  questionRepo,
		userRepo:      userRepo,
		attemptRepo:   attemptRepo,
		config:        config,
		now:           time.Now,
	}
}

// inviteCodeAlphabet — base62, без спецсимволов: код встраивается в URL
const inviteCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// newInviteCode генерирует короткий непрозрачный код из байтов UUID
func newInviteCode(length int) string {
	id := uuid.New()
	code := make([]byte, length)
	for i := range code {
		code[i] = inviteCodeAlphabet[int(id[i])%len(inviteCodeAlphabet)]
	}
	return string(code)
}

// Create создает новый челлендж: проверяет права на темы, собирает пул вопросов,
// фиксирует честную перестановку и сохраняет запись.
// Дуэль начинается в waiting с пятиминутным expires_at, публичный забег — сразу в playing.
func (s *ChallengeService) Create(creatorID uint, params CreateChallengeParams) (*entity.Challenge, error) {
	if len(params.TopicIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one topic is required", apperrors.ErrValidation)
	}
	if params.Type != entity.ChallengeTypeDuel && params.Type != entity.ChallengeTypePublic {
		return nil, fmt.Errorf("%w: unknown challenge type %q", apperrors.ErrValidation, params.Type)
	}

	creator, err := s.userRepo.GetByID(creatorID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.GetByTopics(params.ModuleID, params.TopicIDs, params.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch question pool: %w", err)
	}

	// Проверка прав: запрошенная тема премиальна, если содержит хотя бы один премиум-вопрос
	premiumTopics := make(map[string]bool)
	for _, q := range questions {
		if q.Premium {
			premiumTopics[q.TopicID] = true
		}
	}
	for _, topicID := range params.TopicIDs {
		if premiumTopics[topicID] && !creator.CanAccessTopic(topicID, true) {
			return nil, fmt.Errorf("%w: topic %s requires premium access", apperrors.ErrForbidden, topicID)
		}
	}

	// Прекондиция создания: пул не меньше MinQuestionCount
	if len(questions) < s.config.MinQuestionCount {
		return nil, fmt.Errorf("%w: insufficient questions for topics (%d, need %d)",
			apperrors.ErrValidation, len(questions), s.config.MinQuestionCount)
	}

	questionIDs := s.pickQuestionIDs(questions, params.Randomize)

	now := s.now()
	challenge := &entity.Challenge{
		CreatorID:             creatorID,
		Type:                  params.Type,
		ModuleID:              params.ModuleID,
		TopicIDs:              entity.StringArray(params.TopicIDs),
		QuestionIDs:           entity.UintArray(questionIDs),
		GameDurationSeconds:   s.config.GameDurationFor(params.ModuleID),
		UnlockedPremiumTopics: creator.UnlockedPremiumTopics,
	}

	if params.Type == entity.ChallengeTypePublic {
		// Публичный забег: без ожидания оппонента, игра стартует сразу
		challenge.Status = entity.ChallengeStatusPlaying
		startedAt := now
		challenge.GameStartedAt = &startedAt
	} else {
		challenge.Status = entity.ChallengeStatusWaiting
		expiresAt := now.Add(s.config.WaitingTTL)
		challenge.ExpiresAt = &expiresAt
	}

	if err := s.insertWithFreshCode(challenge); err != nil {
		return nil, err
	}

	log.Printf("[ChallengeService] Создан челлендж %s (type=%s, creator=%d, questions=%d)",
		challenge.ID, challenge.Type, creatorID, len(questionIDs))
	return challenge, nil
}

// pickQuestionIDs выбирает подмножество пула и фиксирует честную перестановку.
// Порядок вычисляется единожды и замораживается: обоим участникам дуэли
// выдается одна и та же последовательность.
func (s *ChallengeService) pickQuestionIDs(questions []entity.Question, randomize bool) []uint {
	ids := make([]uint, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}

	if len(ids) > s.config.MaxQuestionsPerGame {
		if randomize {
			ids = FairShuffle(ids)
		}
		ids = ids[:s.config.MaxQuestionsPerGame]
	}

	return FairShuffle(ids)
}

// insertWithFreshCode сохраняет челлендж, перегенерируя invite-код при коллизии 23505
func (s *ChallengeService) insertWithFreshCode(challenge *entity.Challenge) error {
	var err error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		challenge.ID = newInviteCode(inviteCodeLength)
		err = s.challengeRepo.Create(challenge)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperrors.ErrConflict) {
			return fmt.Errorf("failed to create challenge: %w", err)
		}
		log.Printf("[ChallengeService] Коллизия invite-кода %s, перегенерация (попытка %d)", challenge.ID, attempt+1)
	}
	return fmt.Errorf("failed to create challenge after %d attempts: %w", maxCodeAttempts, err)
}

// Get возвращает челлендж по коду, лениво применяя истечение:
// прошедший expires_at делает waiting-челлендж expired для читателя,
// даже если строка ещё не переписана.
func (s *ChallengeService) Get(id string) (*entity.Challenge, error) {
	challenge, err := s.challengeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if challenge.IsWaiting() && challenge.IsExpired(s.now()) {
		// Ленивая фиксация: идемпотентна, ошибка не критична для читателя
		if err := s.challengeRepo.MarkExpired(challenge.ID); err != nil {
			log.Printf("[ChallengeService] Не удалось пометить челлендж %s истёкшим: %v", challenge.ID, err)
		}
		challenge.Status = entity.ChallengeStatusExpired
	}

	return challenge, nil
}

// Accept обрабатывает принятие дуэли вторым игроком.
// Единственное условное обновление (status = waiting) гарантирует, что из любого
// числа конкурентных принятий ровно одно преуспеет; проигравшие различают
// AlreadyAccepted и Expired перечитыванием статуса.
func (s *ChallengeService) Accept(id string, userID uint) (*entity.Challenge, error) {
	challenge, err := s.challengeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if !challenge.IsDuel() {
		return nil, fmt.Errorf("%w: public challenge has no opponent", apperrors.ErrValidation)
	}
	if challenge.CreatorID == userID {
		return nil, fmt.Errorf("%w: cannot accept own challenge", apperrors.ErrForbidden)
	}

	now := s.now()
	if challenge.IsExpired(now) {
		if err := s.challengeRepo.MarkExpired(challenge.ID); err != nil {
			log.Printf("[ChallengeService] Не удалось пометить челлендж %s истёкшим: %v", challenge.ID, err)
		}
		return nil, fmt.Errorf("%w: challenge %s has expired", apperrors.ErrGone, id)
	}

	if err := s.challengeRepo.AcceptIfWaiting(id, userID); err != nil {
		if !errors.Is(err, repository.ErrChallengeNotWaiting) {
			return nil, err
		}
		// Проигранная гонка — ожидаемый исход. Перечитываем, чтобы различить причину.
		return nil, s.classifyAcceptFailure(id, now)
	}

	challenge.OpponentID = &userID
	challenge.Status = entity.ChallengeStatusReady
	log.Printf("[ChallengeService] Челлендж %s принят игроком %d", id, userID)
	return challenge, nil
}

// classifyAcceptFailure различает причину неуспешного принятия перечитыванием статуса
func (s *ChallengeService) classifyAcceptFailure(id string, now time.Time) error {
	fresh, err := s.challengeRepo.GetByID(id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// Создатель удалил непринятую дуэль между нашим чтением и записью
			return fmt.Errorf("%w: challenge %s", apperrors.ErrNotFound, id)
		}
		return err
	}

	if fresh.IsExpired(now) {
		if err := s.challengeRepo.MarkExpired(fresh.ID); err != nil {
			log.Printf("[ChallengeService] Не удалось пометить челлендж %s истёкшим: %v", fresh.ID, err)
		}
		return fmt.Errorf("%w: challenge %s has expired", apperrors.ErrGone, id)
	}

	return fmt.Errorf("%w: challenge %s already accepted", apperrors.ErrConflict, id)
}

// Rematch выполняет реванш-переговоры для завершённого челленджа.
// Гарантии протокола:
//   - к оригиналу навсегда привязывается не более одного реванша;
//   - оба участника сходятся на одном и том же выжившем реванше при любом порядке запросов;
//   - спекулятивно созданный челлендж проигравшего гонку удаляется до возврата;
//   - ни одной блокировки — только два независимых однострочных условных обновления.
func (s *ChallengeService) Rematch(originalID string, userID uint) (*entity.Challenge, RematchOutcome, error) {
	original, err := s.challengeRepo.GetByID(originalID)
	if err != nil {
		return nil, "", err
	}

	if !original.IsFinished() {
		return nil, "", fmt.Errorf("%w: challenge %s is not finished", apperrors.ErrValidation, originalID)
	}
	if !original.IsParticipant(userID) {
		return nil, "", fmt.Errorf("%w: not a participant of challenge %s", apperrors.ErrForbidden, originalID)
	}

	// Публичный забег: общего состояния с оппонентом нет, переговоры не нужны —
	// каждый вызывающий получает собственный свежий забег по тем же темам.
	if original.IsPublic() {
		rematch, err := s.buildRematch(original, userID)
		if err != nil {
			return nil, "", err
		}
		log.Printf("[ChallengeService] Публичный реванш %s для челленджа %s (user=%d)", rematch.ID, originalID, userID)
		return rematch, RematchOutcomeCreated, nil
	}

	// Дуэль с уже установленным указателем
	if original.RematchChallengeID != nil {
		rematch, outcome, handled, err := s.followRematchPointer(original, userID)
		if handled {
			return rematch, outcome, err
		}
		// Указатель протух и сброшен — продолжаем, как будто его не было
	}

	return s.negotiateRematch(original, userID)
}

// followRematchPointer обрабатывает ветку "указатель уже установлен".
// handled=false означает, что указатель протух, сброшен, и нужно продолжить
// переговоры с чистого листа.
func (s *ChallengeService) followRematchPointer(original *entity.Challenge, userID uint) (*entity.Challenge, RematchOutcome, bool, error) {
	rematchID := *original.RematchChallengeID
	now := s.now()

	rematch, err := s.challengeRepo.GetByID(rematchID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, "", true, err
	}

	if staleRematchTarget(rematch, now) {
		// Протухший указатель: цель ушла или провалила собственное терминальное условие.
		// Сброс безусловный — протухание уже подтверждено.
		if rematch != nil && rematch.IsWaiting() {
			if err := s.challengeRepo.MarkExpired(rematch.ID); err != nil {
				log.Printf("[ChallengeService] Не удалось пометить реванш %s истёкшим: %v", rematch.ID, err)
			}
		}
		if err := s.challengeRepo.ClearRematchPointer(original.ID); err != nil {
			return nil, "", true, fmt.Errorf("failed to clear stale rematch pointer: %w", err)
		}
		log.Printf("[ChallengeService] Сброшен протухший указатель реванша %s у челленджа %s", rematchID, original.ID)
		return nil, "", false, nil
	}

	if rematch.CreatorID == userID {
		// Повторный клик того же участника бесплатен
		return rematch, RematchOutcomeAlreadyRequested, true, nil
	}

	return s.acceptExistingRematch(rematch, userID)
}

// acceptExistingRematch присоединяет вызывающего к реваншу, созданному вторым участником
func (s *ChallengeService) acceptExistingRematch(rematch *entity.Challenge, userID uint) (*entity.Challenge, RematchOutcome, bool, error) {
	if err := s.challengeRepo.AcceptIfWaiting(rematch.ID, userID); err != nil {
		if !errors.Is(err, repository.ErrChallengeNotWaiting) {
			return nil, "", true, err
		}

		// Вызывающий мог уже принять этот реванш раньше — тогда повтор идемпотентен
		fresh, freshErr := s.challengeRepo.GetByID(rematch.ID)
		if freshErr == nil && fresh.OpponentID != nil && *fresh.OpponentID == userID {
			return fresh, RematchOutcomeAccepted, true, nil
		}

		// Настоящий конфликт: клиент должен повторить переговоры целиком
		return nil, "", true, fmt.Errorf("%w: rematch %s could not be joined", apperrors.ErrConflict, rematch.ID)
	}

	rematch.OpponentID = &userID
	rematch.Status = entity.ChallengeStatusReady
	log.Printf("[ChallengeService] Игрок %d присоединился к реваншу %s", userID, rematch.ID)
	return rematch, RematchOutcomeAccepted, true, nil
}

// negotiateRematch — гоночно-критичная ветка: указателя нет, оба участника
// могли запросить реванш одновременно. Спекулятивно создаем кандидата и решаем
// гонку единственным CAS на rematch_challenge_id IS NULL.
func (s *ChallengeService) negotiateRematch(original *entity.Challenge, userID uint) (*entity.Challenge, RematchOutcome, error) {
	candidate, err := s.buildRematch(original, userID)
	if err != nil {
		return nil, "", err
	}

	err = s.challengeRepo.LinkRematchIfUnset(original.ID, candidate.ID)
	if err == nil {
		// Гонка выиграна: кандидат стал единственным реваншем оригинала
		log.Printf("[ChallengeService] Реванш %s привязан к челленджу %s (победитель гонки user=%d)",
			candidate.ID, original.ID, userID)
		return candidate, RematchOutcomeCreated, nil
	}
	if !errors.Is(err, repository.ErrRematchAlreadyLinked) {
		return nil, "", err
	}

	// Гонка проиграна. Кандидат никуда не привязан и не должен утечь.
	if delErr := s.challengeRepo.Delete(candidate.ID); delErr != nil {
		log.Printf("[ChallengeService] Не удалось удалить осиротевший реванш %s: %v", candidate.ID, delErr)
	}

	// Перечитываем указатель победителя и присоединяемся к его реваншу
	fresh, err := s.challengeRepo.GetByID(original.ID)
	if err != nil {
		return nil, "", err
	}
	if fresh.RematchChallengeID == nil {
		// Указатель успели сбросить как протухший — клиенту дешевле повторить целиком
		return nil, "", fmt.Errorf("%w: rematch negotiation lost and pointer vanished", apperrors.ErrConflict)
	}

	winner, err := s.challengeRepo.GetByID(*fresh.RematchChallengeID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: winning rematch disappeared", apperrors.ErrConflict)
		}
		return nil, "", err
	}

	if winner.CreatorID == userID {
		// Сам с собой гонялся (двойной клик): реванш уже наш
		return winner, RematchOutcomeAlreadyRequested, nil
	}

	rematch, outcome, _, err := s.acceptExistingRematch(winner, userID)
	return rematch, outcome, err
}

// staleRematchTarget — предикат протухания указателя: цель отсутствует,
// уже expired, либо waiting с прошедшим expires_at.
func staleRematchTarget(rematch *entity.Challenge, now time.Time) bool {
	if rematch == nil {
		return true
	}
	if rematch.Status == entity.ChallengeStatusExpired {
		return true
	}
	return rematch.IsWaiting() && rematch.ExpiresAt != nil && rematch.ExpiresAt.Before(now)
}

// buildRematch создает свежий челлендж по темам оригинала: новая перестановка,
// те же темы и модуль, обычные правила создания (включая минимальный пул).
func (s *ChallengeService) buildRematch(original *entity.Challenge, creatorID uint) (*entity.Challenge, error) {
	return s.Create(creatorID, CreateChallengeParams{
		ModuleID: original.ModuleID,
		TopicIDs: []string(original.TopicIDs),
		Type:     original.Type,
	})
}

// Start переводит принятую дуэль в игру, фиксируя момент старта.
// Повторный старт безопасен: game_started_at пишется только если ещё NULL.
func (s *ChallengeService) Start(id string, userID uint) (*entity.Challenge, error) {
	challenge, err := s.challengeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if !challenge.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of challenge %s", apperrors.ErrForbidden, id)
	}

	switch challenge.Status {
	case entity.ChallengeStatusReady:
		startedAt := s.now()
		if err := s.challengeRepo.SetGameStarted(id, startedAt); err != nil {
			return nil, err
		}
		challenge.Status = entity.ChallengeStatusPlaying
		if challenge.GameStartedAt == nil {
			challenge.GameStartedAt = &startedAt
		}
		return challenge, nil
	case entity.ChallengeStatusPlaying:
		// Второй участник пришёл после старта — игра уже идёт
		return challenge, nil
	default:
		return nil, fmt.Errorf("%w: challenge %s is not ready to start", apperrors.ErrConflict, id)
	}
}

// SubmitScore принимает финальный счёт участника: пишет строку забега,
// обновляет счётчики пользователя и завершает челлендж, когда сдали все
// участники или истекло игровое время.
func (s *ChallengeService) SubmitScore(id string, userID uint, score, correct, attempted int) (*entity.Challenge, error) {
	challenge, err := s.challengeRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	if !challenge.IsParticipant(userID) {
		return nil, fmt.Errorf("%w: not a participant of challenge %s", apperrors.ErrForbidden, id)
	}
	if challenge.Status != entity.ChallengeStatusPlaying {
		return nil, fmt.Errorf("%w: challenge %s is not in play", apperrors.ErrConflict, id)
	}
	if correct > attempted || score < 0 || correct < 0 || attempted < 0 {
		return nil, fmt.Errorf("%w: inconsistent score values", apperrors.ErrValidation)
	}

	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	attempt := &entity.ChallengeAttempt{
		ChallengeID:      id,
		UserID:           userID,
		Username:         user.Username,
		Score:            score,
		CorrectAnswers:   correct,
		AttemptedAnswers: attempted,
		CompletedAt:      now,
	}
	if err := s.attemptRepo.Save(attempt); err != nil {
		return nil, fmt.Errorf("failed to save attempt: %w", err)
	}

	if err := s.userRepo.IncrementGamesPlayed(userID, int64(score)); err != nil {
		log.Printf("[ChallengeService] Не удалось обновить счётчики пользователя %d: %v", userID, err)
	}

	if challenge.IsDuel() && challenge.CreatorID == userID {
		if err := s.challengeRepo.SetCreatorFinished(id); err != nil {
			log.Printf("[ChallengeService] Не удалось пометить creator_finished у %s: %v", id, err)
		}
		challenge.CreatorFinished = true
	}

	if s.shouldFinish(challenge, now) {
		if err := s.challengeRepo.UpdateStatus(id, entity.ChallengeStatusFinished); err != nil {
			return nil, err
		}
		challenge.Status = entity.ChallengeStatusFinished
		log.Printf("[ChallengeService] Челлендж %s завершён", id)
	}

	return challenge, nil
}

// shouldFinish решает, пора ли завершать челлендж: публичный — после сдачи,
// дуэль — когда сдали оба участника либо истёк таймер.
func (s *ChallengeService) shouldFinish(challenge *entity.Challenge, now time.Time) bool {
	if challenge.IsPublic() {
		return true
	}

	if challenge.GameTimeElapsed(now) {
		return true
	}

	count, err := s.attemptRepo.CountByChallenge(challenge.ID)
	if err != nil {
		log.Printf("[ChallengeService] Не удалось подсчитать забеги челленджа %s: %v", challenge.ID, err)
		return false
	}
	return count >= 2
}

// Delete удаляет непринятую waiting-дуэль по запросу её создателя
func (s *ChallengeService) Delete(id string, userID uint) error {
	challenge, err := s.challengeRepo.GetByID(id)
	if err != nil {
		return err
	}

	if challenge.CreatorID != userID {
		return fmt.Errorf("%w: only the creator may delete a challenge", apperrors.ErrForbidden)
	}
	if !challenge.IsWaiting() || challenge.HasOpponent() {
		return fmt.Errorf("%w: only an unaccepted waiting challenge can be deleted", apperrors.ErrConflict)
	}

	return s.challengeRepo.Delete(id)
}

// Questions возвращает вопросы челленджа в зафиксированном порядке question_ids
func (s *ChallengeService) Questions(challenge *entity.Challenge) ([]entity.Question, error) {
	questions, err := s.questionRepo.GetByIDs([]uint(challenge.QuestionIDs))
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]entity.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	// Порядок восстанавливается по замороженной последовательности
	ordered := make([]entity.Question, 0, len(challenge.QuestionIDs))
	for _, qid := range challenge.QuestionIDs {
		if q, ok := byID[qid]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered, nil
}
