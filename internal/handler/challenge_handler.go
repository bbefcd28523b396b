package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/challenge-api/internal/domain/entity"
	"github.com/yourusername/challenge-api/internal/handler/dto"
	apperrors "github.com/yourusername/challenge-api/internal/pkg/errors"
	"github.com/yourusername/challenge-api/internal/service"
)

// ChallengeHandler обрабатывает запросы жизненного цикла челленджей
type ChallengeHandler struct {
	challengeService *service.ChallengeService
}

// NewChallengeHandler создает новый обработчик челленджей
func NewChallengeHandler(challengeService *service.ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

// CreateChallengeRequest представляет запрос на создание челленджа
type CreateChallengeRequest struct {
	ModuleID   string   `json:"module_id" binding:"required,min=1,max=50"`
	TopicIDs   []string `json:"topic_ids" binding:"required,min=1,max=10"`
	Type       string   `json:"type" binding:"required,oneof=duel public"`
	Difficulty *int     `json:"difficulty" binding:"omitempty,min=1,max=5"`
	Randomize  bool     `json:"randomize"`
}

// CreateChallenge обрабатывает запрос на создание челленджа
// POST /api/challenges
func (h *ChallengeHandler) CreateChallenge(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.challengeService.Create(userID, service.CreateChallengeParams{
		ModuleID:   req.ModuleID,
		TopicIDs:   req.TopicIDs,
		Type:       req.Type,
		Difficulty: req.Difficulty,
		Randomize:  req.Randomize,
	})
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, h.buildResponse(challenge, userID))
}

// GetChallenge возвращает текущее состояние челленджа (поллинг-эндпоинт).
// Открыт без аутентификации: приглашённый по invite-ссылке видит метаданные
// до логина, а участник с токеном — ещё и вопросы идущей игры.
// GET /api/challenges/:code
func (h *ChallengeHandler) GetChallenge(c *gin.Context) {
	code := c.MustGet("challengeCode").(string)
	userID := currentUserID(c)

	challenge, err := h.challengeService.Get(code)
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.buildResponse(challenge, userID))
}

// AcceptChallenge обрабатывает принятие дуэли вторым игроком
// POST /api/challenges/:code/accept
func (h *ChallengeHandler) AcceptChallenge(c *gin.Context) {
	code := c.MustGet("challengeCode").(string)
	userID := c.MustGet("user_id").(uint)

	challenge, err := h.challengeService.Accept(code, userID)
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.buildResponse(challenge, userID))
}

// StartChallenge переводит принятую дуэль в игру
// POST /api/challenges/:code/start
func (h *ChallengeHandler) StartChallenge(c *gin.Context) {
	code := c.MustGet("challengeCode").(string)
	userID := c.MustGet("user_id").(uint)

	challenge, err := h.challengeService.Start(code, userID)
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.buildResponse(challenge, userID))
}

// SubmitScoreRequest представляет финальный счёт участника
type SubmitScoreRequest struct {
	Score            int `json:"score" binding:"min=0"`
	CorrectAnswers   int `json:"correct_answers" binding:"min=0"`
	AttemptedAnswers int `json:"attempted_answers" binding:"min=0"`
}

// SubmitScore принимает финальный счёт участника
// POST /api/challenges/:code/score
func (h *ChallengeHandler) SubmitScore(c *gin.Context) {
	code := c.MustGet("challengeCode").(string)
	userID := c.MustGet("user_id").(uint)

	var req SubmitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.challengeService.SubmitScore(code, userID, req.Score, req.CorrectAnswers, req.AttemptedAnswers)
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.buildResponse(challenge, userID))
}

// RematchChallenge выполняет реванш-переговоры для завершённого челленджа
// POST /api/challenges/:code/rematch
func (h *ChallengeHandler) RematchChallenge(c *gin.Context) {
	code := c.MustGet("challengeCode").(string)
	userID := c.MustGet("user_id").(uint)

	rematch, outcome, err := h.challengeService.Rematch(code, userID)
	if err != nil {
		h.handleChallengeError(c, err)
		return
	}

	status := http.StatusOK
	if outcome == service.RematchOutcomeCreated {
		status = http.StatusCreated
	}
	c.JSON(status, dto.RematchResponse{
		Outcome:   string(outcome),
		Challenge: h.buildResponse(rematch, userID),
	})
}

// DeleteChallenge удаляет непринятую дуэль по запросу создателя
// DELETE /api/challenges/:code
func (h *ChallengeHandler) DeleteChallenge(c *gin.Context) {
	code := c.MustGet("challengeCode").(string)
	userID := c.MustGet("user_id").(uint)

	if err := h.challengeService.Delete(code, userID); err != nil {
		h.handleChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Challenge deleted"})
}

// currentUserID возвращает аутентифицированного пользователя или 0 для анонима.
// Нулевой ID никогда не совпадает с участником: user id в базе начинаются с 1.
func currentUserID(c *gin.Context) uint {
	if v, exists := c.Get("user_id"); exists {
		if userID, ok := v.(uint); ok {
			return userID
		}
	}
	return 0
}

// buildResponse собирает DTO челленджа; вопросы включаются только участнику
// идущей игры — до старта и посторонним последовательность не видна.
func (h *ChallengeHandler) buildResponse(challenge *entity.Challenge, userID uint) *dto.ChallengeResponse {
	var questions []entity.Question
	if challenge.Status == entity.ChallengeStatusPlaying && challenge.IsParticipant(userID) {
		var err error
		questions, err = h.challengeService.Questions(challenge)
		if err != nil {
			log.Printf("[ChallengeHandler] Не удалось загрузить вопросы челленджа %s: %v", challenge.ID, err)
		}
	}
	return dto.NewChallengeResponse(challenge, questions)
}

// handleChallengeError преобразует ошибки сервисов в HTTP-ответы
func (h *ChallengeHandler) handleChallengeError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrGone) {
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrUnauthorized) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in ChallengeHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
