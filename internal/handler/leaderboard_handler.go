package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	apperrors "github.com/yourusername/challenge-api/internal/pkg/errors"
	"github.com/yourusername/challenge-api/internal/service"
)

// LeaderboardHandler обрабатывает запросы лидербордов и экспорта
type LeaderboardHandler struct {
	leaderboardService *service.LeaderboardService
}

// NewLeaderboardHandler создает новый обработчик лидербордов
func NewLeaderboardHandler(leaderboardService *service.LeaderboardService) *LeaderboardHandler {
	return &LeaderboardHandler{leaderboardService: leaderboardService}
}

// GetChallengeLeaderboard возвращает лидерборд публичного челленджа.
// Эндпоинт публичный, клиенты поллят его каждые ~5 секунд.
// GET /api/challenges/:code/leaderboard
func (h *LeaderboardHandler) GetChallengeLeaderboard(c *gin.Context) {
	code := c.MustGet("challengeCode").(string)

	entries, err := h.leaderboardService.ChallengeLeaderboard(code)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// GetCompetitionLeaderboard возвращает таблицу группового соревнования
// GET /api/competitions/:id/leaderboard
func (h *LeaderboardHandler) GetCompetitionLeaderboard(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)

	board, err := h.leaderboardService.CompetitionLeaderboard(competitionID)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	c.JSON(http.StatusOK, board)
}

// ExportCompetitionLeaderboard выгружает таблицу соревнования в CSV или XLSX
// GET /api/competitions/:id/leaderboard/export?format=csv|xlsx
func (h *LeaderboardHandler) ExportCompetitionLeaderboard(c *gin.Context) {
	competitionID := c.MustGet("competitionID").(uint)
	format := c.DefaultQuery("format", "csv")

	board, err := h.leaderboardService.CompetitionLeaderboard(competitionID)
	if err != nil {
		h.handleLeaderboardError(c, err)
		return
	}

	filename := fmt.Sprintf("competition_%d_standings_%s", competitionID, time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, board, filename)
	default:
		h.exportCSV(c, board, filename)
	}
}

// exportCSV экспортирует таблицу в CSV с правильным экранированием спецсимволов
func (h *LeaderboardHandler) exportCSV(c *gin.Context, board *service.CompetitionBoard, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"Место", "Участник", "Решено задач", "Точность"})

	for _, st := range board.Standings {
		writer.Write([]string{
			strconv.Itoa(st.Rank),
			sanitizeForExcel(st.Username),
			strconv.Itoa(st.SolvedProblems),
			fmt.Sprintf("%.1f%%", st.Accuracy*100),
		})
	}
}

// exportXLSX экспортирует таблицу через StreamWriter excelize
func (h *LeaderboardHandler) exportXLSX(c *gin.Context, board *service.CompetitionBoard, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Таблица"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[LeaderboardHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"Место", "Участник", "Решено задач", "Точность"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[LeaderboardHandler] Ошибка записи заголовков: %v", err)
	}

	for i, st := range board.Standings {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{st.Rank, sanitizeForExcel(st.Username), st.SolvedProblems, st.Accuracy}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[LeaderboardHandler] Ошибка записи строки %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[LeaderboardHandler] Ошибка при Flush: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[LeaderboardHandler] Ошибка записи XLSX в ответ: %v", err)
	}
}

// sanitizeForExcel нейтрализует строки, которые Excel трактует как формулы
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

func (h *LeaderboardHandler) handleLeaderboardError(c *gin.Context, err error) {
	if errors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	} else if errors.Is(err, apperrors.ErrValidation) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	} else {
		log.Printf("ERROR: Internal server error in LeaderboardHandler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
