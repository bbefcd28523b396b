package helper

import (
	"github.com/yourusername/challenge-api/internal/domain/entity"
)

// QuestionOption — вариант ответа вопроса челленджа в формате для клиента
type QuestionOption struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// ConvertOptionsToObjects разворачивает варианты ответа из JSONB-массива строк
// в объекты с id и text. ID вариантов 0-based: под ним же хранится
// CorrectOption в пуле вопросов, поэтому индексация должна совпадать.
func ConvertOptionsToObjects(options entity.StringArray) []QuestionOption {
	converted := make([]QuestionOption, 0, len(options))
	for i, text := range options {
		if text == "" {
			text = "(пустой вариант)"
		}
		converted = append(converted, QuestionOption{ID: i, Text: text})
	}
	return converted
}
