package errors

import "errors"

// Общие ошибки приложения
var (
	// ErrNotFound используется, когда запись или ресурс не найдены.
	ErrNotFound = errors.New("record not found")

	// ErrUnauthorized используется для ошибок авторизации (неверный токен, нет прав).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden используется, когда у пользователя недостаточно прав для действия.
	ErrForbidden = errors.New("forbidden")

	// ErrValidation используется для ошибок валидации входных данных
	// (в том числе недостаточный пул вопросов при создании челленджа).
	ErrValidation = errors.New("validation failed")

	// ErrConflict используется для конфликтов состояния: проигранная гонка за принятие
	// челленджа или реванш, который не удалось восстановить. Клиент может повторить запрос.
	ErrConflict = errors.New("resource state conflict")

	// ErrGone используется, когда челлендж истёк (expires_at в прошлом).
	// Отдельно от ErrConflict: повтор запроса не поможет.
	ErrGone = errors.New("resource is gone")
)
