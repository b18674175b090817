package server

import (
	"finprofile-chat/internal/engine"
	"finprofile-chat/internal/questions"
)

// Фиксированные служебные сообщения пользователю
const (
	MsgTooManyRequests = "יותר מדי הודעות. אנא המתן רגע ונסה שוב."
	MsgInvalidInput    = "מצטערים, לא הצלחנו לקבל את התשובה. אנא נסה שוב."
)

// Request types

type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
}

type SubmitEmailRequest struct {
	Email string `json:"email"`
}

// Response types

type SessionResponse struct {
	SessionID string           `json:"session_id"`
	Phase     engine.Phase     `json:"phase"`
	Messages  []engine.Message `json:"messages"`
	Progress  Progress         `json:"progress"`
}

type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

type QuestionsResponse struct {
	Questions []questions.Question `json:"questions"`
}

// ErrorResponse возвращается при любой ошибке API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
