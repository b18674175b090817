package storage

// AnsweredQuestion представляет одну запись стенограммы: вопрос как он был
// задан и ответ пользователя. Записи добавляются в конец и не изменяются.
type AnsweredQuestion struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// SessionResult представляет результат завершенной сессии анкеты
type SessionResult struct {
	SessionID  string             `json:"session_id"`
	Timestamp  string             `json:"timestamp"`
	Profile    string             `json:"profile"`
	Transcript []AnsweredQuestion `json:"transcript"`
}
