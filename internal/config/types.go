package config

import "time"

// Источники вопросов
const (
	SourceFile   = "file"
	SourceSheets = "sheets"
)

// Режимы классификации
const (
	ModeCompletions = "completions"
	ModeAssistant   = "assistant"
)

// Config представляет конфигурацию анкеты
type Config struct {
	Questionnaire QuestionnaireConfig `yaml:"questionnaire"`
	Welcome       []string            `yaml:"welcome_messages"`
	Session       SessionConfig       `yaml:"session"`
}

// QuestionnaireConfig определяет источник вопросов и режим классификации
type QuestionnaireConfig struct {
	Source         string `yaml:"source"`
	QuestionsFile  string `yaml:"questions_file"`
	ProfilesFile   string `yaml:"profiles_file"`
	ClassifierMode string `yaml:"classifier_mode"`
}

// SessionConfig определяет лимиты сессий
type SessionConfig struct {
	MaxSessions       int `yaml:"max_sessions"`
	TTLHours          int `yaml:"ttl_hours"`
	RateLimit         int `yaml:"rate_limit"`
	RateWindowSeconds int `yaml:"rate_window_seconds"`
}

// TTL возвращает время жизни неактивной сессии
func (c *SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// RateWindow возвращает окно лимитера запросов
func (c *SessionConfig) RateWindow() time.Duration {
	return time.Duration(c.RateWindowSeconds) * time.Second
}
