package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load загружает конфигурацию из YAML файла
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", filename, err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга YAML: %w", err)
	}

	// Валидация конфигурации
	err = validateConfig(&config)
	if err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return &config, nil
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	switch config.Questionnaire.Source {
	case SourceFile:
		if config.Questionnaire.QuestionsFile == "" {
			return fmt.Errorf("источник file требует questions_file")
		}
	case SourceSheets:
		// id таблицы и ключ приходят из переменных окружения
	default:
		return fmt.Errorf("неизвестный источник вопросов: %q", config.Questionnaire.Source)
	}

	switch config.Questionnaire.ClassifierMode {
	case ModeCompletions, ModeAssistant:
	default:
		return fmt.Errorf("неизвестный режим классификации: %q", config.Questionnaire.ClassifierMode)
	}

	if len(config.Welcome) == 0 {
		return fmt.Errorf("welcome_messages не может быть пустым")
	}

	if config.Session.MaxSessions <= 0 {
		return fmt.Errorf("max_sessions должно быть больше 0")
	}

	if config.Session.TTLHours <= 0 {
		return fmt.Errorf("ttl_hours должно быть больше 0")
	}

	if config.Session.RateLimit <= 0 {
		return fmt.Errorf("rate_limit должно быть больше 0")
	}

	if config.Session.RateWindowSeconds <= 0 {
		return fmt.Errorf("rate_window_seconds должно быть больше 0")
	}

	return nil
}
