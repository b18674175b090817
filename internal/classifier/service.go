package classifier

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"finprofile-chat/internal/prompts"
	"finprofile-chat/internal/storage"
)

// Mode определяет способ вызова модели
type Mode string

const (
	// ModeCompletions — один запрос chat completions
	ModeCompletions Mode = "completions"
	// ModeAssistant — тред ассистента с опросом статуса
	ModeAssistant Mode = "assistant"
)

// CompletionsAPI покрывает клиент chat completions
type CompletionsAPI interface {
	CompleteJSON(ctx context.Context, prompt string) (string, error)
}

// AssistantAPI покрывает клиент Assistants API
type AssistantAPI interface {
	Analyze(ctx context.Context, content string) (string, error)
}

// Service определяет финансовый профиль по стенограмме анкеты.
// Оба режима функционально эквивалентны: стенограмма уходит в модель,
// обратно приходит структурированный результат либо ошибка.
type Service struct {
	mode        Mode
	completions CompletionsAPI
	assistant   AssistantAPI
	catalog     *ProfileCatalog
	log         *logrus.Logger
}

// New создает сервис классификации
func New(mode Mode, completions CompletionsAPI, assistant AssistantAPI, catalog *ProfileCatalog, log *logrus.Logger) (*Service, error) {
	switch mode {
	case ModeCompletions:
		if completions == nil {
			return nil, fmt.Errorf("режим completions требует клиент chat completions")
		}
	case ModeAssistant:
		if assistant == nil {
			return nil, fmt.Errorf("режим assistant требует клиент Assistants API")
		}
	default:
		return nil, fmt.Errorf("неизвестный режим классификации: %s", mode)
	}

	if catalog == nil {
		catalog = DefaultCatalog()
	}

	return &Service{
		mode:        mode,
		completions: completions,
		assistant:   assistant,
		catalog:     catalog,
		log:         log,
	}, nil
}

// Classify отправляет стенограмму в модель и возвращает проверенный результат
func (s *Service) Classify(ctx context.Context, transcript []storage.AnsweredQuestion) (*Result, error) {
	if len(transcript) == 0 {
		return nil, fmt.Errorf("пустая стенограмма")
	}

	s.log.WithFields(logrus.Fields{
		"mode":    string(s.mode),
		"answers": len(transcript),
	}).Info("Запуск классификации профиля")

	var raw string
	var err error

	switch s.mode {
	case ModeAssistant:
		raw, err = s.assistant.Analyze(ctx, prompts.GenerateAssistantMessage(transcript))
	default:
		raw, err = s.completions.CompleteJSON(ctx,
			prompts.GenerateClassificationPrompt(s.catalog.PromptText(), Labels(), transcript))
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка вызова модели: %w", err)
	}

	result, err := ParseResult(raw)
	if err != nil {
		s.log.WithError(err).Warn("Ответ модели не прошел валидацию")
		return nil, err
	}

	s.log.WithField("profile", result.Profile).Info("Классификация завершена")

	return result, nil
}
