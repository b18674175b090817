package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"finprofile-chat/internal/api"
	"finprofile-chat/internal/classifier"
	"finprofile-chat/internal/config"
	"finprofile-chat/internal/metrics"
	"finprofile-chat/internal/questions"
	"finprofile-chat/internal/server"
	"finprofile-chat/internal/storage"
)

func main() {
	fmt.Println("🚀 Запуск сервиса финансовой анкеты...")

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Загружаем переменные окружения (.env опционален)
	if err := godotenv.Load(); err != nil {
		log.Info(".env файл не найден, используем переменные окружения")
	}

	appCfg := config.LoadAppConfig()
	if err := appCfg.OpenAI.ValidateConfig(); err != nil {
		log.Fatalf("Ошибка конфигурации OpenAI: %v", err)
	}

	// Загружаем конфигурацию анкеты
	cfg, err := config.Load("config/questionnaire.yaml")
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации анкеты: %v", err)
	}

	fmt.Println("🔧 Инициализация сервисов...")

	// Источник вопросов
	source, err := buildSource(cfg, appCfg, log)
	if err != nil {
		log.Fatalf("Ошибка источника вопросов: %v", err)
	}

	list, err := source.Load(context.Background())
	if err != nil {
		log.Fatalf("Ошибка загрузки вопросов: %v", err)
	}

	qn, err := questions.NewQuestionnaire(list)
	if err != nil {
		log.Fatalf("Ошибка валидации вопросов: %v", err)
	}
	fmt.Printf("✅ Загружено вопросов: %d\n", qn.Len())

	// Сервис классификации
	cl, err := buildClassifier(cfg, appCfg, log)
	if err != nil {
		log.Fatalf("Ошибка инициализации классификатора: %v", err)
	}
	fmt.Println("✅ Классификатор инициализирован")

	// Хранилище лидов
	leads, err := storage.OpenLeadStore(appCfg.Storage.LeadsDBPath)
	if err != nil {
		log.Fatalf("Ошибка открытия базы лидов: %v", err)
	}
	defer leads.Close()
	fmt.Println("✅ База лидов готова")

	m := metrics.NewMetrics()
	handler := server.NewHandler(qn, cl, cfg, leads, m, log)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(appCfg.Server.Port),
		Handler:      server.NewRouter(handler),
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
	}

	// Graceful shutdown по Ctrl-C / SIGTERM
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		fmt.Println("\n🛑 Остановка сервера...")
		ctx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	fmt.Printf("\n🤖 Сервер запущен на порту %d\n", appCfg.Server.Port)
	err = srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Ошибка сервера: %v", err)
	}
	fmt.Println("Сервер остановлен")
}

// buildSource выбирает источник вопросов по конфигурации
func buildSource(cfg *config.Config, appCfg *config.AppConfig, log *logrus.Logger) (questions.Source, error) {
	switch cfg.Questionnaire.Source {
	case config.SourceSheets:
		if appCfg.Sheets.SheetID == "" || appCfg.Sheets.APIKey == "" {
			return nil, fmt.Errorf("источник sheets требует GOOGLE_SHEETS_ID и GOOGLE_SHEETS_API_KEY")
		}
		return questions.NewSheetsSource(appCfg.Sheets.SheetID, appCfg.Sheets.APIKey, log), nil
	case config.SourceFile:
		return questions.NewDocSource(cfg.Questionnaire.QuestionsFile), nil
	default:
		return nil, fmt.Errorf("неизвестный источник: %s", cfg.Questionnaire.Source)
	}
}

// buildClassifier собирает сервис классификации по конфигурации
func buildClassifier(cfg *config.Config, appCfg *config.AppConfig, log *logrus.Logger) (*classifier.Service, error) {
	catalog := classifier.DefaultCatalog()
	if cfg.Questionnaire.ProfilesFile != "" {
		loaded, err := classifier.LoadCatalog(cfg.Questionnaire.ProfilesFile)
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}

	switch cfg.Questionnaire.ClassifierMode {
	case config.ModeAssistant:
		if appCfg.OpenAI.AssistantID == "" {
			return nil, fmt.Errorf("режим assistant требует OPENAI_ASSISTANT_ID")
		}
		assistant := api.NewAssistantClient(appCfg.OpenAI.APIKey, appCfg.OpenAI.AssistantID)
		return classifier.New(classifier.ModeAssistant, nil, assistant, catalog, log)
	default:
		completions := api.NewOpenAIClient(
			appCfg.OpenAI.APIKey,
			appCfg.OpenAI.Model,
			appCfg.OpenAI.MaxTokens,
			appCfg.OpenAI.Temperature,
		)
		return classifier.New(classifier.ModeCompletions, completions, nil, catalog, log)
	}
}
