package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"finprofile-chat/internal/config"
	"finprofile-chat/internal/engine"
	"finprofile-chat/internal/metrics"
	"finprofile-chat/internal/questions"
	"finprofile-chat/internal/storage"
)

const maxAnswerLength = 4000

// sessionEntry оборачивает сессию мьютексом: движок обрабатывает один
// ответ за раз, перекрывающиеся запросы сериализует сервер.
type sessionEntry struct {
	mu      sync.Mutex
	session *engine.Session
}

// Handler обслуживает HTTP API анкеты
type Handler struct {
	qn         *questions.Questionnaire
	classifier engine.Classifier
	cfg        *config.Config
	sessions   *expirable.LRU[string, *sessionEntry]
	limiter    *RateLimiter
	leads      *storage.LeadStore
	metrics    *metrics.Metrics
	log        *logrus.Logger
}

// NewHandler создает обработчик API
func NewHandler(qn *questions.Questionnaire, cl engine.Classifier, cfg *config.Config, leads *storage.LeadStore, m *metrics.Metrics, log *logrus.Logger) *Handler {
	h := &Handler{
		qn:         qn,
		classifier: cl,
		cfg:        cfg,
		limiter:    NewRateLimiter(cfg.Session.RateLimit, cfg.Session.RateWindow()),
		leads:      leads,
		metrics:    m,
		log:        log,
	}
	// Неактивные сессии вытесняются по TTL, размер хранилища ограничен
	h.sessions = expirable.NewLRU[string, *sessionEntry](
		cfg.Session.MaxSessions,
		func(key string, _ *sessionEntry) { h.limiter.Forget(key) },
		cfg.Session.TTL(),
	)
	return h
}

// CreateSession создает новую сессию и возвращает приветствие с первым вопросом
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	sess := engine.NewSession(id, h.qn, h.classifier, h.cfg.Welcome)

	msgs, err := sess.Start()
	if err != nil {
		h.log.WithError(err).Error("Не удалось запустить сессию")
		writeJSON(w, http.StatusInternalServerError, SessionResponse{
			SessionID: id,
			Phase:     sess.Phase(),
			Messages:  msgs,
		})
		return
	}

	h.sessions.Add(id, &sessionEntry{session: sess})
	h.metrics.IncrementSessionsStarted()
	h.log.WithField("session_id", id).Info("Сессия создана")

	writeJSON(w, http.StatusCreated, h.sessionResponse(sess, msgs))
}

// SubmitAnswer принимает ответ пользователя на текущий вопрос
func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entry, ok := h.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session_not_found"})
		return
	}

	if !h.limiter.IsAllowed(id) {
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error:   "rate_limited",
			Message: MsgTooManyRequests,
		})
		return
	}

	var req SubmitAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: MsgInvalidInput})
		return
	}

	if err := validateAnswer(req.Answer); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_answer", Message: MsgInvalidInput})
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	sess := entry.session
	hadSectionProfile := sess.SectionProfile() != ""

	msgs, err := sess.SubmitAnswer(r.Context(), req.Answer)
	if err != nil {
		if errors.Is(err, engine.ErrNotCollecting) {
			writeJSON(w, http.StatusConflict, ErrorResponse{Error: "not_collecting"})
			return
		}
		// Классификация или целостность данных: пользователь уже получил
		// фиксированное сообщение об ошибке, детали только в лог
		h.log.WithError(err).WithField("session_id", id).Error("Сессия завершилась ошибкой")
		if !errors.Is(err, engine.ErrInvalidBranch) {
			h.metrics.IncrementClassification(false)
		}
		writeJSON(w, http.StatusOK, h.sessionResponse(sess, msgs))
		return
	}

	h.metrics.IncrementAnswersAccepted()
	if !hadSectionProfile && sess.SectionProfile() != "" {
		h.metrics.IncrementClassification(true)
	}
	if sess.Phase() == engine.PhaseClassified {
		h.metrics.IncrementClassification(true)
		h.metrics.IncrementSessionsCompleted()
		h.persistResult(sess)
	}

	writeJSON(w, http.StatusOK, h.sessionResponse(sess, msgs))
}

// ResetSession сбрасывает сессию и начинает анкету заново
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entry, ok := h.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session_not_found"})
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	sess := entry.session
	sess.Reset()
	msgs, err := sess.Start()
	if err != nil {
		h.log.WithError(err).Error("Не удалось перезапустить сессию")
		writeJSON(w, http.StatusInternalServerError, h.sessionResponse(sess, msgs))
		return
	}

	h.metrics.IncrementSessionsStarted()
	h.log.WithField("session_id", id).Info("Сессия сброшена")

	writeJSON(w, http.StatusOK, h.sessionResponse(sess, msgs))
}

// SubmitEmail сохраняет контакт пользователя после показа профиля
func (h *Handler) SubmitEmail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	entry, ok := h.sessions.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "session_not_found"})
		return
	}

	var req SubmitEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_json", Message: MsgInvalidInput})
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid_email", Message: MsgInvalidInput})
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	sess := entry.session
	if sess.Phase() != engine.PhaseClassified {
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: "not_classified"})
		return
	}

	if err := h.leads.SaveLead(id, email, sess.Result().Profile); err != nil {
		h.log.WithError(err).Error("Не удалось сохранить лид")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "storage_error"})
		return
	}

	h.metrics.IncrementLeadsCaptured()
	h.log.WithField("session_id", id).Info("Лид сохранен")

	writeJSON(w, http.StatusOK, SessionResponse{
		SessionID: id,
		Phase:     sess.Phase(),
		Messages:  []engine.Message{{Kind: engine.KindInfo, Content: engine.MsgThanks}},
		Progress:  progressOf(sess),
	})
}

// GetQuestions возвращает нормализованный список вопросов
func (h *Handler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, QuestionsResponse{Questions: h.qn.Questions()})
}

// GetMetrics возвращает счетчики сервиса
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.GetSnapshot())
}

// persistResult сохраняет результат завершенной сессии на диск
func (h *Handler) persistResult(sess *engine.Session) {
	result := &storage.SessionResult{
		SessionID:  sess.ID(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Profile:    sess.Result().Profile,
		Transcript: sess.Transcript(),
	}
	if err := storage.SaveResult(result); err != nil {
		h.log.WithError(err).WithField("session_id", sess.ID()).Error("Не удалось сохранить результат сессии")
	}
}

func (h *Handler) sessionResponse(sess *engine.Session, msgs []engine.Message) SessionResponse {
	return SessionResponse{
		SessionID: sess.ID(),
		Phase:     sess.Phase(),
		Messages:  msgs,
		Progress:  progressOf(sess),
	}
}

func progressOf(sess *engine.Session) Progress {
	current, total := sess.Progress()
	return Progress{Current: current, Total: total}
}

// validateAnswer отсекает заведомо мусорный ввод
func validateAnswer(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("пустой ответ")
	}
	if len(text) > maxAnswerLength {
		return fmt.Errorf("ответ слишком длинный (максимум %d символов)", maxAnswerLength)
	}

	// Проверка на спам из повторяющихся символов
	if len(text) > 10 && strings.Count(text, text[:1]) > len(text)*8/10 {
		return fmt.Errorf("ответ состоит из повторяющихся символов")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
