package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finprofile-chat/internal/classifier"
	"finprofile-chat/internal/questions"
	"finprofile-chat/internal/storage"
)

// Phase представляет состояние сессии
type Phase string

const (
	PhaseIdle                   Phase = "idle"
	PhaseCollecting             Phase = "collecting"
	PhaseAwaitingClassification Phase = "awaiting_classification"
	PhaseClassified             Phase = "classified"
	PhaseFailed                 Phase = "failed"
)

// MessageKind определяет тип сообщения чата
type MessageKind string

const (
	KindQuestion MessageKind = "question"
	KindInfo     MessageKind = "info"
	KindError    MessageKind = "error"
	KindProfile  MessageKind = "profile"
)

// Message представляет одно сообщение бота в чате
type Message struct {
	Kind    MessageKind        `json:"kind"`
	Content string             `json:"content"`
	Result  *classifier.Result `json:"result,omitempty"`
}

// Фиксированные сообщения пользователю. Внутренние ошибки наружу не выходят.
const (
	MsgLoadError     = "מצטערים, אירעה שגיאה בטעינת השאלות. אנא נסו שוב מאוחר יותר."
	MsgClassifyError = "מצטערים, אירעה שגיאה. אנא נסו שוב מאוחר יותר."
	MsgProfilePrefix = "הפרופיל הפיננסי שלך הוא: "
	MsgAskEmail      = "אנא הזן את כתובת המייל שלך כדי שנציג שלנו יוכל ליצור איתך קשר:"
	MsgThanks        = "תודה! נציג שלנו יצור איתך קשר בהקדם."
)

var (
	ErrNoQuestions    = errors.New("список вопросов пуст")
	ErrAlreadyStarted = errors.New("сессия уже начата")
	ErrNotCollecting  = errors.New("сессия не принимает ответы")
	ErrInvalidBranch  = errors.New("переход на несуществующий вопрос")
)

// Classifier определяет финансовый профиль по стенограмме
type Classifier interface {
	Classify(ctx context.Context, transcript []storage.AnsweredQuestion) (*classifier.Result, error)
}

// Session ведет одну сессию анкеты: позицию в списке вопросов, стенограмму
// и фазу. Вызовы не потокобезопасны — сериализацию обеспечивает владелец.
type Session struct {
	id         string
	qn         *questions.Questionnaire
	classifier Classifier
	welcome    []string

	current        int
	transcript     []storage.AnsweredQuestion
	answered       map[string]bool
	phase          Phase
	sectionProfile string
	result         *classifier.Result
}

// NewSession создает сессию в состоянии до запуска
func NewSession(id string, qn *questions.Questionnaire, cl Classifier, welcome []string) *Session {
	return &Session{
		id:         id,
		qn:         qn,
		classifier: cl,
		welcome:    welcome,
		answered:   make(map[string]bool),
		phase:      PhaseIdle,
	}
}

// ID возвращает идентификатор сессии
func (s *Session) ID() string {
	return s.id
}

// Phase возвращает текущую фазу
func (s *Session) Phase() Phase {
	return s.phase
}

// Result возвращает результат классификации, если сессия завершена
func (s *Session) Result() *classifier.Result {
	return s.result
}

// SectionProfile возвращает профиль, определенный на границе секций
func (s *Session) SectionProfile() string {
	return s.sectionProfile
}

// Transcript возвращает копию стенограммы
func (s *Session) Transcript() []storage.AnsweredQuestion {
	out := make([]storage.AnsweredQuestion, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Progress возвращает номер текущего вопроса и общее количество
func (s *Session) Progress() (current, total int) {
	total = 0
	if s.qn != nil {
		total = s.qn.Len()
	}
	switch s.phase {
	case PhaseIdle:
		return 0, total
	case PhaseCollecting:
		return s.current + 1, total
	default:
		return total, total
	}
}

// CurrentQuestion возвращает вопрос, на который сейчас ждем ответ
func (s *Session) CurrentQuestion() (questions.Question, bool) {
	if s.phase != PhaseCollecting {
		return questions.Question{}, false
	}
	return s.qn.At(s.current), true
}

// Start запускает сессию: приветствие и первый вопрос
func (s *Session) Start() ([]Message, error) {
	if s.phase != PhaseIdle {
		return nil, ErrAlreadyStarted
	}
	if s.qn == nil || s.qn.Len() == 0 {
		s.phase = PhaseFailed
		return []Message{{Kind: KindError, Content: MsgLoadError}}, ErrNoQuestions
	}

	s.current = 0
	s.phase = PhaseCollecting

	var msgs []Message
	for _, w := range s.welcome {
		msgs = append(msgs, Message{Kind: KindInfo, Content: w})
	}
	msgs = append(msgs, Message{Kind: KindQuestion, Content: s.qn.At(0).Text})

	return msgs, nil
}

// SubmitAnswer принимает ответ на текущий вопрос и решает, что дальше:
// следующий вопрос, переход между секциями или классификация.
func (s *Session) SubmitAnswer(ctx context.Context, raw string) ([]Message, error) {
	if s.phase != PhaseCollecting {
		return nil, ErrNotCollecting
	}

	q := s.qn.At(s.current)

	// Числовые ответы храним только из цифр
	answer := strings.TrimSpace(raw)
	if q.IsNumeric() {
		answer = FilterDigits(answer)
	}

	s.transcript = append(s.transcript, storage.AnsweredQuestion{
		QuestionID: q.ID,
		Question:   q.Text,
		Answer:     answer,
	})
	s.answered[q.ID] = true

	// Финальный вопрос — сразу классификация
	if q.IsFinal {
		return s.finalize(ctx)
	}

	// Правило (a): явный переход выбранного варианта
	if q.Type == questions.TypeMultiple {
		if target, ok := branchTarget(q, raw); ok {
			next, exists := s.qn.IndexOf(target)
			if !exists {
				// Целостность данных нарушена — не угадываем и не
				// проваливаемся в последовательный порядок
				s.phase = PhaseFailed
				return []Message{{Kind: KindError, Content: MsgClassifyError}},
					fmt.Errorf("вопрос %s, вариант %q: %w (%s)", q.ID, raw, ErrInvalidBranch, target)
			}
			s.current = next
			return []Message{{Kind: KindQuestion, Content: s.qn.At(next).Text}}, nil
		}
	}

	// Правило (b): граница секций двухфазной анкеты
	if msgs, handled, err := s.maybeAdvanceSection(ctx, q); handled {
		return msgs, err
	}

	// Правило (c): следующий вопрос по порядку
	next := s.current + 1
	if next >= s.qn.Len() {
		return s.finalize(ctx)
	}
	s.current = next
	return []Message{{Kind: KindQuestion, Content: s.qn.At(next).Text}}, nil
}

// Reset возвращает сессию в состояние до запуска
func (s *Session) Reset() {
	s.current = 0
	s.transcript = nil
	s.answered = make(map[string]bool)
	s.phase = PhaseIdle
	s.sectionProfile = ""
	s.result = nil
}

// maybeAdvanceSection обрабатывает завершение первой секции: синхронно
// классифицирует её подмножество стенограммы, сообщает профиль и переводит
// сессию на первый вопрос второй секции.
func (s *Session) maybeAdvanceSection(ctx context.Context, q questions.Question) ([]Message, bool, error) {
	sections := s.qn.Sections()
	if len(sections) < 2 || q.Section != sections[0] {
		return nil, false, nil
	}
	for _, id := range s.qn.SectionIDs(sections[0]) {
		if !s.answered[id] {
			return nil, false, nil
		}
	}

	result, err := s.classifier.Classify(ctx, s.sectionTranscript(sections[0]))
	if err != nil {
		s.phase = PhaseFailed
		return []Message{{Kind: KindError, Content: MsgClassifyError}}, true,
			fmt.Errorf("классификация секции %s: %w", sections[0], err)
	}
	s.sectionProfile = result.Profile

	next, ok := s.qn.FirstInSection(sections[1])
	if !ok {
		// Секций без вопросов не бывает после валидации, но не гадаем
		return s.finalizeHandled(ctx)
	}
	s.current = next

	return []Message{
		{Kind: KindInfo, Content: MsgProfilePrefix + result.Profile},
		{Kind: KindQuestion, Content: s.qn.At(next).Text},
	}, true, nil
}

// sectionTranscript возвращает записи стенограммы, относящиеся к секции
func (s *Session) sectionTranscript(section string) []storage.AnsweredQuestion {
	var subset []storage.AnsweredQuestion
	for _, qa := range s.transcript {
		if i, ok := s.qn.IndexOf(qa.QuestionID); ok && s.qn.At(i).Section == section {
			subset = append(subset, qa)
		}
	}
	return subset
}

// finalize запускает финальную классификацию полной стенограммы
func (s *Session) finalize(ctx context.Context) ([]Message, error) {
	s.phase = PhaseAwaitingClassification

	result, err := s.classifier.Classify(ctx, s.transcript)
	if err != nil {
		// Терминальная ошибка: одна попытка, без автоповтора
		s.phase = PhaseFailed
		return []Message{{Kind: KindError, Content: MsgClassifyError}},
			fmt.Errorf("финальная классификация: %w", err)
	}

	s.phase = PhaseClassified
	s.result = result

	msgs := []Message{
		{Kind: KindProfile, Content: MsgProfilePrefix + result.Profile, Result: result},
	}
	if result.Explanation != "" {
		msgs = append(msgs, Message{Kind: KindInfo, Content: result.Explanation})
	}
	if result.Immediate != nil {
		msgs = append(msgs, Message{
			Kind:    KindInfo,
			Content: fmt.Sprintf("המלצה מיידית:\n• %s: %s", result.Immediate.Title, result.Immediate.Description),
		})
	} else {
		for _, rec := range result.Recommendations {
			msgs = append(msgs, Message{Kind: KindInfo, Content: "• " + rec})
		}
	}
	msgs = append(msgs, Message{Kind: KindInfo, Content: MsgAskEmail})

	return msgs, nil
}

func (s *Session) finalizeHandled(ctx context.Context) ([]Message, bool, error) {
	msgs, err := s.finalize(ctx)
	return msgs, true, err
}

// branchTarget возвращает цель перехода выбранного варианта ответа
func branchTarget(q questions.Question, answer string) (string, bool) {
	if len(q.NextByOption) == 0 {
		return "", false
	}
	for i, opt := range q.Options {
		if opt == answer && i < len(q.NextByOption) && q.NextByOption[i] != "" {
			return q.NextByOption[i], true
		}
	}
	return "", false
}

// FilterDigits оставляет в строке только цифры
func FilterDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
