package questions

import (
	"context"
	"fmt"
)

// AnswerType определяет тип ожидаемого ответа на вопрос
type AnswerType string

const (
	TypeText     AnswerType = "text"     // свободный текст
	TypeNumber   AnswerType = "number"   // целое число
	TypeSum      AnswerType = "sum"      // денежная сумма
	TypeMultiple AnswerType = "multiple" // выбор из вариантов
)

// Question представляет один вопрос анкеты
type Question struct {
	ID           string     `json:"id"`
	Text         string     `json:"text"`
	Type         AnswerType `json:"type"`
	Options      []string   `json:"options,omitempty"`
	NextByOption []string   `json:"next_questions,omitempty"`
	IsFinal      bool       `json:"is_last_question"`
	Section      string     `json:"section,omitempty"`
}

// IsNumeric сообщает, хранится ли ответ только из цифр
func (q Question) IsNumeric() bool {
	return q.Type == TypeNumber || q.Type == TypeSum
}

// Source поставляет упорядоченный список вопросов.
// Реализации: парсер текстового документа и Google Sheets.
type Source interface {
	Load(ctx context.Context) ([]Question, error)
}

// Questionnaire хранит загруженный список вопросов и индекс id -> позиция.
// После создания структура неизменяема.
type Questionnaire struct {
	list []Question
	byID map[string]int
}

// NewQuestionnaire валидирует список вопросов и строит индекс
func NewQuestionnaire(list []Question) (*Questionnaire, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("список вопросов пуст")
	}

	byID := make(map[string]int, len(list))
	for i, q := range list {
		if q.ID == "" {
			return nil, fmt.Errorf("вопрос на позиции %d без id", i)
		}
		if _, exists := byID[q.ID]; exists {
			return nil, fmt.Errorf("дублирующийся id вопроса: %s", q.ID)
		}
		byID[q.ID] = i
	}

	// Проверяем варианты ответов и цели переходов
	for _, q := range list {
		if q.Type == TypeMultiple {
			if len(q.Options) == 0 {
				return nil, fmt.Errorf("вопрос %s типа multiple без вариантов ответа", q.ID)
			}
			if len(q.NextByOption) > 0 && len(q.NextByOption) != len(q.Options) {
				return nil, fmt.Errorf("вопрос %s: вариантов %d, переходов %d",
					q.ID, len(q.Options), len(q.NextByOption))
			}
		}
		for _, next := range q.NextByOption {
			if next == "" {
				continue
			}
			if _, exists := byID[next]; !exists {
				return nil, fmt.Errorf("вопрос %s ссылается на несуществующий вопрос %s", q.ID, next)
			}
		}
	}

	return &Questionnaire{list: list, byID: byID}, nil
}

// Len возвращает количество вопросов
func (qn *Questionnaire) Len() int {
	return len(qn.list)
}

// At возвращает вопрос по позиции
func (qn *Questionnaire) At(i int) Question {
	return qn.list[i]
}

// IndexOf возвращает позицию вопроса по id
func (qn *Questionnaire) IndexOf(id string) (int, bool) {
	i, ok := qn.byID[id]
	return i, ok
}

// Questions возвращает копию списка вопросов
func (qn *Questionnaire) Questions() []Question {
	out := make([]Question, len(qn.list))
	copy(out, qn.list)
	return out
}

// Sections возвращает непустые секции в порядке первого появления
func (qn *Questionnaire) Sections() []string {
	var sections []string
	seen := make(map[string]bool)
	for _, q := range qn.list {
		if q.Section == "" || seen[q.Section] {
			continue
		}
		seen[q.Section] = true
		sections = append(sections, q.Section)
	}
	return sections
}

// FirstInSection возвращает позицию первого вопроса секции
func (qn *Questionnaire) FirstInSection(section string) (int, bool) {
	for i, q := range qn.list {
		if q.Section == section {
			return i, true
		}
	}
	return 0, false
}

// SectionIDs возвращает id всех вопросов секции
func (qn *Questionnaire) SectionIDs(section string) []string {
	var ids []string
	for _, q := range qn.list {
		if q.Section == section {
			ids = append(ids, q.ID)
		}
	}
	return ids
}
