package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const sheetsBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

const (
	questionsRange = "questions"
	answersRange   = "answers"
)

// SheetsSource загружает вопросы из Google Sheets.
// Таблица состоит из двух листов: questions (id, section, question, type,
// is_last_question) и answers (question_id, answer_id, answer, next_question).
type SheetsSource struct {
	sheetID string
	apiKey  string
	baseURL string
	client  *http.Client
	log     *logrus.Logger
}

// sheetValues представляет ответ values API
type sheetValues struct {
	Range  string     `json:"range"`
	Values [][]string `json:"values"`
}

// sheetAnswer представляет строку листа answers
type sheetAnswer struct {
	QuestionID   string
	AnswerID     string
	Answer       string
	NextQuestion string
}

// NewSheetsSource создает источник вопросов из Google Sheets
func NewSheetsSource(sheetID, apiKey string, log *logrus.Logger) *SheetsSource {
	return &SheetsSource{
		sheetID: sheetID,
		apiKey:  apiKey,
		baseURL: sheetsBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// SetBaseURL переопределяет адрес API (используется в тестах)
func (s *SheetsSource) SetBaseURL(baseURL string) {
	s.baseURL = strings.TrimRight(baseURL, "/")
}

// Load загружает оба листа и собирает нормализованный список вопросов
func (s *SheetsSource) Load(ctx context.Context) ([]Question, error) {
	questionsRaw, err := s.fetchRange(ctx, questionsRange)
	if err != nil {
		return nil, err
	}
	answersRaw, err := s.fetchRange(ctx, answersRange)
	if err != nil {
		return nil, err
	}

	answers, err := parseAnswerRows(answersRaw)
	if err != nil {
		return nil, err
	}

	list, err := parseQuestionRows(questionsRaw, answers)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"questions": len(list),
		"answers":   len(answers),
	}).Info("Вопросы загружены из Google Sheets")

	return list, nil
}

// fetchRange запрашивает один диапазон values API
func (s *SheetsSource) fetchRange(ctx context.Context, valuesRange string) ([][]string, error) {
	url := fmt.Sprintf("%s/%s/values/%s?key=%s", s.baseURL, s.sheetID, valuesRange, s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса диапазона %s: %w", valuesRange, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ответа: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Sheets API вернул статус %d для диапазона %s", resp.StatusCode, valuesRange)
	}

	var values sheetValues
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, fmt.Errorf("ошибка парсинга JSON: %w", err)
	}

	return values.Values, nil
}

// parseQuestionRows преобразует строки листа questions в вопросы,
// подставляя варианты ответов и цели переходов из листа answers
func parseQuestionRows(rows [][]string, answers []sheetAnswer) ([]Question, error) {
	if len(rows) < 2 {
		return nil, fmt.Errorf("лист questions пуст или содержит только заголовок")
	}

	headers := normalizeHeaders(rows[0])

	var list []Question
	for _, row := range rows[1:] {
		cells := rowMap(headers, row)
		if cells["id"] == "" {
			continue
		}

		q := Question{
			ID:      cells["id"],
			Section: cells["section"],
			Text:    cells["question"],
			Type:    AnswerType(cells["type"]),
			IsFinal: cells["is_last_question"] == "TRUE",
		}

		if q.Type == TypeMultiple {
			for _, a := range answers {
				if a.QuestionID != q.ID {
					continue
				}
				q.Options = append(q.Options, a.Answer)
				q.NextByOption = append(q.NextByOption, a.NextQuestion)
			}
		}

		list = append(list, q)
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("лист questions не содержит ни одной строки с id")
	}

	return list, nil
}

// parseAnswerRows преобразует строки листа answers
func parseAnswerRows(rows [][]string) ([]sheetAnswer, error) {
	if len(rows) < 2 {
		// Анкета без вопросов с выбором допустима
		return nil, nil
	}

	headers := normalizeHeaders(rows[0])

	var answers []sheetAnswer
	for _, row := range rows[1:] {
		cells := rowMap(headers, row)
		if cells["question_id"] == "" {
			continue
		}
		answers = append(answers, sheetAnswer{
			QuestionID:   cells["question_id"],
			AnswerID:     cells["answer_id"],
			Answer:       cells["answer"],
			NextQuestion: cells["next_question"],
		})
	}

	return answers, nil
}

func normalizeHeaders(row []string) []string {
	headers := make([]string, len(row))
	for i, h := range row {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return headers
}

func rowMap(headers, row []string) map[string]string {
	cells := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			cells[h] = strings.TrimSpace(row[i])
		}
	}
	return cells
}
