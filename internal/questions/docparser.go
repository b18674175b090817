package questions

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Строка вопроса: "3. מהי מטרת השקעה? *בחירה*"
var questionRe = regexp.MustCompile(`^(\d+)\.\s*(.+?)\s*\*([^*]+)\*$`)

// Строка варианта ответа: "א. דירה"
var optionRe = regexp.MustCompile(`^([א-ת])\.\s*(.+)$`)

// DocSource читает вопросы из текстового файла анкеты.
// Файл — это извлеченный текст документа: нумерованные вопросы с пометкой
// типа в звездочках и варианты ответов с буквами иврита.
type DocSource struct {
	path string
}

// NewDocSource создает источник вопросов из файла
func NewDocSource(path string) *DocSource {
	return &DocSource{path: path}
}

// Load читает и парсит файл с вопросами
func (s *DocSource) Load(_ context.Context) ([]Question, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", s.path, err)
	}

	list := ParseQuestionsText(string(data))
	if len(list) == 0 {
		return nil, fmt.Errorf("в файле %s не найдено ни одного вопроса", s.path)
	}

	return list, nil
}

// ParseQuestionsText разбирает извлеченный текст анкеты в список вопросов.
// Id присваиваются последовательно, последний вопрос помечается финальным.
func ParseQuestionsText(text string) []Question {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}

	var list []Question
	questionID := 1

	for i := 0; i < len(lines); i++ {
		m := questionRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}

		q := Question{
			ID:   strconv.Itoa(questionID),
			Text: strings.TrimSpace(m[2]),
			Type: parseTypeWord(strings.TrimSpace(m[3])),
		}
		questionID++

		// Для вопросов с выбором собираем варианты из следующих строк
		if q.Type == TypeMultiple {
			for j := i + 1; j < len(lines); j++ {
				om := optionRe.FindStringSubmatch(lines[j])
				if om == nil {
					break
				}
				q.Options = append(q.Options, strings.TrimSpace(om[2]))
			}
		}

		list = append(list, q)
	}

	if len(list) > 0 {
		list[len(list)-1].IsFinal = true
	}

	return list
}

// parseTypeWord преобразует пометку типа из документа в AnswerType
func parseTypeWord(word string) AnswerType {
	switch word {
	case "בחירה":
		return TypeMultiple
	case "מספר":
		return TypeNumber
	case "סכום":
		return TypeSum
	default:
		return TypeText
	}
}
