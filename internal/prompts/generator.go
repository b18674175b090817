package prompts

import (
	"fmt"
	"strings"

	"finprofile-chat/internal/storage"
)

// GenerateClassificationPrompt строит промпт для определения финансового
// профиля по стенограмме анкеты. Ответ модели ожидается строго в JSON.
func GenerateClassificationPrompt(profileCatalog string, labels []string, transcript []storage.AnsweredQuestion) string {
	var prompt strings.Builder

	// Роль и задача
	prompt.WriteString("אתה מומחה לתכנון פיננסי עם ניסיון של למעלה מ-20 שנה בשוק ההון הישראלי והבינלאומי. ")
	prompt.WriteString("מטרתך לנתח תשובות של לקוח לשאלון פיננסי ולשייך אותו לאחד מארבעה פרופילים פיננסיים: ")
	prompt.WriteString(strings.Join(labels, ", "))
	prompt.WriteString(".\n\n")

	// Описания профилей
	if profileCatalog != "" {
		prompt.WriteString("תיאורי הפרופילים:\n")
		prompt.WriteString(profileCatalog)
		prompt.WriteString("\n\n")
	}

	// Стенограмма
	prompt.WriteString("אלו השאלות והתשובות של הלקוח:\n\n")
	prompt.WriteString(FormatTranscript(transcript))
	prompt.WriteString("\n\n")

	// Требования к стилю
	prompt.WriteString("דבר ישירות אל הלקוח בגוף שני, בטון מקצועי אך אישי. ")
	prompt.WriteString("שלב דוגמאות ספציפיות מהתשובות שלו.\n\n")

	// Формат ответа
	prompt.WriteString("החזר את התוצאה כאובייקט JSON בלבד, ללא markdown וללא טקסט נוסף, במבנה הבא:\n")
	prompt.WriteString(`{
  "profile": {"name": "PROFILE_NAME", "confidence": 0.0},
  "analysis": {"risk_tolerance": "נמוך | בינוני | גבוה", "investment_horizon": "קצר | בינוני | ארוך טווח"},
  "explanation": {"profile_match": "הסבר מפורט בעברית"},
  "recommendations": {
    "immediate_actions": {"title": "...", "description": "...", "priority": "גבוה", "timeline": "..."},
    "long_term_strategy": {"title": "...", "description": "...", "timeline": "..."}
  }
}`)
	prompt.WriteString("\n\nודא שהשדה profile.name הוא אחד מהפרופילים: ")
	prompt.WriteString(strings.Join(labels, ", "))
	prompt.WriteString(".")

	return prompt.String()
}

// GenerateAssistantMessage строит сообщение для треда ассистента.
// Формат ответа ассистент знает из собственных инструкций.
func GenerateAssistantMessage(transcript []storage.AnsweredQuestion) string {
	var prompt strings.Builder

	prompt.WriteString("אלו השאלות והתשובות המתאימות מהמשתמש לשאלון הפיננסי:\n\n")
	prompt.WriteString(FormatTranscript(transcript))
	prompt.WriteString("\n\nאנא בצע ניתוח מעמיק והחזר את התוצאה בפורמט JSON כפי שהוגדר בהוראות.")

	return prompt.String()
}

// FormatTranscript форматирует стенограмму для вставки в промпт
func FormatTranscript(transcript []storage.AnsweredQuestion) string {
	var b strings.Builder

	for i, qa := range transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("שאלה %s: %s\nתשובה: %s", qa.QuestionID, qa.Question, qa.Answer))
	}

	return b.String()
}
