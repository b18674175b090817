package classifier

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// Recommendation описывает одну структурированную рекомендацию
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority,omitempty"`
	Timeline    string `json:"timeline,omitempty"`
}

// Result представляет результат классификации финансового профиля
type Result struct {
	Profile           string          `json:"profile"`
	Confidence        float64         `json:"confidence,omitempty"`
	Explanation       string          `json:"explanation"`
	RiskTolerance     string          `json:"risk_tolerance,omitempty"`
	InvestmentHorizon string          `json:"investment_horizon,omitempty"`
	Recommendations   []string        `json:"recommendations,omitempty"`
	Immediate         *Recommendation `json:"immediate_actions,omitempty"`
	LongTerm          *Recommendation `json:"long_term_strategy,omitempty"`
}

// Модель возвращает один из двух форматов: плоский
// {profile, description, recommendations[]} либо расширенный с вложенными
// объектами. rawResult покрывает оба.
type rawResult struct {
	Profile         json.RawMessage `json:"profile"`
	Description     string          `json:"description"`
	Explanation     json.RawMessage `json:"explanation"`
	Analysis        *rawAnalysis    `json:"analysis"`
	Recommendations json.RawMessage `json:"recommendations"`
}

type rawProfile struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type rawExplanation struct {
	ProfileMatch string `json:"profile_match"`
}

type rawAnalysis struct {
	RiskTolerance     string `json:"risk_tolerance"`
	InvestmentHorizon string `json:"investment_horizon"`
}

type rawRecommendations struct {
	Immediate *Recommendation `json:"immediate_actions"`
	LongTerm  *Recommendation `json:"long_term_strategy"`
}

// ParseResult разбирает JSON ответа модели в Result.
// Невалидный JSON один раз прогоняется через jsonrepair перед отказом.
func ParseResult(raw string) (*Result, error) {
	var parsed rawResult
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			return nil, fmt.Errorf("ошибка парсинга ответа модели: %w", err)
		}
		if err := json.Unmarshal([]byte(repaired), &parsed); err != nil {
			return nil, fmt.Errorf("ошибка парсинга восстановленного JSON: %w", err)
		}
	}

	result := &Result{Explanation: parsed.Description}

	// profile: строка либо объект {name, confidence}
	if len(parsed.Profile) > 0 {
		var name string
		if err := json.Unmarshal(parsed.Profile, &name); err == nil {
			result.Profile = name
		} else {
			var p rawProfile
			if err := json.Unmarshal(parsed.Profile, &p); err != nil {
				return nil, fmt.Errorf("ошибка разбора поля profile: %w", err)
			}
			result.Profile = p.Name
			result.Confidence = p.Confidence
		}
	}

	// explanation: строка либо объект {profile_match}
	if len(parsed.Explanation) > 0 {
		var text string
		if err := json.Unmarshal(parsed.Explanation, &text); err == nil {
			result.Explanation = text
		} else {
			var e rawExplanation
			if err := json.Unmarshal(parsed.Explanation, &e); err != nil {
				return nil, fmt.Errorf("ошибка разбора поля explanation: %w", err)
			}
			result.Explanation = e.ProfileMatch
		}
	}

	if parsed.Analysis != nil {
		result.RiskTolerance = parsed.Analysis.RiskTolerance
		result.InvestmentHorizon = parsed.Analysis.InvestmentHorizon
	}

	// recommendations: массив строк либо объект со структурированными полями
	if len(parsed.Recommendations) > 0 {
		var flat []string
		if err := json.Unmarshal(parsed.Recommendations, &flat); err == nil {
			result.Recommendations = flat
		} else {
			var rich rawRecommendations
			if err := json.Unmarshal(parsed.Recommendations, &rich); err != nil {
				return nil, fmt.Errorf("ошибка разбора поля recommendations: %w", err)
			}
			result.Immediate = rich.Immediate
			result.LongTerm = rich.LongTerm
		}
	}

	if err := result.Validate(); err != nil {
		return nil, err
	}

	return result, nil
}

// Validate проверяет обязательные поля результата
func (r *Result) Validate() error {
	if !ValidLabel(r.Profile) {
		return fmt.Errorf("недопустимый профиль в ответе модели: %q", r.Profile)
	}
	if r.Explanation == "" {
		return fmt.Errorf("ответ модели без объяснения")
	}
	if len(r.Recommendations) == 0 && r.Immediate == nil {
		return fmt.Errorf("ответ модели без рекомендаций")
	}
	return nil
}
