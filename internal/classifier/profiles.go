package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// Четыре финансовых профиля. Результат классификации обязан быть одним из
// них — любое другое значение от модели считается ошибкой.
const (
	ProfilePlanner    = "המתכנן"
	ProfileGambler    = "המהמר"
	ProfileBalanced   = "המאוזן"
	ProfileCalculated = "המחושב"
)

// Labels возвращает список допустимых профилей
func Labels() []string {
	return []string{ProfilePlanner, ProfileGambler, ProfileBalanced, ProfileCalculated}
}

// ValidLabel проверяет, что метка входит в фиксированный набор
func ValidLabel(label string) bool {
	switch label {
	case ProfilePlanner, ProfileGambler, ProfileBalanced, ProfileCalculated:
		return true
	}
	return false
}

// ProfileCatalog содержит описания профилей для промпта
type ProfileCatalog struct {
	Profiles []ProfileEntry `yaml:"profiles"`
}

// ProfileEntry описывает один профиль
type ProfileEntry struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// LoadCatalog загружает описания профилей из YAML файла
func LoadCatalog(path string) (*ProfileCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	var catalog ProfileCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("ошибка парсинга YAML: %w", err)
	}

	if err := validateCatalog(&catalog); err != nil {
		return nil, fmt.Errorf("ошибка валидации каталога профилей: %w", err)
	}

	return &catalog, nil
}

// DefaultCatalog возвращает встроенные описания профилей
func DefaultCatalog() *ProfileCatalog {
	return &ProfileCatalog{
		Profiles: []ProfileEntry{
			{Name: ProfilePlanner, Description: "מתכנן פיננסי זהיר ומחושב, המעדיף ביטחון ויציבות."},
			{Name: ProfileGambler, Description: "משקיע אמיץ, מוכן לקחת סיכונים משמעותיים להשגת תשואות גבוהות."},
			{Name: ProfileBalanced, Description: "משקיע מאוזן, המשלב בין סיכון לתשואה בצורה חכמה."},
			{Name: ProfileCalculated, Description: "משקיע מחושב, המשלב בין תכנון קפדני לנטילת סיכונים מבוקרת."},
		},
	}
}

// PromptText форматирует каталог для вставки в промпт
func (c *ProfileCatalog) PromptText() string {
	var b strings.Builder
	for _, p := range c.Profiles {
		b.WriteString(fmt.Sprintf("פרופיל פיננסי: %s\n%s\n---\n", p.Name, p.Description))
	}
	return b.String()
}

// validateCatalog проверяет, что каталог покрывает ровно фиксированный набор
func validateCatalog(catalog *ProfileCatalog) error {
	if len(catalog.Profiles) != len(Labels()) {
		return fmt.Errorf("ожидалось %d профилей, получено %d", len(Labels()), len(catalog.Profiles))
	}

	seen := make(map[string]bool)
	for i, p := range catalog.Profiles {
		if !ValidLabel(p.Name) {
			return fmt.Errorf("профиль %d имеет недопустимое имя: %s", i, p.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("профиль %s указан дважды", p.Name)
		}
		if p.Description == "" {
			return fmt.Errorf("профиль %s без описания", p.Name)
		}
		seen[p.Name] = true
	}

	return nil
}
