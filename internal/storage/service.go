package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const resultsDir = "results"

// SaveResult сохраняет результат сессии в JSON файл
func SaveResult(result *SessionResult) error {
	// Создаем директорию если её нет
	err := os.MkdirAll(resultsDir, 0755)
	if err != nil {
		return fmt.Errorf("ошибка создания директории %s: %w", resultsDir, err)
	}

	filename := fmt.Sprintf("session_%s.json", result.SessionID)
	path := filepath.Join(resultsDir, filename)

	jsonData, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации результата: %w", err)
	}

	err = os.WriteFile(path, jsonData, 0644)
	if err != nil {
		return fmt.Errorf("ошибка записи файла %s: %w", path, err)
	}

	return nil
}

// LoadResult загружает результат сессии из JSON файла
func LoadResult(sessionID string) (*SessionResult, error) {
	filename := fmt.Sprintf("session_%s.json", sessionID)
	path := filepath.Join(resultsDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	var result SessionResult
	err = json.Unmarshal(data, &result)
	if err != nil {
		return nil, fmt.Errorf("ошибка десериализации JSON: %w", err)
	}

	return &result, nil
}

// ListResults возвращает список id всех сохраненных сессий
func ListResults() ([]string, error) {
	if _, err := os.Stat(resultsDir); os.IsNotExist(err) {
		return []string{}, nil
	}

	entries, err := os.ReadDir(resultsDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", resultsDir, err)
	}

	var results []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" {
			continue
		}
		if strings.HasPrefix(name, "session_") {
			results = append(results, strings.TrimSuffix(strings.TrimPrefix(name, "session_"), ".json"))
		}
	}

	return results, nil
}
