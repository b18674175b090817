package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// LeadStore хранит контакты пользователей, завершивших анкету.
// Email запрашивается после показа профиля, дальше с лидом работает менеджер.
type LeadStore struct {
	db *sql.DB
}

const leadsSchema = `
CREATE TABLE IF NOT EXISTS lead (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    email TEXT NOT NULL,
    profile TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lead_session_id ON lead(session_id);
`

// OpenLeadStore открывает базу и создает схему.
// Повторный вызов безопасен — схема использует IF NOT EXISTS.
func OpenLeadStore(path string) (*LeadStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия базы %s: %w", path, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("база %s недоступна: %w", path, err)
	}

	if _, err := db.Exec(leadsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания схемы: %w", err)
	}

	return &LeadStore{db: db}, nil
}

// SaveLead сохраняет email пользователя вместе с присвоенным профилем
func (s *LeadStore) SaveLead(sessionID, email, profile string) error {
	_, err := s.db.Exec(
		`INSERT INTO lead (session_id, email, profile, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, email, profile, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения лида: %w", err)
	}
	return nil
}

// CountLeads возвращает количество сохраненных лидов
func (s *LeadStore) CountLeads() (int64, error) {
	var n int64
	err := s.db.QueryRow(`SELECT COUNT(*) FROM lead`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("ошибка подсчета лидов: %w", err)
	}
	return n, nil
}

// Close закрывает базу
func (s *LeadStore) Close() error {
	return s.db.Close()
}
