package metrics

import (
	"sync"
	"time"
)

// Metrics хранит счетчики работы сервиса
type Metrics struct {
	mu                        sync.RWMutex
	SessionsStarted           int64     `json:"sessions_started"`
	SessionsCompleted         int64     `json:"sessions_completed"`
	AnswersAccepted           int64     `json:"answers_accepted"`
	ClassificationsRequested  int64     `json:"classifications_requested"`
	ClassificationsSuccessful int64     `json:"classifications_successful"`
	LeadsCaptured             int64     `json:"leads_captured"`
	LastUpdateTime            time.Time `json:"last_update_time"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		LastUpdateTime: time.Now(),
	}
}

func (m *Metrics) IncrementSessionsStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionsStarted++
	m.LastUpdateTime = time.Now()
}

func (m *Metrics) IncrementSessionsCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SessionsCompleted++
	m.LastUpdateTime = time.Now()
}

func (m *Metrics) IncrementAnswersAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AnswersAccepted++
	m.LastUpdateTime = time.Now()
}

func (m *Metrics) IncrementClassification(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClassificationsRequested++
	if success {
		m.ClassificationsSuccessful++
	}
	m.LastUpdateTime = time.Now()
}

func (m *Metrics) IncrementLeadsCaptured() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LeadsCaptured++
	m.LastUpdateTime = time.Now()
}

func (m *Metrics) GetSnapshot() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Metrics{
		SessionsStarted:           m.SessionsStarted,
		SessionsCompleted:         m.SessionsCompleted,
		AnswersAccepted:           m.AnswersAccepted,
		ClassificationsRequested:  m.ClassificationsRequested,
		ClassificationsSuccessful: m.ClassificationsSuccessful,
		LeadsCaptured:             m.LeadsCaptured,
		LastUpdateTime:            m.LastUpdateTime,
	}
}
