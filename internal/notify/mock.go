package notify

import (
	"context"
	"sync"

	"github.com/naveenvasou/sales-chatbot-widget/internal/models"
)

// MockNotifier records alerts in memory for tests.
type MockNotifier struct {
	mu    sync.Mutex
	leads []models.Lead
	// Err, when set, is returned from every NotifyNewLead call.
	Err error
}

// NewMockNotifier creates a recording notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Name identifies the channel for logging.
func (m *MockNotifier) Name() string { return "mock" }

// NotifyNewLead records the lead, or returns the configured error.
func (m *MockNotifier) NotifyNewLead(ctx context.Context, lead *models.Lead) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads = append(m.leads, *lead)
	return nil
}

// Leads returns a copy of the recorded alerts.
func (m *MockNotifier) Leads() []models.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Lead, len(m.leads))
	copy(out, m.leads)
	return out
}
