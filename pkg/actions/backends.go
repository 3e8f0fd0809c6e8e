package actions

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// MemoryDirectory is an in-memory Directory, seeded from configuration.
// Deployments with a real CRM implement Directory themselves.
type MemoryDirectory struct {
	mu           sync.RWMutex
	byPhone      map[string]*Customer
	requirements map[string][]Requirement
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		byPhone:      make(map[string]*Customer),
		requirements: make(map[string][]Requirement),
	}
}

// AddCustomer makes a customer findable by phone number.
func (d *MemoryDirectory) AddCustomer(phone string, c Customer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byPhone[phone] = &c
}

// SetRequirements records the open requirements for a reference.
func (d *MemoryDirectory) SetRequirements(reference string, reqs []Requirement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requirements[reference] = reqs
}

// FindCustomerByPhone returns the customer for phone, or (nil, nil)
// when unknown.
func (d *MemoryDirectory) FindCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.byPhone[phone]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

// OpenRequirements returns the open requirements for a reference.
func (d *MemoryDirectory) OpenRequirements(ctx context.Context, reference string) ([]Requirement, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Requirement(nil), d.requirements[reference]...), nil
}

// LogMessenger is a Messenger that logs instead of sending. It stands
// in until an SMS provider is wired up.
type LogMessenger struct {
	Logger *slog.Logger
}

// SendSMS logs the message and fabricates a provider message id.
func (m *LogMessenger) SendSMS(ctx context.Context, to, body string) (string, error) {
	id := "sms_" + uuid.NewString()[:12]
	m.logger().Info("sms (not sent, log backend)", "to", to, "len", len(body), "message_id", id)
	return id, nil
}

func (m *LogMessenger) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// LogScheduler is a Scheduler that logs callback requests.
type LogScheduler struct {
	Logger *slog.Logger

	mu        sync.Mutex
	scheduled []CallbackRequest
}

// ScheduleCallback records the request and returns a reference id.
func (s *LogScheduler) ScheduleCallback(ctx context.Context, req *CallbackRequest) (string, error) {
	s.mu.Lock()
	s.scheduled = append(s.scheduled, *req)
	s.mu.Unlock()

	ref := "cb_" + uuid.NewString()[:12]
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	log.Info("callback scheduled (log backend)",
		"phone", req.Phone,
		"preferred_time", req.PreferredTime,
		"topic", req.Topic,
		"reference_id", ref,
	)
	return ref, nil
}

// Scheduled returns a copy of every recorded request.
func (s *LogScheduler) Scheduled() []CallbackRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CallbackRequest(nil), s.scheduled...)
}
