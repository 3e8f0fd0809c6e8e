package actions

import "context"

// The bridge does not implement business systems itself. Callback
// scheduling, SMS delivery, and customer/claim lookup live in external
// services and are consumed through these contracts.

// Customer is the directory's view of a caller.
type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Requirement is one open item on a customer's claim or file.
type Requirement struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	DueDate     string `json:"due_date,omitempty"`
}

// Directory is a read-only lookup service for customers and their
// open requirements.
type Directory interface {
	// FindCustomerByPhone resolves a caller. Returns (nil, nil) when
	// no customer matches; errors are reserved for lookup failures.
	FindCustomerByPhone(ctx context.Context, phone string) (*Customer, error)

	// OpenRequirements lists the open items for a customer or claim
	// reference.
	OpenRequirements(ctx context.Context, reference string) ([]Requirement, error)
}

// Messenger sends outbound SMS messages.
type Messenger interface {
	// SendSMS delivers a message and returns the provider's message id.
	SendSMS(ctx context.Context, toNumber, body string) (providerMessageID string, err error)
}

// CallbackRequest describes a callback the caller asked for.
type CallbackRequest struct {
	Phone         string
	PreferredTime string
	Topic         string
}

// Scheduler books callbacks with a human agent.
type Scheduler interface {
	// ScheduleCallback books a callback and returns its reference id.
	ScheduleCallback(ctx context.Context, req *CallbackRequest) (referenceID string, err error)
}
