package actions

import (
	"context"
	"fmt"
)

// StandardActions bundles the external collaborators behind the
// bridge's built-in action set.
type StandardActions struct {
	Directory Directory
	Messenger Messenger
	Scheduler Scheduler

	// PortalURL is the base link sent by send_portal_link.
	PortalURL string

	// CallerPhone is the verified caller id from the carrier; used as
	// the default target for callbacks and portal links so the model
	// cannot redirect them elsewhere.
	CallerPhone string
}

// RegisterStandard registers the built-in actions on reg. Actions
// whose collaborator is absent are skipped so a deployment can run
// with a partial backend.
func RegisterStandard(reg *Registry, std *StandardActions) {
	if std.Directory != nil {
		reg.Register("lookup_customer",
			"Look up the caller in the customer directory by phone number.",
			nil, []string{"phone"},
			std.lookupCustomer)
		reg.Register("get_open_requirements",
			"List the open requirements for a customer or claim reference.",
			[]string{"reference"}, nil,
			std.openRequirements)
	}
	if std.Scheduler != nil {
		reg.Register("schedule_callback",
			"Schedule a callback from a human agent at the caller's preferred time.",
			[]string{"preferred_time"}, []string{"topic"},
			std.scheduleCallback)
	}
	if std.Messenger != nil {
		reg.Register("send_portal_link",
			"Text the caller a link to the self-service portal.",
			nil, []string{"note"},
			std.sendPortalLink)
	}
}

func (s *StandardActions) lookupCustomer(ctx context.Context, params map[string]any) (map[string]any, error) {
	phone := String(params, "phone")
	if phone == "" {
		phone = s.CallerPhone
	}
	customer, err := s.Directory.FindCustomerByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	if customer == nil {
		return map[string]any{"found": false}, nil
	}
	return map[string]any{
		"found": true,
		"id":    customer.ID,
		"name":  customer.Name,
	}, nil
}

func (s *StandardActions) openRequirements(ctx context.Context, params map[string]any) (map[string]any, error) {
	reqs, err := s.Directory.OpenRequirements(ctx, String(params, "reference"))
	if err != nil {
		return nil, fmt.Errorf("requirements lookup: %w", err)
	}
	items := make([]map[string]any, 0, len(reqs))
	for _, r := range reqs {
		item := map[string]any{
			"code":        r.Code,
			"description": r.Description,
		}
		if r.DueDate != "" {
			item["due_date"] = r.DueDate
		}
		items = append(items, item)
	}
	return map[string]any{"requirements": items, "count": len(items)}, nil
}

func (s *StandardActions) scheduleCallback(ctx context.Context, params map[string]any) (map[string]any, error) {
	ref, err := s.Scheduler.ScheduleCallback(ctx, &CallbackRequest{
		Phone:         s.CallerPhone,
		PreferredTime: String(params, "preferred_time"),
		Topic:         String(params, "topic"),
	})
	if err != nil {
		return nil, fmt.Errorf("schedule callback: %w", err)
	}
	return map[string]any{
		"reference_id":   ref,
		"preferred_time": String(params, "preferred_time"),
	}, nil
}

func (s *StandardActions) sendPortalLink(ctx context.Context, params map[string]any) (map[string]any, error) {
	body := "Access your portal here: " + s.PortalURL
	if note := String(params, "note"); note != "" {
		body = note + "\n" + body
	}
	msgID, err := s.Messenger.SendSMS(ctx, s.CallerPhone, body)
	if err != nil {
		return nil, fmt.Errorf("send portal link: %w", err)
	}
	return map[string]any{"message_id": msgID, "to": s.CallerPhone}, nil
}
