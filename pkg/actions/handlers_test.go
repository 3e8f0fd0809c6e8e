package actions

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeDirectory struct {
	customers map[string]*Customer
	reqs      map[string][]Requirement
	err       error
}

func (d *fakeDirectory) FindCustomerByPhone(ctx context.Context, phone string) (*Customer, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.customers[phone], nil
}

func (d *fakeDirectory) OpenRequirements(ctx context.Context, ref string) ([]Requirement, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.reqs[ref], nil
}

type fakeMessenger struct {
	to, body string
	err      error
}

func (m *fakeMessenger) SendSMS(ctx context.Context, to, body string) (string, error) {
	m.to, m.body = to, body
	if m.err != nil {
		return "", m.err
	}
	return "sms-42", nil
}

type fakeScheduler struct {
	req *CallbackRequest
}

func (s *fakeScheduler) ScheduleCallback(ctx context.Context, req *CallbackRequest) (string, error) {
	s.req = req
	return "cb-7", nil
}

func standardSetup() (*Registry, *StandardActions, *fakeDirectory, *fakeMessenger, *fakeScheduler) {
	dir := &fakeDirectory{
		customers: map[string]*Customer{
			"+15550100": {ID: "cust-1", Name: "Ada Voss"},
		},
		reqs: map[string][]Requirement{
			"claim-9": {{Code: "POA", Description: "Proof of address"}},
		},
	}
	msg := &fakeMessenger{}
	sch := &fakeScheduler{}
	std := &StandardActions{
		Directory:   dir,
		Messenger:   msg,
		Scheduler:   sch,
		PortalURL:   "https://portal.example.com/claims",
		CallerPhone: "+15550100",
	}
	reg := NewRegistry()
	RegisterStandard(reg, std)
	return reg, std, dir, msg, sch
}

func TestStandardRegistration(t *testing.T) {
	reg, _, _, _, _ := standardSetup()
	defs := reg.List()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	want := []string{"get_open_requirements", "lookup_customer", "schedule_callback", "send_portal_link"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("actions = %v, want %v", names, want)
	}
}

func TestLookupCustomer(t *testing.T) {
	reg, _, _, _, _ := standardSetup()

	t.Run("found via caller id", func(t *testing.T) {
		res := reg.Execute(context.Background(), "lookup_customer", map[string]any{})
		if !res.Success || res.Data["found"] != true || res.Data["id"] != "cust-1" {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("not found", func(t *testing.T) {
		res := reg.Execute(context.Background(), "lookup_customer",
			map[string]any{"phone": "+15550199"})
		if !res.Success || res.Data["found"] != false {
			t.Errorf("result = %+v", res)
		}
	})
}

func TestLookupCustomerBackendError(t *testing.T) {
	reg, _, dir, _, _ := standardSetup()
	dir.err = errors.New("directory timeout")
	res := reg.Execute(context.Background(), "lookup_customer", map[string]any{})
	if res.Success || !strings.Contains(res.Error, "directory timeout") {
		t.Errorf("result = %+v", res)
	}
}

func TestOpenRequirements(t *testing.T) {
	reg, _, _, _, _ := standardSetup()
	res := reg.Execute(context.Background(), "get_open_requirements",
		map[string]any{"reference": "claim-9"})
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if res.Data["count"] != 1 {
		t.Errorf("count = %v", res.Data["count"])
	}
}

func TestScheduleCallback(t *testing.T) {
	reg, _, _, _, sch := standardSetup()
	res := reg.Execute(context.Background(), "schedule_callback",
		map[string]any{"preferred_time": "tomorrow 2pm", "topic": "claim status"})
	if !res.Success || res.Data["reference_id"] != "cb-7" {
		t.Fatalf("result = %+v", res)
	}
	if sch.req.Phone != "+15550100" || sch.req.PreferredTime != "tomorrow 2pm" {
		t.Errorf("request = %+v", sch.req)
	}
}

func TestSendPortalLink(t *testing.T) {
	reg, _, _, msg, _ := standardSetup()
	res := reg.Execute(context.Background(), "send_portal_link", map[string]any{})
	if !res.Success || res.Data["message_id"] != "sms-42" {
		t.Fatalf("result = %+v", res)
	}
	// Always goes to the verified caller id, never a model-chosen number.
	if msg.to != "+15550100" || !strings.Contains(msg.body, "https://portal.example.com/claims") {
		t.Errorf("sms to=%q body=%q", msg.to, msg.body)
	}
}
