// Package actions implements the bridge's tool/action registry.
//
// The conversational provider can invoke named business actions mid
// call (schedule a callback, send a portal link, look up a customer).
// The registry maps action names to handlers, validates arguments
// against each action's declared parameter shape, and converts every
// failure mode into a structured result so a broken handler never
// takes the call down.
//
// The registry is transport- and provider-agnostic: adapters translate
// Definition values into their own function-calling schema.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// Handler executes one business action. Returned data is delivered to
// the provider verbatim as the action result payload.
type Handler func(ctx context.Context, params map[string]any) (map[string]any, error)

// Definition describes one registered action.
type Definition struct {
	Name        string
	Description string
	Required    []string
	Optional    []string

	handler Handler
}

// Schema returns the JSON Schema for the action's parameters, in the
// shape providers expect for function-calling configuration.
func (d *Definition) Schema() *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(d.Required)+len(d.Optional))
	for _, name := range d.Required {
		props[name] = &jsonschema.Schema{Type: "string"}
	}
	for _, name := range d.Optional {
		props[name] = &jsonschema.Schema{Type: "string"}
	}
	return &jsonschema.Schema{
		Type:                 "object",
		Properties:           props,
		Required:             slices.Clone(d.Required),
		AdditionalProperties: &jsonschema.Schema{Not: &jsonschema.Schema{}},
	}
}

// Result is the outcome of one action execution. It is always
// well-formed: handler errors and panics are folded into it.
type Result struct {
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// JSON renders the result for delivery to the provider.
func (r *Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		// Data contained something unmarshalable; report that instead.
		b, _ = json.Marshal(&Result{Success: false, Error: fmt.Sprintf("encode result: %v", err)})
	}
	return string(b)
}

func failure(format string, args ...any) *Result {
	return &Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// ParamError reports arguments that do not match an action's declared
// parameter shape. It is returned by validate and folded into the
// Result before anything reaches a handler.
type ParamError struct {
	Action string
	Param  string
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("actions: %s: parameter %q %s", e.Action, e.Param, e.Reason)
}

// Registry is a name → handler map for business actions.
// Safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register adds an action. Registering a duplicate name or a nil
// handler is a programming error and panics.
func (r *Registry) Register(name, description string, required, optional []string, handler Handler) {
	if handler == nil {
		panic("actions: nil handler for " + name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[name]; ok {
		panic("actions: duplicate action " + name)
	}
	r.defs[name] = &Definition{
		Name:        name,
		Description: description,
		Required:    slices.Clone(required),
		Optional:    slices.Clone(optional),
		handler:     handler,
	}
}

// List returns the definitions of all registered actions, sorted by
// name, for injection into a provider's tool configuration.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs the named action with already-parsed parameters.
// It never returns an error and never panics: unknown actions, bad
// parameters, handler errors, and handler panics all come back as a
// failure Result.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (res *Result) {
	r.mu.RLock()
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return failure("unknown action %q", name)
	}

	if err := def.validate(params); err != nil {
		return failure("%v", err)
	}

	defer func() {
		if p := recover(); p != nil {
			res = failure("action %s panicked: %v", name, p)
		}
	}()

	data, err := def.handler(ctx, params)
	if err != nil {
		return failure("%v", err)
	}
	return &Result{Success: true, Data: data}
}

// ExecuteRaw parses a provider-supplied JSON argument payload and runs
// the action. Model output is not always valid JSON; syntax errors are
// run through jsonrepair before giving up.
func (r *Registry) ExecuteRaw(ctx context.Context, name, rawArgs string) *Result {
	params, err := parseArgs(rawArgs)
	if err != nil {
		return failure("parse arguments for %s: %v", name, err)
	}
	return r.Execute(ctx, name, params)
}

func parseArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	err := json.Unmarshal([]byte(raw), &params)
	if err == nil {
		return params, nil
	}
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(raw)
		if rerr != nil {
			return nil, err
		}
		if json.Unmarshal([]byte(fixed), &params) == nil {
			return params, nil
		}
	}
	return nil, err
}

// validate checks params against the declared required/optional shape.
func (d *Definition) validate(params map[string]any) error {
	for _, name := range d.Required {
		v, ok := params[name]
		if !ok || v == nil {
			return &ParamError{Action: d.Name, Param: name, Reason: "is required"}
		}
	}
	for name := range params {
		if !slices.Contains(d.Required, name) && !slices.Contains(d.Optional, name) {
			return &ParamError{Action: d.Name, Param: name, Reason: "is not declared"}
		}
	}
	return nil
}

// String returns a string parameter, or "" when absent or not a string.
func String(params map[string]any, name string) string {
	s, _ := params[name].(string)
	return s
}
