// Package tools implements the Tool Registry & Capability Gate (spec.md
// §4.9): declarative tools with a schema, a tiered capability level, and a
// capability-enforcing execution path, plus the outbound (mcp_bridge.go)
// and inbound (mcp_server.go) MCP integrations and the confirmation gate
// (confirmation.go) the Destructive tier needs. Grounded on the teacher's
// tool-dispatch conventions (vthunder-bud2/internal/mcp) for the schema
// shape and on spec.md §4.9's tier list and execution path directly.
package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// CapabilityLevel is the tier a tool's execution is gated by (spec.md
// §4.9). Enforcement happens at execution time, never at planning time —
// the reasoning loop sees the full catalogue regardless of level.
type CapabilityLevel int

const (
	Passive CapabilityLevel = iota
	Active
	Destructive
	Blocked
)

func (l CapabilityLevel) String() string {
	switch l {
	case Passive:
		return "passive"
	case Active:
		return "active"
	case Destructive:
		return "destructive"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// PropertyType is the declared JSON-schema-ish type of one input property.
type PropertyType string

const (
	TypeString  PropertyType = "string"
	TypeNumber  PropertyType = "number"
	TypeBoolean PropertyType = "boolean"
)

// Property describes one input argument's schema.
type Property struct {
	Type        PropertyType
	Description string
}

// Schema is a tool's declared input shape: named properties plus which
// ones are required. Intentionally flatter than full JSON Schema — this
// is the same shallow shape the teacher's own MCP tool definitions use
// (vthunder-bud2/internal/mcp's ToolDef/PropDef, and the real mcp-go
// WithString/WithBoolean property builders in cmd/efficient-notion-mcp).
type Schema struct {
	Properties map[string]Property
	Required   []string
}

// Validate checks args against the schema: every required property must
// be present, and every present property's Go type must roughly match its
// declared type (spec.md §4.9 "validate schema").
func (s Schema) Validate(args map[string]any) error {
	for _, req := range s.Required {
		if _, ok := args[req]; !ok {
			return fmt.Errorf("missing required argument %q", req)
		}
	}
	for name, val := range args {
		prop, ok := s.Properties[name]
		if !ok {
			continue // unknown extra argument; tolerated, not an error
		}
		if !matchesType(val, prop.Type) {
			return fmt.Errorf("argument %q: expected %s", name, prop.Type)
		}
	}
	return nil
}

func matchesType(v any, t PropertyType) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	default:
		return true
	}
}

// Result is what a tool execution returns, carrying the is_error flag
// spec.md §6 names ("structured result carries (content, is_error)").
type Result struct {
	Content string
	IsError bool
}

func errResult(format string, args ...any) Result {
	return Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

// Handler is a tool's actual execution logic, called only after schema
// validation and capability enforcement have both passed.
type Handler func(ctx context.Context, args map[string]any) Result

// Tool is one registered capability: metadata plus its handler.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Capability  CapabilityLevel
	Handler     Handler

	// PathArg, if set, names the argument whose value must resolve inside
	// the registry's path allowlist before the handler runs (spec.md §4.9
	// "enforce path sandbox (file tools)").
	PathArg string
	// DomainArg, if set, names the argument whose value's host must be in
	// the registry's domain allowlist (spec.md §4.9 "domain allowlist
	// (network tools)").
	DomainArg string
}

// Confirmer gates Destructive-tier execution behind an explicit user
// confirmation over the live conversation channel (spec.md §4.9).
// internal/tools/confirmation.go's ConversationConfirmer implements this.
type Confirmer interface {
	Confirm(ctx context.Context, toolName, summary string) (bool, error)
}

// Registry holds every tool currently available to the reasoning loop.
// New tools may be added after startup without restarting the core
// (spec.md §4.9 "hot-registered without restarting the core").
type Registry struct {
	mu            sync.RWMutex
	tools         map[string]*Tool
	pathAllowlist []string
	domainAllow   map[string]bool
	confirmer     Confirmer
}

// New returns an empty registry. WithPathAllowlist/WithDomainAllowlist/
// WithConfirmer configure enforcement before tools are registered.
func New() *Registry {
	return &Registry{
		tools:       make(map[string]*Tool),
		domainAllow: make(map[string]bool),
	}
}

func (r *Registry) WithPathAllowlist(paths []string) *Registry {
	r.pathAllowlist = paths
	return r
}

func (r *Registry) WithDomainAllowlist(domains []string) *Registry {
	for _, d := range domains {
		r.domainAllow[strings.ToLower(d)] = true
	}
	return r
}

func (r *Registry) WithConfirmer(c Confirmer) *Registry {
	r.confirmer = c
	return r
}

// Register hot-registers a tool, replacing any prior tool of the same
// name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tc := t
	r.tools[t.Name] = &tc
}

// Catalogue returns every registered tool's metadata (not handlers).
// ExposeMCP publishes it to external MCP clients; the reasoning loop does
// not read it.
func (r *Registry) Catalogue() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, *t)
	}
	return out
}

// Execute runs the named tool: validate schema → enforce path sandbox /
// domain allowlist → (confirm if Destructive) → run (spec.md §4.9
// "Execution path"). Blocked tools never run regardless of request.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) Result {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return errResult("unknown tool %q", name)
	}

	if t.Capability == Blocked {
		return errResult("tool %q is blocked", name)
	}

	if err := t.Schema.Validate(args); err != nil {
		return errResult("schema violation: %v", err)
	}

	if t.PathArg != "" {
		if err := r.checkPathSandbox(args[t.PathArg]); err != nil {
			return errResult("path sandbox: %v", err)
		}
	}
	if t.DomainArg != "" {
		if err := r.checkDomainAllowlist(args[t.DomainArg]); err != nil {
			return errResult("domain allowlist: %v", err)
		}
	}

	if t.Capability == Destructive {
		if r.confirmer == nil {
			return errResult("tool %q requires confirmation but no confirmer is configured", name)
		}
		summary := fmt.Sprintf("run %q with %v", name, args)
		ok, err := r.confirmer.Confirm(ctx, name, summary)
		if err != nil {
			return errResult("confirmation failed: %v", err)
		}
		if !ok {
			return errResult("user declined to confirm %q", name)
		}
	}

	return t.Handler(ctx, args)
}

func (r *Registry) checkPathSandbox(v any) error {
	if len(r.pathAllowlist) == 0 {
		return nil
	}
	path, ok := v.(string)
	if !ok {
		return fmt.Errorf("path argument is not a string")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	for _, allowed := range r.pathAllowlist {
		allowedAbs, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		if abs == allowedAbs || strings.HasPrefix(abs, allowedAbs+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("%q is outside the allowed paths", path)
}

func (r *Registry) checkDomainAllowlist(v any) error {
	if len(r.domainAllow) == 0 {
		return nil
	}
	urlOrHost, ok := v.(string)
	if !ok {
		return fmt.Errorf("domain argument is not a string")
	}
	host := urlOrHost
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, "/:"); idx >= 0 {
		host = host[:idx]
	}
	if !r.domainAllow[strings.ToLower(host)] {
		return fmt.Errorf("%q is outside the allowed domains", host)
	}
	return nil
}
