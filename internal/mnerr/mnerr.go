// Package mnerr holds the sentinel and typed errors the Organism Core uses
// to distinguish the error kinds of spec §7: transient external failures,
// schema violations, numerical anomalies, capability denials, budget
// exhaustion, and narrative collapse. Callers check with errors.Is/As rather
// than string matching.
package mnerr

import "fmt"

// Sentinel errors checked with errors.Is.
var (
	// ErrTransient marks a retryable external failure (network, rate-limit, 5xx).
	ErrTransient = fmt.Errorf("transient external error")

	// ErrPermanent marks a non-retryable external failure (4xx excluding 429).
	ErrPermanent = fmt.Errorf("permanent external error")

	// ErrSchemaViolation marks tool arguments that failed schema validation.
	ErrSchemaViolation = fmt.Errorf("schema violation")

	// ErrNumericalAnomaly marks a NaN/Inf detected during normalization.
	ErrNumericalAnomaly = fmt.Errorf("numerical anomaly")

	// ErrCapabilityDenied marks a tool call denied by the capability gate.
	ErrCapabilityDenied = fmt.Errorf("capability denied")

	// ErrBudgetExhausted marks a token/CPU budget that has no downgrade path left.
	ErrBudgetExhausted = fmt.Errorf("budget exhausted")

	// ErrNarrativeCollapse marks a catastrophic self-knowledge contradiction
	// that triggered a bounded slow-tier restructure.
	ErrNarrativeCollapse = fmt.Errorf("narrative collapse")

	// ErrToolDepthExceeded marks a turn that recursed past max_tool_depth.
	ErrToolDepthExceeded = fmt.Errorf("tool recursion depth exceeded")
)

// CapabilityDenial is returned to the reasoning loop instead of executing a
// tool call when the capability gate refuses it. It satisfies error and
// wraps ErrCapabilityDenied so callers can errors.Is it.
type CapabilityDenial struct {
	Tool   string
	Tier   string
	Reason string
}

func (d *CapabilityDenial) Error() string {
	return fmt.Sprintf("capability denied: tool %q (tier %s): %s", d.Tool, d.Tier, d.Reason)
}

func (d *CapabilityDenial) Unwrap() error { return ErrCapabilityDenied }

// SchemaError wraps a tool-argument validation failure with enough detail
// for the model to self-correct within the recursion cap.
type SchemaError struct {
	Tool   string
	Detail string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("tool %q argument error: %s", e.Tool, e.Detail)
}

func (e *SchemaError) Unwrap() error { return ErrSchemaViolation }

// NumericalAnomaly records which scalar was reset and why, for the warning
// log spec §3 and §7 require.
type NumericalAnomaly struct {
	Field    string
	Observed float64
	Fallback float64
}

func (n *NumericalAnomaly) Error() string {
	return fmt.Sprintf("numerical anomaly on %s: %v reset to homeostatic default %v", n.Field, n.Observed, n.Fallback)
}

func (n *NumericalAnomaly) Unwrap() error { return ErrNumericalAnomaly }
