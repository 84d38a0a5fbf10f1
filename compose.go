package toolbench

import (
	"encoding/json"
	"fmt"
)

// DualOutput is the pair of views returned for every tool invocation: a
// human-readable rendering and a machine-validated structured payload.
// It is derived per call and never stored.
type DualOutput struct {
	// HumanText is the full human-readable rendering. Always present.
	HumanText string

	// StructuredFull is the JSON serialization of the complete result.
	StructuredFull json.RawMessage

	// StructuredCompact is the JSON serialization of the compact
	// projection. Nil when the capability has no compact form or the
	// caller forced the full form.
	StructuredCompact json.RawMessage

	// CompactText is the human rendering of the compact form, when one
	// was produced.
	CompactText string

	// Decision records which structured form the compaction engine
	// selected for this invocation.
	Decision Decision

	// Costs holds the token estimates behind Decision. Zero-valued when
	// the engine was skipped (forced full or no compact form).
	Costs CostReport
}

// Payload returns the structured form selected by the compaction decision.
func (d *DualOutput) Payload() json.RawMessage {
	if d.Decision == DecisionCompact && d.StructuredCompact != nil {
		return d.StructuredCompact
	}
	return d.StructuredFull
}

// Text returns the human rendering matching the selected structured form.
func (d *DualOutput) Text() string {
	if d.Decision == DecisionCompact && d.CompactText != "" {
		return d.CompactText
	}
	return d.HumanText
}

// Compose builds the dual output for a parsed tool result.
//
// The human renderer is always invoked. When forceFull is set, or the
// capability declares no compact mapper, the compaction engine is skipped
// entirely and the full form is the sole structured payload. Otherwise the
// engine weighs the serialized full and compact forms against the raw tool
// output and selects one.
func Compose(c *Capability, result any, rawOutput string, forceFull bool) (*DualOutput, error) {
	fullJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s result: %w", c.Key(), err)
	}
	out := &DualOutput{
		HumanText:      c.RenderHuman(result),
		StructuredFull: fullJSON,
		Decision:       DecisionFull,
	}
	if forceFull || c.CompactMap == nil {
		return out, nil
	}

	compact := c.CompactMap(result)
	compactJSON, err := json.Marshal(compact)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize %s compact form: %w", c.Key(), err)
	}
	out.StructuredCompact = compactJSON
	if c.RenderCompact != nil {
		out.CompactText = c.RenderCompact(compact)
	}
	out.Costs = Assess(rawOutput, string(fullJSON), string(compactJSON))
	out.Decision = out.Costs.Decision
	return out, nil
}
