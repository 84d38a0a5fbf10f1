package toolbench

import (
	"fmt"
	"sort"
	"strings"

	"github.com/deepnoodle-ai/wonton/schema"
)

// Parser converts the captured output of a finished command into a typed
// result value. Parsers must be pure and total: no I/O, and every exit code
// must produce a result. A nonzero exit is ordinary input, not an error —
// some tools encode "success with findings" as a nonzero exit.
type Parser func(exitCode int, stdout, stderr string) any

// Renderer produces the human-readable text for a result value.
type Renderer func(result any) string

// Mapper projects a full result onto a reduced compact form, typically by
// dropping large arrays and keeping counts.
type Mapper func(result any) any

// Capability bundles everything the framework needs to expose one tool
// operation: identity, result schema, and the parse/render functions.
// Capabilities are registered once at startup and never mutated afterward.
type Capability struct {
	// Group names the CLI ecosystem this operation belongs to ("git",
	// "docker", ...).
	Group string

	// Tool is the operation name within the group ("status", "ps", ...).
	Tool string

	// Core operations are registered immediately even under lazy loading.
	Core bool

	// Description is a short human-readable summary, shown by discovery.
	Description string

	// Schema describes the structured result this capability produces.
	Schema *schema.Schema

	// Parse converts captured command output into the typed result.
	Parse Parser

	// RenderHuman renders the full result as human-readable text.
	RenderHuman Renderer

	// CompactMap projects the result onto its compact form. Optional; when
	// nil the full form is always used.
	CompactMap Mapper

	// RenderCompact renders the compact form as human-readable text.
	// Optional; when nil the full rendering is reused.
	RenderCompact Renderer
}

// Key returns the stable "group:tool" identifier for this capability.
func (c *Capability) Key() string {
	return c.Group + ":" + c.Tool
}

// TypedCapability is a capability whose parse and render functions operate
// on a concrete result type instead of `any`. Use NewCapability to adapt it
// into a registrable Capability.
type TypedCapability[T any] struct {
	Group         string
	Tool          string
	Core          bool
	Description   string
	Schema        *schema.Schema
	Parse         func(exitCode int, stdout, stderr string) T
	RenderHuman   func(result T) string
	CompactMap    func(result T) any
	RenderCompact func(compact any) string
}

// NewCapability adapts a TypedCapability into the untyped Capability the
// registry stores. Render and map functions receive the value produced by
// the typed parser, so the internal assertions cannot fail for results that
// flowed through this capability.
func NewCapability[T any](tc TypedCapability[T]) *Capability {
	c := &Capability{
		Group:       tc.Group,
		Tool:        tc.Tool,
		Core:        tc.Core,
		Description: tc.Description,
		Schema:      tc.Schema,
	}
	if tc.Parse != nil {
		c.Parse = func(exitCode int, stdout, stderr string) any {
			return tc.Parse(exitCode, stdout, stderr)
		}
	}
	if tc.RenderHuman != nil {
		c.RenderHuman = func(result any) string {
			return tc.RenderHuman(result.(T))
		}
	}
	if tc.CompactMap != nil {
		c.CompactMap = func(result any) any {
			return tc.CompactMap(result.(T))
		}
	}
	if tc.RenderCompact != nil {
		c.RenderCompact = tc.RenderCompact
	}
	return c
}

// Registry maps "group:tool" keys to capabilities. It is populated once at
// process startup and read-only afterward, so lookups need no locking.
type Registry struct {
	caps  map[string]*Capability
	order []string
}

// NewRegistry creates an empty capability registry.
func NewRegistry() *Registry {
	return &Registry{caps: map[string]*Capability{}}
}

// Register adds a capability. Group, tool, parser, and human renderer are
// required. Registering the same key twice is an error.
func (r *Registry) Register(c *Capability) error {
	if c.Group == "" || c.Tool == "" {
		return fmt.Errorf("capability must have a group and tool name")
	}
	if strings.Contains(c.Group, ":") || strings.Contains(c.Tool, ":") {
		return fmt.Errorf("capability names must not contain ':' (got %q)", c.Key())
	}
	if c.Parse == nil {
		return fmt.Errorf("capability %s has no parser", c.Key())
	}
	if c.RenderHuman == nil {
		return fmt.Errorf("capability %s has no human renderer", c.Key())
	}
	key := c.Key()
	if _, exists := r.caps[key]; exists {
		return fmt.Errorf("capability %s is already registered", key)
	}
	r.caps[key] = c
	r.order = append(r.order, key)
	return nil
}

// Get returns the capability for the given group and tool name.
func (r *Registry) Get(group, tool string) (*Capability, bool) {
	c, ok := r.caps[group+":"+tool]
	return c, ok
}

// Resolve returns the capability for a "group:tool" key.
func (r *Registry) Resolve(key string) (*Capability, bool) {
	c, ok := r.caps[key]
	return c, ok
}

// All returns every registered capability in registration order.
func (r *Registry) All() []*Capability {
	out := make([]*Capability, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.caps[key])
	}
	return out
}

// Groups returns the sorted set of group names with at least one
// registered capability.
func (r *Registry) Groups() []string {
	seen := map[string]bool{}
	var groups []string
	for _, c := range r.caps {
		if !seen[c.Group] {
			seen[c.Group] = true
			groups = append(groups, c.Group)
		}
	}
	sort.Strings(groups)
	return groups
}
