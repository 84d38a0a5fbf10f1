package exposure

import (
	"fmt"
	"sync"

	"github.com/deepnoodle-ai/toolbench"
)

// State is a registration's position in the exposure lifecycle. There is
// no transition out of StateDisabled within a process run.
type State string

const (
	// StateDisabled tools are never advertised this run.
	StateDisabled State = "disabled"

	// StateImmediate tools are advertised from startup.
	StateImmediate State = "enabled-immediate"

	// StateDeferred tools are enabled but not advertised until a
	// discovery request loads them by name.
	StateDeferred State = "enabled-deferred"

	// StateLoaded tools were deferred and have since been loaded.
	StateLoaded State = "enabled-loaded"
)

// Registration is one capability's exposure status.
type Registration struct {
	Group       string
	Tool        string
	Core        bool
	Description string
	State       State
}

// Key returns the "group:tool" identifier.
func (r *Registration) Key() string {
	return r.Group + ":" + r.Tool
}

// Advertised reports whether the tool is currently visible to callers.
func (r *Registration) Advertised() bool {
	return r.State == StateImmediate || r.State == StateLoaded
}

// Table is the fixed set of registrations produced by applying a Policy to
// a registry. The only mutation after startup is Load moving deferred
// registrations to loaded; that path is serialized with a mutex since
// discovery is a rare, low-frequency operation.
type Table struct {
	mu       sync.Mutex
	regs     []*Registration
	index    map[string]*Registration
	onChange func(loaded []string)
}

// Apply evaluates the policy against every registered capability and
// returns the resulting table. This runs once per process start.
func (p *Policy) Apply(registry *toolbench.Registry) *Table {
	table := &Table{index: map[string]*Registration{}}

	var enabled func(c *toolbench.Capability) bool
	lazyAllowed := p.Lazy

	switch {
	case p.ExplicitTools != nil:
		// Explicit intent implies no staged loading.
		set := newSelectorSet(p.ExplicitTools)
		enabled = func(c *toolbench.Capability) bool { return set.match(c.Key()) }
		lazyAllowed = false
	case p.Profile == FullProfile:
		enabled = func(c *toolbench.Capability) bool { return true }
		lazyAllowed = false
	case p.Profile != "":
		set := newSelectorSet(p.Profiles[p.Profile])
		enabled = func(c *toolbench.Capability) bool { return set.match(c.Key()) }
	case len(p.GroupTools) > 0:
		sets := map[string]*selectorSet{}
		for group, tools := range p.GroupTools {
			sets[group] = newSelectorSet(tools)
		}
		enabled = func(c *toolbench.Capability) bool {
			set, filtered := sets[c.Group]
			if !filtered {
				return true
			}
			return set.match(c.Tool)
		}
	default:
		enabled = func(c *toolbench.Capability) bool { return true }
	}

	for _, c := range registry.All() {
		reg := &Registration{
			Group:       c.Group,
			Tool:        c.Tool,
			Core:        c.Core,
			Description: c.Description,
			State:       StateDisabled,
		}
		if enabled(c) {
			if lazyAllowed && !c.Core {
				reg.State = StateDeferred
			} else {
				reg.State = StateImmediate
			}
		}
		table.regs = append(table.regs, reg)
		table.index[reg.Key()] = reg
	}
	return table
}

// OnChange sets the callback invoked after a discovery load changes the
// advertised set. The callback receives the keys that were just loaded and
// runs outside the table lock.
func (t *Table) OnChange(fn func(loaded []string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = fn
}

// Advertised returns the registrations currently visible to callers.
func (t *Table) Advertised() []*Registration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Registration
	for _, reg := range t.regs {
		if reg.Advertised() {
			out = append(out, reg)
		}
	}
	return out
}

// Deferred returns the registrations that are enabled but not yet loaded.
func (t *Table) Deferred() []*Registration {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []*Registration
	for _, reg := range t.regs {
		if reg.State == StateDeferred {
			out = append(out, reg)
		}
	}
	return out
}

// Lookup returns the registration for a "group:tool" key.
func (t *Table) Lookup(key string) (*Registration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reg, ok := t.index[key]
	return reg, ok
}

// DeferredTool is a still-deferred tool's name and short description, as
// reported by the discovery operation.
type DeferredTool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// LoadReport is the discovery operation's response.
type LoadReport struct {
	// Loaded lists the keys that transitioned to loaded in this call.
	Loaded []string `json:"loaded,omitempty"`

	// Deferred lists the tools still awaiting a load request.
	Deferred []DeferredTool `json:"deferred,omitempty"`

	// Remaining is the count of still-deferred tools.
	Remaining int `json:"remaining"`
}

// Load is the discovery operation. Names may be "group:tool" keys or bare
// tool names; matching deferred registrations transition to loaded. An
// empty name list just reports the deferred set. Requesting an unknown
// tool is an error. Requesting an already-loaded or disabled tool is a
// no-op: nothing transitions out of the disabled state within a run.
//
// When at least one registration was loaded, the change callback fires
// after the table is updated so the caller can announce that the
// advertised operation set changed.
func (t *Table) Load(names []string) (*LoadReport, error) {
	t.mu.Lock()
	// Validate every name before touching any state: a partial load on
	// the error path would change the advertised set without the caller
	// ever being notified.
	for _, name := range names {
		if !t.matchesLocked(name) {
			t.mu.Unlock()
			return nil, fmt.Errorf("unknown tool %q", name)
		}
	}
	var loaded []string
	for _, name := range names {
		for _, reg := range t.regs {
			if reg.Key() != name && reg.Tool != name {
				continue
			}
			if reg.State == StateDeferred {
				reg.State = StateLoaded
				loaded = append(loaded, reg.Key())
			}
		}
	}
	report := &LoadReport{Loaded: loaded}
	for _, reg := range t.regs {
		if reg.State == StateDeferred {
			report.Deferred = append(report.Deferred, DeferredTool{
				Name:        reg.Key(),
				Description: reg.Description,
			})
		}
	}
	report.Remaining = len(report.Deferred)
	onChange := t.onChange
	t.mu.Unlock()

	if len(loaded) > 0 && onChange != nil {
		onChange(loaded)
	}
	return report, nil
}

// matchesLocked reports whether any registration answers to the given
// "group:tool" key or bare tool name. Callers must hold the table lock.
func (t *Table) matchesLocked(name string) bool {
	for _, reg := range t.regs {
		if reg.Key() == name || reg.Tool == name {
			return true
		}
	}
	return false
}
