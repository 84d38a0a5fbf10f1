// Package exposure decides which registered capabilities are advertised to
// a caller. The decision is made once per process start from environment
// configuration, producing a fixed registration table; the only later
// mutation is the discovery operation loading deferred tools.
package exposure

import (
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"github.com/goccy/go-yaml"
)

// FullProfile is the reserved profile name meaning "no filtering". It also
// disables lazy deferral, like an explicit tool list does.
const FullProfile = "full"

const envPrefix = "TOOLBENCH_"

// Policy is the resolved exposure configuration. Resolution order when the
// policy is applied to a registry (first match wins, never merged):
//
//  1. ExplicitTools, when configured: only listed tools are enabled and
//     lazy deferral is disabled entirely.
//  2. Profile, when named: the profile's selectors pick the enabled set.
//     The reserved "full" profile enables everything and disables lazy
//     deferral.
//  3. GroupTools: groups with a list enable only the listed tools; groups
//     without one are fully enabled.
//  4. No configuration: everything enabled.
type Policy struct {
	// ExplicitTools is the global tool list of "group:tool" selectors.
	// Nil means not configured.
	ExplicitTools []string

	// Profile is the named profile to apply, if any.
	Profile string

	// Profiles maps profile names to selector lists. The "full" name is
	// reserved and may not be redefined.
	Profiles map[string][]string

	// GroupTools holds per-group tool name lists.
	GroupTools map[string][]string

	// Lazy enables deferred registration of non-core tools.
	Lazy bool
}

// profileFile is the YAML shape of an exposure profile definition file.
type profileFile struct {
	Profiles map[string][]string `yaml:"profiles"`
}

// ResolvePolicy builds a Policy from an environment snapshot. It is pure
// over the snapshot except for reading the optional profile file named by
// TOOLBENCH_PROFILE_FILE.
//
// Recognized keys:
//
//	TOOLBENCH_TOOLS           comma-separated "group:tool" selectors
//	TOOLBENCH_PROFILE         named profile ("full" reserved)
//	TOOLBENCH_PROFILE_FILE    YAML file defining additional profiles
//	TOOLBENCH_<GROUP>_TOOLS   per-group tool name list
//	TOOLBENCH_LAZY_TOOLS      truthy value enables lazy deferral
func ResolvePolicy(env map[string]string) (*Policy, error) {
	p := &Policy{
		Profiles:   map[string][]string{},
		GroupTools: map[string][]string{},
	}
	for key, value := range env {
		if !strings.HasPrefix(key, envPrefix) {
			continue
		}
		rest := strings.TrimPrefix(key, envPrefix)
		switch {
		case rest == "TOOLS":
			p.ExplicitTools = splitList(value)
		case rest == "PROFILE":
			p.Profile = strings.TrimSpace(value)
		case rest == "LAZY_TOOLS":
			p.Lazy = truthy(value)
		case rest == "PROFILE_FILE":
			path := strings.TrimSpace(value)
			if path == "" {
				continue
			}
			if err := p.loadProfileFile(path); err != nil {
				return nil, err
			}
		case strings.HasSuffix(rest, "_TOOLS") && rest != "LAZY_TOOLS":
			group := strings.ToLower(strings.TrimSuffix(rest, "_TOOLS"))
			p.GroupTools[group] = splitList(value)
		}
	}
	if p.Profile != "" && p.Profile != FullProfile {
		if _, ok := p.Profiles[p.Profile]; !ok {
			return nil, fmt.Errorf("unknown exposure profile %q", p.Profile)
		}
	}
	return p, nil
}

// PolicyFromEnv resolves the exposure policy from the current process
// environment.
func PolicyFromEnv() (*Policy, error) {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return ResolvePolicy(env)
}

// DefineProfile registers a named profile programmatically. The reserved
// "full" name may not be redefined.
func (p *Policy) DefineProfile(name string, selectors []string) error {
	if name == FullProfile {
		return fmt.Errorf("profile name %q is reserved", FullProfile)
	}
	if p.Profiles == nil {
		p.Profiles = map[string][]string{}
	}
	p.Profiles[name] = selectors
	return nil
}

func (p *Policy) loadProfileFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profile file: %w", err)
	}
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse profile file %s: %w", path, err)
	}
	for name, selectors := range file.Profiles {
		if name == FullProfile {
			return fmt.Errorf("profile file %s redefines reserved profile %q", path, FullProfile)
		}
		p.Profiles[name] = selectors
	}
	return nil
}

// selectorSet matches "group:tool" keys against a list of selectors, with
// glob patterns supported ("git:*", "*:status").
type selectorSet struct {
	exact    map[string]bool
	patterns []glob.Glob
}

func newSelectorSet(selectors []string) *selectorSet {
	s := &selectorSet{exact: map[string]bool{}}
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if strings.ContainsAny(sel, "*?[{") {
			if p, err := glob.Compile(sel); err == nil {
				s.patterns = append(s.patterns, p)
				continue
			}
		}
		s.exact[sel] = true
	}
	return s
}

func (s *selectorSet) match(key string) bool {
	if s.exact[key] {
		return true
	}
	for _, p := range s.patterns {
		if p.Match(key) {
			return true
		}
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
