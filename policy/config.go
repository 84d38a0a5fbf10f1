package policy

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// EnvPrefix is shared by every toolbench environment variable.
const EnvPrefix = "TOOLBENCH_"

// Config is the process-wide policy state, loaded once at startup. It is
// read-only for the lifetime of the process; there is no hot reload.
//
// A global setting, when present, always overrides the corresponding
// per-group setting. The two are never merged.
type Config struct {
	// GlobalCommands is the global command allow-list. Nil means not
	// configured; an empty list denies every command.
	GlobalCommands *AllowList

	// GroupCommands holds per-group command allow-lists, keyed by group.
	GroupCommands map[string]*AllowList

	// GlobalRoots is the global working-directory allow-list of absolute
	// paths. Nil means not configured.
	GlobalRoots []string

	// GroupRoots holds per-group root allow-lists.
	GroupRoots map[string][]string

	// StrictPathGroups marks groups that reject path-qualified command
	// names, forcing resolution through the search path.
	StrictPathGroups map[string]bool

	// SanitizePaths enables lexical rejection of working directories
	// containing ".." segments before resolution.
	SanitizePaths bool
}

// commandList returns the allow-list applicable to a group: the global
// list when configured, otherwise the group's own list. Nil means no
// restriction.
func (c *Config) commandList(group string) *AllowList {
	if c.GlobalCommands != nil {
		return c.GlobalCommands
	}
	return c.GroupCommands[group]
}

// rootList returns the root allow-list applicable to a group under the
// same global-overrides-group rule. Nil means no restriction.
func (c *Config) rootList(group string) []string {
	if c.GlobalRoots != nil {
		return c.GlobalRoots
	}
	return c.GroupRoots[group]
}

// AllowList is a set of command basenames. Entries containing glob
// metacharacters ("npm*", "{git,hg}") match as patterns; everything else
// matches exactly.
type AllowList struct {
	entries  []string
	patterns []glob.Glob
}

// NewAllowList builds an allow-list from entries, compiling glob patterns
// where present. Invalid patterns are kept as literal entries.
func NewAllowList(entries []string) *AllowList {
	l := &AllowList{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.ContainsAny(entry, "*?[{") {
			if p, err := glob.Compile(entry); err == nil {
				l.patterns = append(l.patterns, p)
				continue
			}
		}
		l.entries = append(l.entries, entry)
	}
	return l
}

// Match reports whether name is a member of the allow-list.
func (l *AllowList) Match(name string) bool {
	for _, entry := range l.entries {
		if entry == name {
			return true
		}
	}
	for _, p := range l.patterns {
		if p.Match(name) {
			return true
		}
	}
	return false
}

// Entries returns the literal entries and pattern sources, for display.
func (l *AllowList) Entries() []string {
	return l.entries
}

// ResolveConfig builds a Config from a snapshot of environment variables.
// It is a pure function over the snapshot so precedence behavior can be
// tested without touching the real environment.
//
// Recognized keys (GROUP is the upper-cased group name):
//
//	TOOLBENCH_ALLOWED_COMMANDS          comma-separated basenames/patterns
//	TOOLBENCH_<GROUP>_ALLOWED_COMMANDS  per-group command allow-list
//	TOOLBENCH_ALLOWED_ROOTS             path-list of absolute directories
//	TOOLBENCH_<GROUP>_ALLOWED_ROOTS     per-group root allow-list
//	TOOLBENCH_<GROUP>_STRICT_COMMAND_PATH  truthy value enables strict mode
//	TOOLBENCH_SANITIZE_PATHS            truthy value enables sanitization
func ResolveConfig(env map[string]string) *Config {
	cfg := &Config{
		GroupCommands:    map[string]*AllowList{},
		GroupRoots:       map[string][]string{},
		StrictPathGroups: map[string]bool{},
	}
	for key, value := range env {
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		rest := strings.TrimPrefix(key, EnvPrefix)
		switch {
		case rest == "ALLOWED_COMMANDS":
			cfg.GlobalCommands = NewAllowList(splitList(value, ","))
		case rest == "ALLOWED_ROOTS":
			cfg.GlobalRoots = cleanRoots(splitList(value, string(os.PathListSeparator)))
		case rest == "SANITIZE_PATHS":
			cfg.SanitizePaths = truthy(value)
		case strings.HasSuffix(rest, "_ALLOWED_COMMANDS"):
			group := groupFromKey(rest, "_ALLOWED_COMMANDS")
			cfg.GroupCommands[group] = NewAllowList(splitList(value, ","))
		case strings.HasSuffix(rest, "_ALLOWED_ROOTS"):
			group := groupFromKey(rest, "_ALLOWED_ROOTS")
			cfg.GroupRoots[group] = cleanRoots(splitList(value, string(os.PathListSeparator)))
		case strings.HasSuffix(rest, "_STRICT_COMMAND_PATH"):
			group := groupFromKey(rest, "_STRICT_COMMAND_PATH")
			cfg.StrictPathGroups[group] = truthy(value)
		}
	}
	return cfg
}

// ConfigFromEnv resolves the policy configuration from the current process
// environment.
func ConfigFromEnv() *Config {
	return ResolveConfig(environSnapshot())
}

func environSnapshot() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func groupFromKey(rest, suffix string) string {
	return strings.ToLower(strings.TrimSuffix(rest, suffix))
}

func splitList(value, sep string) []string {
	var out []string
	for _, part := range strings.Split(value, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func cleanRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		out = append(out, filepath.Clean(abs))
	}
	sort.Strings(out)
	return out
}

func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
