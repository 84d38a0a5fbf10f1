package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Gate authorizes command executions for one tool group. It is a pure
// validator: a nil return means the execution may proceed, a *Denial
// explains why it may not. Gates are cheap to construct per call and hold
// only references to the shared Config.
type Gate struct {
	config *Config
	group  string
}

// NewGate returns a gate bound to the given tool group.
func NewGate(config *Config, group string) *Gate {
	return &Gate{config: config, group: group}
}

// Authorize validates a command name and working directory against the
// configured allow-lists. The argument vector is accepted as-is: flags in
// argv are legitimate when the adapter placed them there. Caller-supplied
// value fields are checked separately via RejectFlagValues.
func (g *Gate) Authorize(command, cwd string, args []string) error {
	if g.config.StrictPathGroups[g.group] && strings.ContainsAny(command, `/\`) {
		return &Denial{
			Code:   CodePathQualifiedCommandRejected,
			Group:  g.group,
			Detail: fmt.Sprintf("command %q must be a bare name resolved via PATH", command),
		}
	}
	if list := g.config.commandList(g.group); list != nil {
		base := CommandBasename(command)
		if !list.Match(base) {
			return &Denial{
				Code:   CodeCommandNotAllowed,
				Group:  g.group,
				Detail: fmt.Sprintf("command %q is not in the allow-list", base),
			}
		}
	}
	if roots := g.config.rootList(g.group); roots != nil {
		if err := g.checkRoot(cwd, roots); err != nil {
			return err
		}
	}
	return nil
}

// RejectFlagValues checks caller-supplied strings that will be spliced
// into an argument vector at value positions (branch names, package names,
// URLs). A value beginning with "-" could be interpreted as a flag by the
// underlying tool, so it is rejected outright. This is a string-prefix
// check, not a parser, and runs before any process is spawned.
func (g *Gate) RejectFlagValues(values ...string) error {
	for _, value := range values {
		if strings.HasPrefix(value, "-") {
			return &Denial{
				Code:   CodeFlagInjection,
				Group:  g.group,
				Detail: fmt.Sprintf("value %q begins with '-' where a plain value is expected", value),
			}
		}
	}
	return nil
}

func (g *Gate) checkRoot(cwd string, roots []string) error {
	if g.config.SanitizePaths && containsDotDot(cwd) {
		return &Denial{
			Code:   CodePathNotAllowed,
			Group:  g.group,
			Detail: fmt.Sprintf("working directory %q contains a parent-directory segment", cwd),
		}
	}
	resolved, err := ResolvePath(cwd)
	if err != nil {
		return &Denial{
			Code:   CodePathNotAllowed,
			Group:  g.group,
			Detail: fmt.Sprintf("working directory %q could not be resolved: %v", cwd, err),
		}
	}
	for _, root := range roots {
		// Roots are resolved the same way as the cwd so a symlinked
		// root (such as /tmp on macOS) still matches.
		realRoot, err := ResolvePath(root)
		if err != nil {
			realRoot = root
		}
		if underRoot(realRoot, resolved) {
			return nil
		}
	}
	return &Denial{
		Code:   CodePathNotAllowed,
		Group:  g.group,
		Detail: fmt.Sprintf("working directory %q is outside every allowed root", cwd),
	}
}

// CommandBasename extracts the comparable basename of a command string:
// any leading path (with either separator style) and a trailing extension
// are stripped, so "C:\tools\node.exe" and "/usr/bin/node" both compare as
// "node".
func CommandBasename(command string) string {
	base := command
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

// ResolvePath resolves a path to its absolute, symlink-resolved form. When
// the final components do not exist yet, symlinks are resolved for the
// deepest existing ancestor and the remainder is rejoined, so a symlinked
// parent cannot smuggle the path outside a confined root.
func ResolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return real, nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to resolve symlinks: %w", err)
	}
	return resolveMissing(abs)
}

// resolveMissing walks up from a nonexistent path to the deepest existing
// directory, resolves that directory's symlinks, and rejoins the missing
// suffix.
func resolveMissing(abs string) (string, error) {
	dir := abs
	var suffix []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		suffix = append([]string{filepath.Base(dir)}, suffix...)
		dir = parent
		if _, err := os.Stat(dir); err == nil {
			real, err := filepath.EvalSymlinks(dir)
			if err != nil {
				return "", fmt.Errorf("failed to resolve symlinks: %w", err)
			}
			return filepath.Join(append([]string{real}, suffix...)...), nil
		}
	}
	return abs, nil
}

// underRoot reports whether path equals root or is a descendant of it.
func underRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

func containsDotDot(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\'
	}) {
		if part == ".." {
			return true
		}
	}
	return false
}
