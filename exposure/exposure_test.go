package exposure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/deepnoodle-ai/toolbench"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *toolbench.Registry {
	t.Helper()
	reg := toolbench.NewRegistry()
	entries := []struct {
		group string
		tool  string
		core  bool
	}{
		{"git", "status", true},
		{"git", "log", false},
		{"git", "diff", false},
		{"docker", "ps", true},
		{"docker", "images", false},
	}
	for _, e := range entries {
		require.NoError(t, reg.Register(&toolbench.Capability{
			Group:       e.group,
			Tool:        e.tool,
			Core:        e.core,
			Description: e.group + " " + e.tool,
			Parse:       func(exitCode int, stdout, stderr string) any { return nil },
			RenderHuman: func(result any) string { return "" },
		}))
	}
	return reg
}

func states(t *testing.T, table *Table) map[string]State {
	t.Helper()
	out := map[string]State{}
	for _, key := range []string{"git:status", "git:log", "git:diff", "docker:ps", "docker:images"} {
		reg, ok := table.Lookup(key)
		require.True(t, ok, key)
		out[key] = reg.State
	}
	return out
}

func TestApply_NoConfigurationEnablesEverything(t *testing.T) {
	policy, err := ResolvePolicy(nil)
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	for key, state := range states(t, table) {
		assert.Equal(t, StateImmediate, state, key)
	}
	assert.Len(t, table.Advertised(), 5)
	assert.Empty(t, table.Deferred())
}

func TestApply_ExplicitListDisablesEverythingElse(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_TOOLS":      "git:status,docker:ps",
		"TOOLBENCH_LAZY_TOOLS": "1",
	})
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	s := states(t, table)
	assert.Equal(t, StateImmediate, s["git:status"])
	assert.Equal(t, StateImmediate, s["docker:ps"])
	assert.Equal(t, StateDisabled, s["git:log"])
	assert.Equal(t, StateDisabled, s["git:diff"])
	assert.Equal(t, StateDisabled, s["docker:images"])

	// Explicit intent disables lazy deferral entirely.
	assert.Empty(t, table.Deferred())
}

func TestApply_ExplicitListSupportsPatterns(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_TOOLS": "git:*",
	})
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	s := states(t, table)
	assert.Equal(t, StateImmediate, s["git:status"])
	assert.Equal(t, StateImmediate, s["git:log"])
	assert.Equal(t, StateDisabled, s["docker:ps"])
}

func TestApply_FullProfileDisablesFilteringAndLazy(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_PROFILE":    "full",
		"TOOLBENCH_LAZY_TOOLS": "true",
	})
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	assert.Len(t, table.Advertised(), 5)
	assert.Empty(t, table.Deferred())
}

func TestApply_NamedProfile(t *testing.T) {
	policy, err := ResolvePolicy(nil)
	require.NoError(t, err)
	require.NoError(t, policy.DefineProfile("vcs", []string{"git:status", "git:log"}))
	policy.Profile = "vcs"

	table := policy.Apply(testRegistry(t))
	s := states(t, table)
	assert.Equal(t, StateImmediate, s["git:status"])
	assert.Equal(t, StateImmediate, s["git:log"])
	assert.Equal(t, StateDisabled, s["docker:ps"])
}

func TestApply_NamedProfileKeepsLazyDeferral(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_LAZY_TOOLS": "1",
	})
	require.NoError(t, err)
	require.NoError(t, policy.DefineProfile("vcs", []string{"git:*"}))
	policy.Profile = "vcs"

	table := policy.Apply(testRegistry(t))
	s := states(t, table)
	assert.Equal(t, StateImmediate, s["git:status"], "core tools register immediately")
	assert.Equal(t, StateDeferred, s["git:log"])
	assert.Equal(t, StateDeferred, s["git:diff"])
	assert.Equal(t, StateDisabled, s["docker:ps"])
}

func TestApply_GroupListsFilterOnlyListedGroups(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_GIT_TOOLS": "status",
	})
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	s := states(t, table)
	assert.Equal(t, StateImmediate, s["git:status"])
	assert.Equal(t, StateDisabled, s["git:log"])
	// Groups without a filter default to fully enabled.
	assert.Equal(t, StateImmediate, s["docker:ps"])
	assert.Equal(t, StateImmediate, s["docker:images"])
}

func TestApply_ExplicitListWinsOverProfileAndGroups(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_TOOLS":     "docker:ps",
		"TOOLBENCH_GIT_TOOLS": "status,log",
	})
	require.NoError(t, err)
	require.NoError(t, policy.DefineProfile("vcs", []string{"git:*"}))
	policy.Profile = "vcs"

	table := policy.Apply(testRegistry(t))
	s := states(t, table)
	assert.Equal(t, StateImmediate, s["docker:ps"])
	assert.Equal(t, StateDisabled, s["git:status"], "levels are never merged")
}

func TestResolvePolicy_UnknownProfile(t *testing.T) {
	_, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_PROFILE": "nonexistent",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown exposure profile")
}

func TestResolvePolicy_ProfileFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  vcs:
    - "git:*"
  minimal:
    - git:status
    - docker:ps
`), 0o644))

	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_PROFILE_FILE": path,
		"TOOLBENCH_PROFILE":      "minimal",
	})
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	s := states(t, table)
	assert.Equal(t, StateImmediate, s["git:status"])
	assert.Equal(t, StateImmediate, s["docker:ps"])
	assert.Equal(t, StateDisabled, s["git:log"])
}

func TestResolvePolicy_ProfileFileCannotRedefineFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  full:\n    - git:status\n"), 0o644))

	_, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_PROFILE_FILE": path,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestTable_LoadTransitionsAndNotifies(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_LAZY_TOOLS": "1",
	})
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	var notified [][]string
	table.OnChange(func(loaded []string) {
		notified = append(notified, loaded)
	})

	// Core tools are advertised immediately; the rest are deferred.
	assert.Len(t, table.Advertised(), 2)
	assert.Len(t, table.Deferred(), 3)

	// An empty load just reports.
	report, err := table.Load(nil)
	require.NoError(t, err)
	assert.Empty(t, report.Loaded)
	assert.Equal(t, 3, report.Remaining)
	assert.Empty(t, notified, "reporting alone must not notify")

	// Loading by bare tool name works.
	report, err = table.Load([]string{"log"})
	require.NoError(t, err)
	assert.Equal(t, []string{"git:log"}, report.Loaded)
	assert.Equal(t, 2, report.Remaining)
	require.Len(t, notified, 1)
	assert.Equal(t, []string{"git:log"}, notified[0])

	reg, ok := table.Lookup("git:log")
	require.True(t, ok)
	assert.Equal(t, StateLoaded, reg.State)
	assert.True(t, reg.Advertised())

	// Loading an already-loaded tool is a no-op and does not notify.
	report, err = table.Load([]string{"git:log"})
	require.NoError(t, err)
	assert.Empty(t, report.Loaded)
	assert.Len(t, notified, 1)

	// Unknown names are an error.
	_, err = table.Load([]string{"svn:checkout"})
	assert.Error(t, err)
}

func TestTable_ErroredLoadLeavesTableUntouched(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_LAZY_TOOLS": "1",
	})
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	var notified [][]string
	table.OnChange(func(loaded []string) {
		notified = append(notified, loaded)
	})

	// The first name is loadable, the second is unknown. Nothing may
	// transition: a partial load would change the advertised set with
	// no notification and no report.
	_, err = table.Load([]string{"git:log", "svn:checkout"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "svn:checkout")

	reg, ok := table.Lookup("git:log")
	require.True(t, ok)
	assert.Equal(t, StateDeferred, reg.State)
	assert.False(t, reg.Advertised())
	assert.Len(t, table.Deferred(), 3)
	assert.Empty(t, notified)

	// The same loadable name still works on its own afterwards.
	report, err := table.Load([]string{"git:log"})
	require.NoError(t, err)
	assert.Equal(t, []string{"git:log"}, report.Loaded)
	require.Len(t, notified, 1)
}

func TestTable_DisabledNeverTransitions(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_GIT_TOOLS":  "status",
		"TOOLBENCH_LAZY_TOOLS": "1",
	})
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	reg, ok := table.Lookup("git:log")
	require.True(t, ok)
	require.Equal(t, StateDisabled, reg.State)

	// A load request matching a disabled tool loads nothing.
	report, err := table.Load([]string{"git:log"})
	require.NoError(t, err)
	assert.Empty(t, report.Loaded)

	reg, _ = table.Lookup("git:log")
	assert.Equal(t, StateDisabled, reg.State)
}

func TestLoadReport_DeferredDescriptions(t *testing.T) {
	policy, err := ResolvePolicy(map[string]string{
		"TOOLBENCH_LAZY_TOOLS": "1",
	})
	require.NoError(t, err)
	table := policy.Apply(testRegistry(t))

	report, err := table.Load(nil)
	require.NoError(t, err)
	require.Equal(t, 3, report.Remaining)
	for _, tool := range report.Deferred {
		assert.NotEmpty(t, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}
}
