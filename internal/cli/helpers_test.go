package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is an isolated config directory seeded by "pantry init".
type testEnv struct {
	configDir string
}

// result captures one command run.
type result struct {
	stdout string
	stderr string
	err    error
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{configDir: t.TempDir()}
	env.mustRun(t, "init")
	return env
}

func (e *testEnv) run(t *testing.T, args ...string) result {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config-dir", e.configDir}, args...))
	err := root.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func (e *testEnv) mustRun(t *testing.T, args ...string) result {
	t.Helper()
	r := e.run(t, args...)
	require.NoError(t, r.err, "pantry %v\nstderr: %s", args, r.stderr)
	return r
}

func parseJSON[T any](t *testing.T, s string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(s), &v), "output: %s", s)
	return v
}
