package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// runCLI executes the CLI in-process and returns its output and exit code.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = Execute(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

// writeConfig writes a quiet YAML config into dir and returns its path.
// Relative directories in it resolve against dir.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "prevail.yaml")
	content := "log_level: warn\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// mustLedger runs a ledger subcommand that must succeed.
func mustLedger(t *testing.T, cfg string, args ...string) string {
	t.Helper()
	stdout, stderr, code := runCLI(t, append([]string{"ledger", "--config", cfg}, args...)...)
	require.Equal(t, ExitSuccess, code, "stdout: %s\nstderr: %s", stdout, stderr)
	return stdout
}

// decodeResponse parses a JSON envelope.
func decodeResponse(t *testing.T, stdout string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), "output: %s", stdout)
	return resp
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
