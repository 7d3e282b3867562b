package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfigDir = "testdata/config"

// runCLI executes the root command with args and returns what it wrote.
func runCLI(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// withEnv prefixes args with the test configuration and a fresh database.
func withEnv(t *testing.T, db string, args ...string) []string {
	t.Helper()
	if db == "" {
		db = filepath.Join(t.TempDir(), "bibform.db")
	}
	return append([]string{"--config-dir", testConfigDir, "--db", db}, args...)
}

// decodeData decodes a successful JSON response into dst.
func decodeData(t *testing.T, stdout string, dst any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "ok", resp.Status, stdout)
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

// decodeError decodes an error JSON response.
func decodeError(t *testing.T, stdout string) *CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "error", resp.Status, stdout)
	require.NotNil(t, resp.Error)
	return resp.Error
}
