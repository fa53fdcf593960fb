package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "s.yaml", `
name: test_scenario
description: "Test scenario for validation"
steps:
  - op: open
    account: alice
    amount: 10
  - op: transfer
    from: alice
    to: bob
    amount: 5
    expect:
      error: unknown_account
balances: { alice: 10 }
assertions:
  - type: balance
    account: alice
    amount: 10
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Test scenario for validation", scenario.Description)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, OpOpen, scenario.Steps[0].Op)
	assert.Equal(t, int64(10), scenario.Steps[0].Amount)
	require.NotNil(t, scenario.Steps[1].Expect)
	assert.Equal(t, OutcomeUnknownAccount, scenario.Steps[1].Expect.Error)
	assert.Equal(t, map[string]int64{"alice": 10}, scenario.Balances)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "d"
step:
  - op: snapshot
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\nsteps: [{op: snapshot}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\nsteps: [{op: snapshot}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\n",
			wantErr: "steps list is required",
		},
		{
			name:    "unknown op",
			content: "name: n\ndescription: d\nsteps: [{op: explode}]\n",
			wantErr: `unknown op "explode"`,
		},
		{
			name:    "empty op",
			content: "name: n\ndescription: d\nsteps: [{account: a}]\n",
			wantErr: "op is required",
		},
		{
			name:    "deposit without account",
			content: "name: n\ndescription: d\nsteps: [{op: deposit, amount: 1}]\n",
			wantErr: "account is required for deposit",
		},
		{
			name:    "transfer without to",
			content: "name: n\ndescription: d\nsteps: [{op: transfer, from: a, amount: 1}]\n",
			wantErr: "from and to are required",
		},
		{
			name:    "audit without accounts",
			content: "name: n\ndescription: d\nsteps: [{op: audit}]\n",
			wantErr: "accounts is required for audit",
		},
		{
			name:    "advance without duration",
			content: "name: n\ndescription: d\nsteps: [{op: advance, by: soon}]\n",
			wantErr: "advance needs a duration",
		},
		{
			name:    "advance backwards",
			content: "name: n\ndescription: d\nsteps: [{op: advance, by: -1s}]\n",
			wantErr: "must not move the clock back",
		},
		{
			name:    "unknown error code",
			content: "name: n\ndescription: d\nsteps: [{op: snapshot, expect: {error: broke}}]\n",
			wantErr: `unknown error code "broke"`,
		},
		{
			name:    "unknown codec",
			content: "name: n\ndescription: d\ncodec: gob\nsteps: [{op: snapshot}]\n",
			wantErr: `unknown codec "gob"`,
		},
		{
			name:    "unknown compression",
			content: "name: n\ndescription: d\ncompression: lz4\nsteps: [{op: snapshot}]\n",
			wantErr: `unknown compression "lz4"`,
		},
		{
			name:    "negative segment size",
			content: "name: n\ndescription: d\nsegment_bytes: -1\nsteps: [{op: snapshot}]\n",
			wantErr: "segment_bytes must be non-negative",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\nsteps: [{op: snapshot}]\nassertions: [{type: vibes}]\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "assertion without type",
			content: "name: n\ndescription: d\nsteps: [{op: snapshot}]\nassertions: [{op: open}]\n",
			wantErr: "type is required",
		},
		{
			name:    "trace_count without op",
			content: "name: n\ndescription: d\nsteps: [{op: snapshot}]\nassertions: [{type: trace_count, count: 1}]\n",
			wantErr: "op is required for trace_count",
		},
		{
			name:    "balance without account",
			content: "name: n\ndescription: d\nsteps: [{op: snapshot}]\nassertions: [{type: balance, amount: 1}]\n",
			wantErr: "account is required for balance",
		},
		{
			name:    "unknown assertion outcome",
			content: "name: n\ndescription: d\nsteps: [{op: snapshot}]\nassertions: [{type: trace_contains, op: open, outcome: weird}]\n",
			wantErr: `unknown outcome "weird"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
