package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted run of the demo ledger through a real engine.
//
// Steps execute in order against an engine whose directories live in a
// fresh temporary directory. A restart step closes the engine and recovers
// a new one from disk, so every expectation after it checks what survived.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Codec selects the snapshot serializer: "msgpack" (default) or "json".
	Codec string `yaml:"codec,omitempty"`

	// Compression is the snapshot compression: "zstd" (default), "gzip" or "none".
	Compression string `yaml:"compression,omitempty"`

	// SegmentBytes overrides the journal segment size threshold.
	SegmentBytes int64 `yaml:"segment_bytes,omitempty"`

	// Steps is the main flow.
	Steps []Step `yaml:"steps"`

	// Balances, when present, must equal the final ledger exactly.
	Balances map[string]int64 `yaml:"balances,omitempty"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one operation against the ledger or the engine.
type Step struct {
	Op string `yaml:"op"`

	Account  string   `yaml:"account,omitempty"`
	From     string   `yaml:"from,omitempty"`
	To       string   `yaml:"to,omitempty"`
	Amount   int64    `yaml:"amount,omitempty"`
	Accounts []string `yaml:"accounts,omitempty"`

	// By is the clock advance of an advance step, e.g. "90s".
	By string `yaml:"by,omitempty"`

	// Expect, when present, is checked after the step runs. A step without
	// one must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of one step.
type Expect struct {
	// Error is the expected outcome code ("ok" or one of the Err* codes).
	// Empty means "ok".
	Error string `yaml:"error,omitempty"`

	// Balances is a subset of the ledger that must hold after the step.
	Balances map[string]int64 `yaml:"balances,omitempty"`

	// Version is the expected number of journaled transactions after the step.
	Version *uint64 `yaml:"version,omitempty"`
}

// Step operations.
const (
	OpOpen     = "open"
	OpDeposit  = "deposit"
	OpWithdraw = "withdraw"
	OpTransfer = "transfer"
	OpAudit    = "audit"
	OpSnapshot = "snapshot"
	OpRestart  = "restart"
	OpAdvance  = "advance"
)

// Outcome codes recorded in traces and matched by Expect.Error.
const (
	OutcomeOK                = "ok"
	OutcomeInvalidName       = "invalid_name"
	OutcomeInvalidAmount     = "invalid_amount"
	OutcomeAccountExists     = "account_exists"
	OutcomeUnknownAccount    = "unknown_account"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeVetoed            = "vetoed"
	OutcomeUnrecoverable     = "unrecoverable"
	OutcomeFailed            = "failed"
)

var knownOutcomes = map[string]bool{
	OutcomeOK:                true,
	OutcomeInvalidName:       true,
	OutcomeInvalidAmount:     true,
	OutcomeAccountExists:     true,
	OutcomeUnknownAccount:    true,
	OutcomeInsufficientFunds: true,
	OutcomeVetoed:            true,
	OutcomeUnrecoverable:     true,
	OutcomeFailed:            true,
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	switch s.Codec {
	case "", "msgpack", "json":
	default:
		return fmt.Errorf("unknown codec %q", s.Codec)
	}
	switch s.Compression {
	case "", "zstd", "gzip", "none":
	default:
		return fmt.Errorf("unknown compression %q", s.Compression)
	}
	if s.SegmentBytes < 0 {
		return fmt.Errorf("segment_bytes must be non-negative")
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch step.Op {
	case OpOpen, OpDeposit, OpWithdraw:
		if step.Account == "" {
			return fmt.Errorf("steps[%d]: account is required for %s", index, step.Op)
		}
	case OpTransfer:
		if step.From == "" || step.To == "" {
			return fmt.Errorf("steps[%d]: from and to are required for transfer", index)
		}
	case OpAudit:
		if len(step.Accounts) == 0 {
			return fmt.Errorf("steps[%d]: accounts is required for audit", index)
		}
	case OpAdvance:
		d, err := time.ParseDuration(step.By)
		if err != nil {
			return fmt.Errorf("steps[%d]: advance needs a duration in by: %w", index, err)
		}
		if d < 0 {
			return fmt.Errorf("steps[%d]: advance must not move the clock back", index)
		}
	case OpSnapshot, OpRestart:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, step.Op)
	}

	if step.Expect != nil && step.Expect.Error != "" && !knownOutcomes[step.Expect.Error] {
		return fmt.Errorf("steps[%d].expect: unknown error code %q", index, step.Expect.Error)
	}
	return nil
}
