package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/prevail/internal/demo"
)

// Assertion validates the final trace or ledger.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Op selects trace events (trace_contains, trace_count).
	Op string `yaml:"op,omitempty"`

	// Outcome narrows Op to events with this outcome. Empty matches any.
	Outcome string `yaml:"outcome,omitempty"`

	// Ops is the expected order for trace_order.
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Account and Amount are used by balance; total uses Amount alone.
	Account string `yaml:"account,omitempty"`
	Amount  int64  `yaml:"amount,omitempty"`

	// Version is the expected final number of journaled transactions.
	Version uint64 `yaml:"version,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertBalance       = "balance"
	AssertTotal         = "total"
	AssertVersion       = "version"
)

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertBalance:
		if a.Account == "" {
			return fmt.Errorf("assertions[%d]: account is required for balance", index)
		}
	case AssertTotal, AssertVersion:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Outcome != "" && !knownOutcomes[a.Outcome] {
		return fmt.Errorf("assertions[%d]: unknown outcome %q", index, a.Outcome)
	}
	return nil
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %v -> %s\n", event.Step, event.Op, event.Args, event.Outcome)
		}
	}
	return buf.String()
}

func matches(event TraceEvent, op, outcome string) bool {
	return event.Op == op && (outcome == "" || event.Outcome == outcome)
}

func describe(op, outcome string) string {
	if outcome == "" {
		return op
	}
	return op + " (" + outcome + ")"
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if matches(event, a.Op, a.Outcome) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(a.Op, a.Outcome),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of Ops appear in order.
// Other events may appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Op]; !seen {
			positions[event.Op] = i + 1
		}
	}

	for _, op := range a.Ops {
		if positions[op] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all ops present: %v", a.Ops),
				Actual:   fmt.Sprintf("missing op: %s", op),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Ops); i++ {
		prev, curr := a.Ops[i-1], a.Ops[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("ops in order: %v", a.Ops),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, a.Op, a.Outcome) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, describe(a.Op, a.Outcome)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func assertBalance(balances map[string]int64, a Assertion) error {
	got, ok := balances[demo.Normalize(a.Account)]
	if !ok {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("account %q = %d", a.Account, a.Amount),
			Actual:   "account does not exist",
		}
	}
	if got != a.Amount {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("account %q = %d", a.Account, a.Amount),
			Actual:   fmt.Sprintf("account %q = %d", a.Account, got),
		}
	}
	return nil
}

func assertTotal(balances map[string]int64, a Assertion) error {
	var total int64
	for _, b := range balances {
		total += b
	}
	if total != a.Amount {
		return &AssertionError{
			Type:     AssertTotal,
			Expected: fmt.Sprintf("total %d", a.Amount),
			Actual:   fmt.Sprintf("total %d", total),
		}
	}
	return nil
}

// EvaluateAssertions evaluates all assertions against the result and
// returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertBalance:
			err = assertBalance(result.Balances, a)
		case AssertTotal:
			err = assertTotal(result.Balances, a)
		case AssertVersion:
			if result.Version != a.Version {
				err = &AssertionError{
					Type:     AssertVersion,
					Expected: fmt.Sprintf("version %d", a.Version),
					Actual:   fmt.Sprintf("version %d", result.Version),
				}
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
