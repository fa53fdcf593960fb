// Package harness runs scripted scenarios against the demo ledger.
//
// Every scenario gets its own engine rooted in a temporary directory, a
// manual clock stopped at testutil.Epoch, and a discarded logger. Steps go
// through the real engine: transactions are executed, censored and
// journaled, snapshots are written, and a restart step closes the engine
// and recovers a new one from the journal and snapshots on disk.
//
// # Scenario Format
//
//	name: transfer_survives_restart
//	description: "A transfer is recovered from the journal"
//	codec: msgpack            # optional: msgpack | json
//	compression: zstd         # optional: zstd | gzip | none
//	steps:
//	  - op: open
//	    account: alice
//	    amount: 100
//	  - op: transfer
//	    from: alice
//	    to: bob
//	    amount: 500
//	    expect:
//	      error: unknown_account
//	  - op: restart
//	    expect:
//	      version: 1
//	      balances: { alice: 100 }
//	balances: { alice: 100 }
//	assertions:
//	  - type: trace_count
//	    op: transfer
//	    outcome: unknown_account
//	    count: 1
//
// Ops are open, deposit, withdraw, transfer, audit, advance, snapshot and
// restart. A step without expect must end with outcome "ok".
//
// # Assertion Types
//
//   - trace_contains: an event with op (and outcome, if given) exists
//   - trace_order: the first events of each op appear in the given order
//   - trace_count: exactly count events match op (and outcome)
//   - balance: the final balance of account equals amount
//   - total: the final balances sum to amount
//   - version: the final number of journaled transactions
//
// # Golden Traces
//
// RunWithGolden renders the trace as JSON and compares it with
// testdata/golden/<name>.golden using goldie. Outcomes are recorded as codes,
// never as error text, so traces stay stable when messages change.
package harness
