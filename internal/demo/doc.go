// Package demo is a small bank ledger run as a prevalent system.
//
// It exists to exercise the engine end to end from the CLI and the scenario
// harness. Account names are compared after Unicode NFC normalization, so
// "café" typed with a combining accent and with a precomposed é is one
// account.
package demo
