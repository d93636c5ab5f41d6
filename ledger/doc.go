// Package ledger is a reference host for account-based programs.
//
// A Bank holds accounts in a Store and executes signed transactions one at a
// time. Each transaction runs against a copy-on-write working set; its writes
// reach the Store in a single Commit only when the program succeeds, so a
// failed invocation leaves no trace besides its receipt.
//
// The system program (SystemProgramID) owns plain wallets and creates new
// accounts through the allocator handed to programs.
package ledger
