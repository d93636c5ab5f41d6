// Package processor implements the record program: it decodes an instruction,
// verifies the caller's authority and the derived record address, and creates
// or updates the record's storage.
//
// Every check is fail-fast. The processor performs no rollback bookkeeping of
// its own; the host executes each invocation atomically and discards all
// writes when Process returns an error.
package processor
