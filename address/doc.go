// Package address defines the 32-byte account address and the deterministic
// derivation of program-controlled addresses.
//
// A derived address is computed from an ordered list of seeds and the owning
// program's address. Candidates that decode to a valid ed25519 point are
// rejected, so no private key can ever exist for a derived address and only
// the owning program can authorize writes to it.
package address
