// Package keys provides the ed25519 keypairs that sign ledger transactions.
//
// API stability:
//
// Stable:
//   - Pure, deterministic primitives: Keypair construction from a seed and
//     label-based seed derivation.
//
// Experimental:
//   - Filesystem-backed key storage (KeyStore). It is a local convenience for
//     the intro CLI and not part of the ledger protocol.
package keys
