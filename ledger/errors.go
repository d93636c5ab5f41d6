package ledger

import "errors"

var (
	// ErrAccountNotFound is returned by Store.Get for absent accounts.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrAccountInUse is returned when allocating over an existing account.
	ErrAccountInUse = errors.New("ledger: account already in use")
	// ErrInsufficientFunds means the fee payer cannot cover an allocation.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrSignatureVerification means a signer meta has no valid signature.
	ErrSignatureVerification = errors.New("ledger: signature verification failed")
	// ErrMissingSigner is returned by NewTransaction when a signer keypair is absent.
	ErrMissingSigner = errors.New("ledger: missing signer keypair")
	// ErrUnknownProgram means no program is registered under the message's program id.
	ErrUnknownProgram = errors.New("ledger: unknown program")
	// ErrAlreadyProcessed is returned for a transaction whose ID was already committed.
	ErrAlreadyProcessed = errors.New("ledger: transaction already processed")
	// ErrReadonlyAccount means a write targeted an account not marked writable.
	ErrReadonlyAccount = errors.New("ledger: account is not writable")
	// ErrExternalDataModified means a program wrote to an account it does not own.
	ErrExternalDataModified = errors.New("ledger: program modified data of an account it does not own")
	// ErrDataTooLarge means a write or allocation exceeds the account capacity.
	ErrDataTooLarge = errors.New("ledger: data exceeds account capacity")
	// ErrInvalidSeeds means the allocation proof does not derive the target address.
	ErrInvalidSeeds = errors.New("ledger: derivation proof does not match address")
	// ErrInvalidOwner means a program tried to allocate an account for another owner.
	ErrInvalidOwner = errors.New("ledger: program may only assign accounts to itself")
	// ErrPayerNotSigner means the fee payer did not sign the transaction.
	ErrPayerNotSigner = errors.New("ledger: fee payer did not sign")
	// ErrMalformedWire is returned by the Unmarshal functions for invalid input.
	ErrMalformedWire = errors.New("ledger: malformed wire encoding")
)

// IsNotFound reports whether err is or wraps ErrAccountNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrAccountNotFound) }
