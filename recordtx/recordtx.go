// Package recordtx builds signed ledger transactions for the record program.
package recordtx

import (
	"github.com/google/uuid"

	"xdao.co/intro/address"
	"xdao.co/intro/instruction"
	"xdao.co/intro/keys"
	"xdao.co/intro/ledger"
	"xdao.co/intro/processor"
)

// Add returns a transaction creating the record name under authority.
// The authority signs and pays for the record storage.
func Add(programID address.Address, authority keys.Keypair, name, message string) (*ledger.Transaction, error) {
	target, _, err := processor.RecordAddress(programID, authority.Address(), name)
	if err != nil {
		return nil, err
	}
	data, err := instruction.Encode(instruction.AddRecord{Name: name, Message: message})
	if err != nil {
		return nil, err
	}
	return ledger.NewTransaction(ledger.Message{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			{Address: authority.Address(), Signer: true, Writable: true},
			{Address: target, Writable: true},
			{Address: ledger.SystemProgramID},
		},
		Data:  data,
		Nonce: nonce(),
	}, authority)
}

// Update returns a transaction rewriting the record at the address derived
// from (authority, name).
func Update(programID address.Address, authority keys.Keypair, name, message string) (*ledger.Transaction, error) {
	target, _, err := processor.RecordAddress(programID, authority.Address(), name)
	if err != nil {
		return nil, err
	}
	return UpdateAt(programID, authority, target, name, message)
}

// UpdateAt is Update against an explicit target address.
func UpdateAt(programID address.Address, authority keys.Keypair, target address.Address, name, message string) (*ledger.Transaction, error) {
	data, err := instruction.Encode(instruction.UpdateRecord{Name: name, Message: message})
	if err != nil {
		return nil, err
	}
	return ledger.NewTransaction(ledger.Message{
		ProgramID: programID,
		Accounts: []ledger.AccountMeta{
			{Address: authority.Address(), Signer: true, Writable: true},
			{Address: target, Writable: true},
		},
		Data:  data,
		Nonce: nonce(),
	}, authority)
}

// nonce gives each built transaction its own ID.
func nonce() []byte {
	id := uuid.New()
	return id[:]
}
