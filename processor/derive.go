package processor

import "xdao.co/intro/address"

// RecordSeeds returns the derivation seeds of the record named name under authority.
func RecordSeeds(authority address.Address, name string) [][]byte {
	return [][]byte{authority.Bytes(), []byte(name)}
}

// RecordAddress derives the address of the record named name under authority.
func RecordAddress(programID, authority address.Address, name string) (address.Address, uint8, error) {
	return address.FindProgramAddress(RecordSeeds(authority, name), programID)
}
