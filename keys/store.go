package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xdao.co/intro/address"
)

// KeyStore keeps hex-encoded ed25519 seeds on the local filesystem, one file
// per named key.
//
// EXPERIMENTAL: this storage surface is a CLI convenience and may change.
type KeyStore struct {
	Directory string
}

type KeyEntry struct {
	Name    string
	Address address.Address
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".xdao", "intro", "keys"), nil
}

func CreateKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func (ks *KeyStore) keyFilePath(name string) string {
	return filepath.Join(ks.Directory, name+".key")
}

// CheckName validates key names and derivation labels.
func CheckName(name string) error {
	if name == "" {
		return errors.New("name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in name", char)
	}
	return nil
}

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", SeedSize, len(data))
	}
	return data, nil
}

func (ks *KeyStore) saveSeed(filePath string, seed []byte, overwrite bool) error {
	if len(seed) != SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func (ks *KeyStore) loadSeed(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// Initialize stores seed under name and returns the resulting address.
func (ks *KeyStore) Initialize(name string, seed []byte, overwrite bool) (address.Address, string, error) {
	if err := CheckName(name); err != nil {
		return address.Zero, "", err
	}
	kp, err := FromSeed(seed)
	if err != nil {
		return address.Zero, "", err
	}
	filePath := ks.keyFilePath(name)
	if err := ks.saveSeed(filePath, seed, overwrite); err != nil {
		return address.Zero, "", err
	}
	return kp.Address(), filePath, nil
}

// Derive stores a key named to, derived from the key named from and label.
func (ks *KeyStore) Derive(from, to, label string, overwrite bool) (address.Address, string, error) {
	if err := CheckName(from); err != nil {
		return address.Zero, "", err
	}
	root, err := ks.loadSeed(ks.keyFilePath(from))
	if err != nil {
		return address.Zero, "", err
	}
	seed, err := DeriveSeed(root, label)
	if err != nil {
		return address.Zero, "", err
	}
	return ks.Initialize(to, seed, overwrite)
}

// Load returns the keypair stored under name.
func (ks *KeyStore) Load(name string) (Keypair, error) {
	if err := CheckName(name); err != nil {
		return Keypair{}, err
	}
	seed, err := ks.loadSeed(ks.keyFilePath(name))
	if err != nil {
		return Keypair{}, err
	}
	return FromSeed(seed)
}

// List returns all stored keys sorted by name.
func (ks *KeyStore) List() ([]KeyEntry, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".key") {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), ".key"))
	}
	sort.Strings(names)

	out := make([]KeyEntry, 0, len(names))
	for _, name := range names {
		kp, err := ks.Load(name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		out = append(out, KeyEntry{Name: name, Address: kp.Address()})
	}
	return out, nil
}
