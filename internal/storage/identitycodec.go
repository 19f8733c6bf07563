package storage

import (
	"fmt"

	"github.com/valter-silva-au/taskclock/pkg/models"
	"gopkg.in/yaml.v3"
)

// accountsFile is the persisted account registry, keyed by lower-cased email.
type accountsFile struct {
	Version  string                    `yaml:"version"`
	Accounts map[string]models.Account `yaml:"accounts"`
}

// EncodeIdentity serializes the current identity for the "user" key.
func EncodeIdentity(id models.Identity) ([]byte, error) {
	data, err := yaml.Marshal(&id)
	if err != nil {
		return nil, fmt.Errorf("encoding identity: %w", err)
	}
	return data, nil
}

// DecodeIdentity parses a value written by EncodeIdentity. The legacy JSON
// object {"id":..., "email":...} is valid YAML and decodes the same way.
func DecodeIdentity(data []byte) (models.Identity, error) {
	var id models.Identity
	if err := yaml.Unmarshal(data, &id); err != nil {
		return models.Identity{}, fmt.Errorf("decoding identity: %w", err)
	}
	if id.ID == "" {
		return models.Identity{}, fmt.Errorf("decoding identity: id is empty")
	}
	return id, nil
}

// EncodeAccounts serializes the account registry.
func EncodeAccounts(accounts map[string]models.Account) ([]byte, error) {
	if accounts == nil {
		accounts = make(map[string]models.Account)
	}
	data, err := yaml.Marshal(&accountsFile{Version: "1.0", Accounts: accounts})
	if err != nil {
		return nil, fmt.Errorf("encoding accounts: %w", err)
	}
	return data, nil
}

// DecodeAccounts parses a value written by EncodeAccounts.
func DecodeAccounts(data []byte) (map[string]models.Account, error) {
	var f accountsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding accounts: parsing YAML: %w", err)
	}
	if f.Accounts == nil {
		f.Accounts = make(map[string]models.Account)
	}
	return f.Accounts, nil
}
