package core

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed seed/chart.yaml
var defaultSeedYAML []byte

// SeedAccount is one account of a seed file.
type SeedAccount struct {
	Code        string      `json:"code" yaml:"code"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description"`
	Type        AccountType `json:"type" yaml:"type"`
	Subtype     string      `json:"subtype,omitempty" yaml:"subtype"`
	ParentCode  string      `json:"parent_code,omitempty" yaml:"parent_code"`
	IsParent    bool        `json:"parent,omitempty" yaml:"parent"`
	IsSystem    bool        `json:"system,omitempty" yaml:"system"`
	IsContra    bool        `json:"contra,omitempty" yaml:"contra"`
}

type seedFile struct {
	Accounts []SeedAccount `yaml:"accounts"`
}

// SeedResult counts what a Seed call changed.
type SeedResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// DefaultSeed returns the built-in chart of accounts.
func DefaultSeed() []SeedAccount {
	accounts, err := ParseSeed(defaultSeedYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded chart seed is invalid: %v", err))
	}
	return accounts
}

// LoadSeedFile reads a seed file in the same format as the built-in chart.
func LoadSeedFile(path string) ([]SeedAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes and checks a seed document: unique codes, known types, parents
// present and of the same type.
func ParseSeed(data []byte) ([]SeedAccount, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}
	if len(f.Accounts) == 0 {
		return nil, fmt.Errorf("seed contains no accounts")
	}

	byCode := make(map[string]SeedAccount, len(f.Accounts))
	for _, a := range f.Accounts {
		if a.Code == "" || a.Name == "" {
			return nil, fmt.Errorf("seed account %q: code and name are required", a.Code)
		}
		if !a.Type.Valid() {
			return nil, fmt.Errorf("seed account %s: unknown type %q", a.Code, a.Type)
		}
		if _, dup := byCode[a.Code]; dup {
			return nil, fmt.Errorf("seed account %s appears twice", a.Code)
		}
		byCode[a.Code] = a
	}
	for _, a := range f.Accounts {
		if a.ParentCode == "" {
			continue
		}
		p, ok := byCode[a.ParentCode]
		if !ok {
			return nil, fmt.Errorf("seed account %s: parent %s is not in the seed", a.Code, a.ParentCode)
		}
		if p.Type != a.Type {
			return nil, fmt.Errorf("seed account %s: type %s differs from parent %s (%s)", a.Code, a.Type, p.Code, p.Type)
		}
	}
	return f.Accounts, nil
}

func (s SeedAccount) account(tenantID string) Account {
	return Account{
		TenantID:    tenantID,
		Code:        s.Code,
		Name:        s.Name,
		Description: s.Description,
		Type:        s.Type,
		Subtype:     s.Subtype,
		ParentCode:  s.ParentCode,
		IsSystem:    s.IsSystem,
		IsContra:    s.IsContra,
		IsParent:    s.IsParent,
		IsActive:    true,
	}
}
