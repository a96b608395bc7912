package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"payconfirm/internal/domain"
)

//go:embed banks.yaml
var defaultBanks []byte

// BankDirectory maps a currency to the account customers transfer into.
// It is read-only after loading.
type BankDirectory struct {
	accounts map[string]domain.BankDetails
}

// LoadBankDirectory reads the directory from path, or the embedded default
// when path is empty.
func LoadBankDirectory(path string) (*BankDirectory, error) {
	data := defaultBanks
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read bank details: %w", err)
		}
		data = b
	}
	return ParseBankDirectory(data)
}

// ParseBankDirectory decodes a YAML document keyed by currency code.
func ParseBankDirectory(data []byte) (*BankDirectory, error) {
	var raw map[string]domain.BankDetails
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse bank details: %w", err)
	}

	accounts := make(map[string]domain.BankDetails, len(raw))
	for code, details := range raw {
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) != 3 {
			return nil, fmt.Errorf("invalid currency code %q", code)
		}
		if details.AccountNumber == "" || details.BankName == "" {
			return nil, fmt.Errorf("incomplete bank details for %s", code)
		}
		details.Currency = code
		accounts[code] = details
	}

	return &BankDirectory{accounts: accounts}, nil
}

// Lookup returns a copy of the details for currency.
func (d *BankDirectory) Lookup(currency string) (domain.BankDetails, bool) {
	details, ok := d.accounts[strings.ToUpper(currency)]
	return details, ok
}

// Currencies returns the supported currency codes in sorted order.
func (d *BankDirectory) Currencies() []string {
	codes := make([]string, 0, len(d.accounts))
	for code := range d.accounts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
