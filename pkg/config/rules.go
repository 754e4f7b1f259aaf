package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"quanta-engine/internal/order"
)

// RuleFile is the YAML layout of the order validation table:
//
//	symbols: [AAPL, MSFT]
//	max_order_age: 30s
//	rules:
//	  LIMIT: {min_quantity: 1, max_quantity: 1000, min_price: 10, max_price: 500}
type RuleFile struct {
	Symbols     []string                        `yaml:"symbols"`
	MaxOrderAge string                          `yaml:"max_order_age"`
	Rules       map[string]order.ValidationRule `yaml:"rules"`
}

// LoadRules reads and checks a rule file.
func LoadRules(path string) (*RuleFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRules(data)
}

// ParseRules decodes rule YAML and validates order types, bounds and age.
func ParseRules(data []byte) (*RuleFile, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	for name, r := range rf.Rules {
		if _, err := order.ParseType(name); err != nil {
			return nil, fmt.Errorf("rules: %w", err)
		}
		if r.MinQuantity > r.MaxQuantity || r.MinPrice > r.MaxPrice {
			return nil, fmt.Errorf("rules: %s has min above max", name)
		}
	}
	if _, _, err := rf.maxAge(); err != nil {
		return nil, err
	}
	return &rf, nil
}

func (rf *RuleFile) maxAge() (time.Duration, bool, error) {
	s := strings.TrimSpace(rf.MaxOrderAge)
	if s == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false, fmt.Errorf("rules: max_order_age: %w", err)
	}
	if d < 0 {
		return 0, false, fmt.Errorf("rules: max_order_age must not be negative")
	}
	return d, true, nil
}

// Apply configures v from the file.
func (rf *RuleFile) Apply(v *order.Validator) error {
	for _, sym := range rf.Symbols {
		v.AddSymbol(sym)
	}
	for name, r := range rf.Rules {
		t, err := order.ParseType(name)
		if err != nil {
			return err
		}
		v.SetRule(t, r)
	}
	d, ok, err := rf.maxAge()
	if err != nil {
		return err
	}
	if ok {
		v.SetMaxOrderAge(&d)
	} else {
		v.SetMaxOrderAge(nil)
	}
	return nil
}
