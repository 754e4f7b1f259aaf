package strategy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// UserConfig is a user entry in a seed file.
type UserConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// Config is a strategy entry in a seed file. Status defaults to ACTIVE.
type Config struct {
	ID     string `yaml:"id"`
	Name   string `yaml:"name"`
	UserID string `yaml:"user_id"`
	Status string `yaml:"status"`
}

// Seed is the top-level YAML structure used to pre-populate a Registry.
type Seed struct {
	Users      []UserConfig `yaml:"users"`
	Strategies []Config     `yaml:"strategies"`
}

// LoadSeed reads users and strategies from a YAML file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML and checks statuses up front so Apply cannot
// fail halfway on a typo.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	for _, s := range seed.Strategies {
		if s.Status == "" {
			continue
		}
		if _, err := ParseStatus(s.Status); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s.ID, err)
		}
	}
	return &seed, nil
}

// Apply adds users, then strategies, then moves strategies to their configured
// status. brokers resolves each user's broker handle and may be nil.
func (s *Seed) Apply(r *Registry, brokers func(userID string) any) error {
	for _, u := range s.Users {
		var handle any
		if brokers != nil {
			handle = brokers(u.ID)
		}
		if err := r.AddUser(u.ID, u.Name, handle); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID, err)
		}
	}

	for _, cfg := range s.Strategies {
		if err := r.AddStrategy(cfg.ID, cfg.Name, cfg.UserID, nil); err != nil {
			return fmt.Errorf("seed strategy %s: %w", cfg.ID, err)
		}
		if cfg.Status == "" {
			continue
		}
		status, _ := ParseStatus(cfg.Status)
		if status == StatusActive {
			continue
		}
		if err := r.UpdateStatus(cfg.ID, status); err != nil {
			return fmt.Errorf("seed strategy %s status: %w", cfg.ID, err)
		}
	}
	return nil
}
