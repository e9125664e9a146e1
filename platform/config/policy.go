package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProtectionPolicy holds organisation-wide protection defaults. Per-user lead
// settings override the terms; the month length and activity classification
// apply to every lead.
type ProtectionPolicy struct {
	DefaultMonths         int      `yaml:"defaultMonths"`
	DefaultReminderDays   int      `yaml:"defaultReminderDays"`
	DefaultGraceDays      int      `yaml:"defaultGraceDays"`
	MonthDays             int      `yaml:"monthDays"`
	MeaningfulActivities  []string `yaml:"meaningfulActivities"`
	DefaultCapabilities   []string `yaml:"defaultCapabilities"`
	MeaningfulDescription int      `yaml:"meaningfulDescriptionLength"`
	// PseudonymizeAfterDays is how long an EXPIRED lead keeps its contact
	// details before they are pseudonymised.
	PseudonymizeAfterDays int `yaml:"pseudonymizeAfterDays"`
}

// DefaultPolicy returns the 6 month / 60 day / 10 day policy.
func DefaultPolicy() ProtectionPolicy {
	return ProtectionPolicy{
		DefaultMonths:         6,
		DefaultReminderDays:   60,
		DefaultGraceDays:      10,
		MonthDays:             30,
		MeaningfulActivities:  []string{"PHONE_CALL", "EMAIL", "MEETING", "SITE_VISIT"},
		PseudonymizeAfterDays: 60,
	}
}

// LoadPolicy reads a YAML policy file. An empty path yields DefaultPolicy.
// Fields missing from the file keep their default values.
func LoadPolicy(path string) (ProtectionPolicy, error) {
	policy := DefaultPolicy()
	if strings.TrimSpace(path) == "" {
		return policy, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return ProtectionPolicy{}, fmt.Errorf("read protection policy: %w", err)
	}
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return ProtectionPolicy{}, fmt.Errorf("parse protection policy: %w", err)
	}
	if err := policy.Validate(); err != nil {
		return ProtectionPolicy{}, err
	}
	return policy, nil
}

// Validate checks that the default terms are internally consistent.
func (p ProtectionPolicy) Validate() error {
	if p.DefaultMonths <= 0 || p.MonthDays <= 0 {
		return fmt.Errorf("protection policy: months and monthDays must be positive")
	}
	total := p.DefaultMonths * p.MonthDays
	if p.DefaultReminderDays <= p.DefaultGraceDays || p.DefaultGraceDays <= 0 {
		return fmt.Errorf("protection policy: reminder days must exceed grace days (> 0)")
	}
	if p.DefaultReminderDays >= total {
		return fmt.Errorf("protection policy: reminder days must be shorter than the protection period")
	}
	if p.MeaningfulDescription < 0 {
		return fmt.Errorf("protection policy: meaningfulDescriptionLength must not be negative")
	}
	if p.PseudonymizeAfterDays <= 0 {
		return fmt.Errorf("protection policy: pseudonymizeAfterDays must be positive")
	}
	return nil
}
