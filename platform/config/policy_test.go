package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPolicyDefaultsWithoutFile(t *testing.T) {
	policy, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy.DefaultMonths != 6 || policy.DefaultReminderDays != 60 || policy.DefaultGraceDays != 10 {
		t.Fatalf("unexpected default terms: %+v", policy)
	}
	if policy.MonthDays != 30 {
		t.Fatalf("expected 30 day months, got %d", policy.MonthDays)
	}
	if policy.PseudonymizeAfterDays != 60 {
		t.Fatalf("expected pseudonymisation after 60 days, got %d", policy.PseudonymizeAfterDays)
	}
}

func TestLoadPolicyOverridesFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := `
defaultMonths: 3
defaultReminderDays: 30
defaultGraceDays: 5
meaningfulActivities: [PHONE_CALL, MEETING]
defaultCapabilities: [STOP_CLOCK]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	policy, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if policy.DefaultMonths != 3 || policy.DefaultReminderDays != 30 || policy.DefaultGraceDays != 5 {
		t.Fatalf("terms not overridden: %+v", policy)
	}
	if policy.MonthDays != 30 {
		t.Fatalf("monthDays should keep its default, got %d", policy.MonthDays)
	}
	if len(policy.MeaningfulActivities) != 2 || len(policy.DefaultCapabilities) != 1 {
		t.Fatalf("lists not parsed: %+v", policy)
	}
}

func TestLoadPolicyRejectsInconsistentTerms(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"grace longer than reminder", "defaultReminderDays: 10\ndefaultGraceDays: 20\n"},
		{"reminder longer than period", "defaultMonths: 1\ndefaultReminderDays: 40\n"},
		{"zero months", "defaultMonths: 0\n"},
		{"zero pseudonymisation delay", "pseudonymizeAfterDays: 0\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "policy.yaml")
			if err := os.WriteFile(path, []byte(tc.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadPolicy(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
