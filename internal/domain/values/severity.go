package values

import (
	"fmt"
	"strings"
)

// Severity grades how serious an inject or escalation factor is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// NewSeverity parses and validates a severity value
func NewSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.IsValid() {
		return "", fmt.Errorf("invalid severity: %q", s)
	}
	return sev, nil
}

// MustNewSeverity creates a severity, panicking on invalid input (for tests and constants)
func MustNewSeverity(s string) Severity {
	sev, err := NewSeverity(s)
	if err != nil {
		panic(err)
	}
	return sev
}

func (s Severity) IsValid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func (s Severity) String() string {
	return string(s)
}

// Rank orders severities for comparison; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}
