package values

import (
	"fmt"
	"strings"
)

// Role identifies a participant's function within an exercise.
type Role string

const (
	RoleIncidentCommander Role = "incident_commander"
	RoleOperations        Role = "operations"
	RoleCommunications    Role = "communications"
	RoleLogistics         Role = "logistics"
	RoleLiaison           Role = "liaison"
	RoleMedia             Role = "media"

	// Oversight roles always see restricted injects.
	RoleExerciseControl Role = "exercise_control"
	RoleEvaluator       Role = "evaluator"
)

// NewRole parses and validates a role value
func NewRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role: %q", s)
	}
	return r, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleIncidentCommander, RoleOperations, RoleCommunications,
		RoleLogistics, RoleLiaison, RoleMedia,
		RoleExerciseControl, RoleEvaluator:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// IsOversight reports whether the role bypasses user-level scope narrowing.
func (r Role) IsOversight() bool {
	return r == RoleExerciseControl || r == RoleEvaluator
}

// OversightRoles returns the roles that may read any published inject.
func OversightRoles() []Role {
	return []Role{RoleExerciseControl, RoleEvaluator}
}
