package values

import (
	"fmt"
	"strings"
)

// Team names a participating agency or unit within an exercise, e.g.
// "fire", "police", "public_health". The set of teams is scenario-defined,
// so Team is validated for shape rather than membership.
type Team string

// NewTeam validates and normalizes a team identifier
func NewTeam(s string) (Team, error) {
	t := Team(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return "", fmt.Errorf("team cannot be empty")
	}
	if len(t) > 64 {
		return "", fmt.Errorf("team identifier too long: %q", s)
	}
	return t, nil
}

func (t Team) String() string {
	return string(t)
}
