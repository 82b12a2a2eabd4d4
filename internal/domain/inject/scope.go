package inject

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// ScopeKind discriminates the closed set of visibility scopes. Visibility
// is data, resolved once at publish time, so every reader applies the same
// check instead of re-deriving it.
type ScopeKind int

const (
	ScopeUniversal ScopeKind = iota
	ScopeRoleRestricted
	ScopeTeamRestricted
	// ScopeUserRestricted only appears in resolved scopes; it is the result
	// of narrowing any authored scope to a single participant.
	ScopeUserRestricted
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeUniversal:
		return "universal"
	case ScopeRoleRestricted:
		return "role_restricted"
	case ScopeTeamRestricted:
		return "team_restricted"
	case ScopeUserRestricted:
		return "user_restricted"
	default:
		return "unknown"
	}
}

// ParseScopeKind maps a stored scope kind back to its enum value
func ParseScopeKind(s string) (ScopeKind, error) {
	switch s {
	case "universal":
		return ScopeUniversal, nil
	case "role_restricted":
		return ScopeRoleRestricted, nil
	case "team_restricted":
		return ScopeTeamRestricted, nil
	case "user_restricted":
		return ScopeUserRestricted, nil
	default:
		return 0, fmt.Errorf("unknown scope kind: %q", s)
	}
}

// MarshalJSON stores scope kinds as their text form.
func (k ScopeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *ScopeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseScopeKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Scope is the authored visibility of an event definition.
type Scope struct {
	Kind  ScopeKind      `json:"kind"`
	Roles []values.Role  `json:"roles,omitempty"`
	Teams []values.Team  `json:"teams,omitempty"`
}

// UniversalScope makes an inject visible to every participant.
func UniversalScope() Scope {
	return Scope{Kind: ScopeUniversal}
}

// RoleScope restricts an inject to the given roles.
func RoleScope(roles ...values.Role) Scope {
	return Scope{Kind: ScopeRoleRestricted, Roles: roles}
}

// TeamScope restricts an inject to the given teams.
func TeamScope(teams ...values.Team) Scope {
	return Scope{Kind: ScopeTeamRestricted, Teams: teams}
}

func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeUniversal:
		if len(s.Roles) > 0 || len(s.Teams) > 0 {
			return fmt.Errorf("universal scope must not list roles or teams")
		}
	case ScopeRoleRestricted:
		if len(s.Roles) == 0 {
			return fmt.Errorf("role-restricted scope requires at least one role")
		}
		for _, r := range s.Roles {
			if !r.IsValid() {
				return fmt.Errorf("invalid role in scope: %q", r)
			}
		}
	case ScopeTeamRestricted:
		if len(s.Teams) == 0 {
			return fmt.Errorf("team-restricted scope requires at least one team")
		}
	case ScopeUserRestricted:
		return fmt.Errorf("user-restricted scope cannot be authored directly")
	default:
		return fmt.Errorf("unknown scope kind: %d", s.Kind)
	}
	return nil
}

// ResolvedScope is the visibility snapshot stored on a published event.
type ResolvedScope struct {
	Kind             ScopeKind     `json:"kind"`
	Roles            []values.Role `json:"roles,omitempty"`
	Teams            []values.Team `json:"teams,omitempty"`
	RestrictedToUser *uuid.UUID    `json:"restricted_to_user,omitempty"`
}

// ResolveScope snapshots a definition's scope at publish time. A
// restricted-to-user narrowing overrides any broader authored scope; the
// resulting event is visible only to that user and to oversight roles.
func ResolveScope(scope Scope, restrictedToUser *uuid.UUID) ResolvedScope {
	if restrictedToUser != nil {
		u := *restrictedToUser
		return ResolvedScope{Kind: ScopeUserRestricted, RestrictedToUser: &u}
	}
	resolved := ResolvedScope{Kind: scope.Kind}
	if len(scope.Roles) > 0 {
		resolved.Roles = append([]values.Role(nil), scope.Roles...)
	}
	if len(scope.Teams) > 0 {
		resolved.Teams = append([]values.Team(nil), scope.Teams...)
	}
	return resolved
}

// Covers reports whether a participant with the given identity may see an
// event published under this scope. Oversight roles see everything.
func (s ResolvedScope) Covers(userID uuid.UUID, role values.Role, team values.Team) bool {
	if role.IsOversight() {
		return true
	}
	switch s.Kind {
	case ScopeUniversal:
		return true
	case ScopeRoleRestricted:
		for _, r := range s.Roles {
			if r == role {
				return true
			}
		}
	case ScopeTeamRestricted:
		for _, t := range s.Teams {
			if t == team {
				return true
			}
		}
	case ScopeUserRestricted:
		return s.RestrictedToUser != nil && *s.RestrictedToUser == userID
	}
	return false
}
