package rest

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// publishImmediateRequest creates a dynamic definition and publishes it in
// the same call.
type publishImmediateRequest struct {
	Title            string       `json:"title" validate:"required,max=200"`
	Body             string       `json:"body" validate:"max=10000"`
	Severity         string       `json:"severity" validate:"required,oneof=low medium high critical"`
	Scope            scopeRequest `json:"scope"`
	RestrictedToUser *uuid.UUID   `json:"restricted_to_user,omitempty"`
	SideEffect       string       `json:"side_effect" validate:"omitempty,oneof=none incident media"`
}

type scopeRequest struct {
	Kind  string   `json:"kind" validate:"required,oneof=universal role_restricted team_restricted"`
	Roles []string `json:"roles,omitempty" validate:"dive,max=64"`
	Teams []string `json:"teams,omitempty" validate:"dive,max=64"`
}

func (s scopeRequest) toDomain() (inject.Scope, error) {
	kind, err := inject.ParseScopeKind(s.Kind)
	if err != nil {
		return inject.Scope{}, err
	}
	scope := inject.Scope{Kind: kind}
	for _, r := range s.Roles {
		role, err := values.NewRole(r)
		if err != nil {
			return inject.Scope{}, err
		}
		scope.Roles = append(scope.Roles, role)
	}
	for _, t := range s.Teams {
		team, err := values.NewTeam(t)
		if err != nil {
			return inject.Scope{}, err
		}
		scope.Teams = append(scope.Teams, team)
	}
	if err := scope.Validate(); err != nil {
		return inject.Scope{}, err
	}
	return scope, nil
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// identity is the caller's visibility context, carried on read requests.
// Authenticating it is the access-control collaborator's job; the engine
// only applies the scope check it implies.
type identity struct {
	UserID uuid.UUID
	Role   values.Role
	Team   values.Team
}

func identityFromRequest(r *http.Request) (identity, error) {
	q := r.URL.Query()

	userID, err := uuid.Parse(q.Get("user_id"))
	if err != nil {
		return identity{}, fmt.Errorf("user_id is required and must be a UUID")
	}
	role, err := values.NewRole(q.Get("role"))
	if err != nil {
		return identity{}, err
	}

	id := identity{UserID: userID, Role: role}
	if t := q.Get("team"); t != "" {
		team, err := values.NewTeam(t)
		if err != nil {
			return identity{}, err
		}
		id.Team = team
	}
	return id, nil
}

// responseEnvelope wraps all API responses.
type responseEnvelope struct {
	Success   bool           `json:"success"`
	Data      interface{}    `json:"data,omitempty"`
	Error     *errorResponse `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
