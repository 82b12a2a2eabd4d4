package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// DefinitionRepository stores event definitions in PostgreSQL. Authored
// definitions arrive via scenario import; dynamic ones are created at
// runtime in direct response to participant actions.
type DefinitionRepository struct {
	db *pgxpool.Pool
}

func NewDefinitionRepository(db *pgxpool.Pool) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

const definitionColumns = `id, scenario_id, title, body_template, severity, trigger_kind, trigger_spec, scope,
	restricted_to_user, requires_response, requires_coordination, side_effect, created_at`

// Create inserts a new event definition.
func (r *DefinitionRepository) Create(ctx context.Context, def *inject.EventDefinition) error {
	triggerJSON, err := json.Marshal(def.Trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger: %w", err)
	}
	scopeJSON, err := json.Marshal(def.Scope)
	if err != nil {
		return fmt.Errorf("failed to marshal scope: %w", err)
	}

	query := `
		INSERT INTO event_definitions (
			id, scenario_id, title, body_template, severity, trigger_kind, trigger_spec, scope,
			restricted_to_user, requires_response, requires_coordination, side_effect, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.Exec(ctx, query,
		def.ID, def.ScenarioID, def.Title, def.BodyTemplate, def.Severity.String(),
		def.Trigger.Kind.String(), triggerJSON, scopeJSON, def.RestrictedToUser,
		def.RequiresResponse, def.RequiresCoordination, def.SideEffect.String(), def.CreatedAt,
	)
	if err != nil {
		if IsDuplicateKeyViolation(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("failed to create event definition: %w", err)
	}
	return nil
}

// GetByID retrieves a single definition.
func (r *DefinitionRepository) GetByID(ctx context.Context, id uuid.UUID) (*inject.EventDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM event_definitions WHERE id = $1`

	def, err := scanDefinition(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event definition: %w", err)
	}
	return def, nil
}

// ListUnfired returns the definitions of an exercise's scenario that have
// neither published nor been cancelled for that exercise. This is the
// scheduler's per-tick working set; immediate triggers are excluded because
// they fire synchronously at creation and are never polled.
func (r *DefinitionRepository) ListUnfired(ctx context.Context, exerciseID, scenarioID uuid.UUID) ([]*inject.EventDefinition, error) {
	query := `
		SELECT ` + definitionColumns + `
		FROM event_definitions d
		WHERE d.scenario_id = $2
		  AND d.trigger_kind <> 'immediate'
		  AND NOT EXISTS (
			SELECT 1 FROM published_events p
			WHERE p.exercise_id = $1 AND p.event_definition_id = d.id)
		  AND NOT EXISTS (
			SELECT 1 FROM cancelled_events c
			WHERE c.exercise_id = $1 AND c.event_definition_id = d.id)
		ORDER BY d.created_at`

	rows, err := r.db.Query(ctx, query, exerciseID, scenarioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfired definitions: %w", err)
	}
	defer rows.Close()

	var defs []*inject.EventDefinition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func scanDefinition(row rowScanner) (*inject.EventDefinition, error) {
	var (
		def         inject.EventDefinition
		severity    string
		triggerKind string
		triggerJSON []byte
		scopeJSON   []byte
		sideEffect  string
	)
	if err := row.Scan(
		&def.ID, &def.ScenarioID, &def.Title, &def.BodyTemplate, &severity,
		&triggerKind, &triggerJSON, &scopeJSON, &def.RestrictedToUser,
		&def.RequiresResponse, &def.RequiresCoordination, &sideEffect, &def.CreatedAt,
	); err != nil {
		return nil, err
	}

	sev, err := values.NewSeverity(severity)
	if err != nil {
		return nil, err
	}
	def.Severity = sev

	if err := json.Unmarshal(triggerJSON, &def.Trigger); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger: %w", err)
	}
	if err := json.Unmarshal(scopeJSON, &def.Scope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scope: %w", err)
	}

	effect, err := inject.ParseSideEffectKind(sideEffect)
	if err != nil {
		return nil, err
	}
	def.SideEffect = effect
	return &def, nil
}
