package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/praxisops/crisis-exercise-backend/internal/domain/errors"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// PublishedEventRepository stores publish and cancellation records in
// PostgreSQL. The published_events table carries a UNIQUE constraint on
// (exercise_id, event_definition_id); that constraint, not application
// logic, is what makes publishing at-most-once under concurrent attempts.
type PublishedEventRepository struct {
	db *pgxpool.Pool
}

func NewPublishedEventRepository(db *pgxpool.Pool) *PublishedEventRepository {
	return &PublishedEventRepository{db: db}
}

// lockTerminalPair takes a transaction-scoped advisory lock on one
// (exercise, definition) pair. Publish and cancel guard against each other
// with NOT EXISTS subselects over two tables; under READ COMMITTED two
// concurrent writers could each pass the other's check before either
// commits. The lock serializes the pair, so the loser runs its subselect
// after the winner's commit and fails the guard.
func lockTerminalPair(ctx context.Context, tx pgx.Tx, exerciseID, definitionID uuid.UUID) error {
	_, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`,
		exerciseID.String(), definitionID.String())
	if err != nil {
		return fmt.Errorf("failed to lock terminal pair: %w", err)
	}
	return nil
}

// CreateWithSideEffects inserts the publish record and its side-effect rows
// in one transaction. Either everything lands or nothing does, so a failed
// side-effect insert can never leave a published event without its incident
// or media record. A duplicate (exercise, definition) pair surfaces as an
// already-published conflict the caller treats as benign.
func (r *PublishedEventRepository) CreateWithSideEffects(ctx context.Context, event *inject.PublishedEvent, effects []*inject.SideEffectRecord) error {
	scopeJSON, err := json.Marshal(event.ResolvedScope)
	if err != nil {
		return fmt.Errorf("failed to marshal resolved scope: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin publish transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockTerminalPair(ctx, tx, event.ExerciseID, event.EventDefinitionID); err != nil {
		return err
	}

	var inserted uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO published_events (id, exercise_id, event_definition_id, published_at, resolved_scope)
		SELECT $1, $2, $3, $4, $5
		WHERE NOT EXISTS (
			SELECT 1 FROM cancelled_events
			WHERE exercise_id = $2 AND event_definition_id = $3)
		RETURNING id`,
		event.ID, event.ExerciseID, event.EventDefinitionID, event.PublishedAt, scopeJSON,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainerrors.NewAlreadyCancelledError(
				event.ExerciseID.String(), event.EventDefinitionID.String())
		}
		if IsDuplicateKeyViolation(err) {
			return domainerrors.NewAlreadyPublishedError(
				event.ExerciseID.String(), event.EventDefinitionID.String())
		}
		return fmt.Errorf("failed to insert published event: %w", err)
	}

	for _, effect := range effects {
		_, err = tx.Exec(ctx, `
			INSERT INTO side_effects (id, published_event_id, exercise_id, kind, title, body, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			effect.ID, effect.PublishedEventID, effect.ExerciseID,
			effect.Kind.String(), effect.Title, effect.Body, effect.CreatedAt,
		)
		if err != nil {
			return domainerrors.NewSideEffectFailureError(effect.Kind.String(), err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit publish transaction: %w", err)
	}
	return nil
}

// ListByExercise returns an exercise's publish history in publish order,
// side-effect references included.
func (r *PublishedEventRepository) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]*inject.PublishedEvent, error) {
	query := `
		SELECT p.id, p.exercise_id, p.event_definition_id, p.published_at, p.resolved_scope,
		       COALESCE(array_agg(s.id) FILTER (WHERE s.id IS NOT NULL), '{}')
		FROM published_events p
		LEFT JOIN side_effects s ON s.published_event_id = p.id
		WHERE p.exercise_id = $1
		GROUP BY p.id, p.exercise_id, p.event_definition_id, p.published_at, p.resolved_scope
		ORDER BY p.published_at`

	rows, err := r.db.Query(ctx, query, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list published events: %w", err)
	}
	defer rows.Close()

	var events []*inject.PublishedEvent
	for rows.Next() {
		event, err := scanPublishedEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan published event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// ListSummaries returns the published events joined with their definition
// title and severity, in the shape the analysis gather stage consumes.
func (r *PublishedEventRepository) ListSummaries(ctx context.Context, exerciseID uuid.UUID) ([]escalation.PublishedSummary, error) {
	query := `
		SELECT p.event_definition_id, d.title, d.severity, p.published_at
		FROM published_events p
		JOIN event_definitions d ON d.id = p.event_definition_id
		WHERE p.exercise_id = $1
		ORDER BY p.published_at`

	rows, err := r.db.Query(ctx, query, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list published summaries: %w", err)
	}
	defer rows.Close()

	var summaries []escalation.PublishedSummary
	for rows.Next() {
		var (
			s        escalation.PublishedSummary
			severity string
		)
		if err := rows.Scan(&s.EventDefinitionID, &s.Title, &severity, &s.PublishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan published summary: %w", err)
		}
		sev, err := values.NewSeverity(severity)
		if err != nil {
			return nil, err
		}
		s.Severity = sev
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func scanPublishedEvent(row rowScanner) (*inject.PublishedEvent, error) {
	var (
		event     inject.PublishedEvent
		scopeJSON []byte
		refs      []uuid.UUID
	)
	if err := row.Scan(&event.ID, &event.ExerciseID, &event.EventDefinitionID,
		&event.PublishedAt, &scopeJSON, &refs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scopeJSON, &event.ResolvedScope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resolved scope: %w", err)
	}
	event.SideEffectRefs = refs
	return &event, nil
}

// CancelledEventRepository stores cancellation records. Cancellation shares
// the mutual-exclusion contract with publishing: at most one terminal record
// per (exercise, definition) pair.
type CancelledEventRepository struct {
	db *pgxpool.Pool
}

func NewCancelledEventRepository(db *pgxpool.Pool) *CancelledEventRepository {
	return &CancelledEventRepository{db: db}
}

// Create inserts a cancellation record. The insert refuses pairs that have
// already published or already cancelled; it runs in a transaction holding
// the pair's advisory lock so a racing publish cannot slip past the guard.
func (r *CancelledEventRepository) Create(ctx context.Context, cancelled *inject.CancelledEvent) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin cancel transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockTerminalPair(ctx, tx, cancelled.ExerciseID, cancelled.EventDefinitionID); err != nil {
		return err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO cancelled_events (id, exercise_id, event_definition_id, cancelled_at, reason)
		SELECT $1, $2, $3, $4, $5
		WHERE NOT EXISTS (
			SELECT 1 FROM published_events
			WHERE exercise_id = $2 AND event_definition_id = $3)
		RETURNING id`,
		cancelled.ID, cancelled.ExerciseID, cancelled.EventDefinitionID,
		cancelled.CancelledAt, cancelled.Reason,
	).Scan(&cancelled.ID)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainerrors.NewAlreadyPublishedError(
				cancelled.ExerciseID.String(), cancelled.EventDefinitionID.String())
		}
		if IsDuplicateKeyViolation(err) {
			return domainerrors.NewAlreadyCancelledError(
				cancelled.ExerciseID.String(), cancelled.EventDefinitionID.String())
		}
		return fmt.Errorf("failed to insert cancelled event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit cancel transaction: %w", err)
	}
	return nil
}

// ListByExercise returns an exercise's cancellations in order.
func (r *CancelledEventRepository) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]*inject.CancelledEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, exercise_id, event_definition_id, cancelled_at, reason
		FROM cancelled_events
		WHERE exercise_id = $1
		ORDER BY cancelled_at`,
		exerciseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list cancelled events: %w", err)
	}
	defer rows.Close()

	var cancelled []*inject.CancelledEvent
	for rows.Next() {
		var c inject.CancelledEvent
		if err := rows.Scan(&c.ID, &c.ExerciseID, &c.EventDefinitionID, &c.CancelledAt, &c.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan cancelled event: %w", err)
		}
		cancelled = append(cancelled, &c)
	}
	return cancelled, rows.Err()
}
