package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
)

// DecisionRepository reads the decision log from PostgreSQL. The log is
// append-only and owned by another collaborator; this engine never writes it.
type DecisionRepository struct {
	db *pgxpool.Pool
}

func NewDecisionRepository(db *pgxpool.Pool) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// ListByExercise returns the full decision log for an exercise in proposal
// order. Condition matching always runs over the whole log.
func (r *DecisionRepository) ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]decision.Decision, error) {
	query := `
		SELECT id, exercise_id, category, title, description, proposed_at
		FROM decisions
		WHERE exercise_id = $1
		ORDER BY proposed_at`
	return r.queryDecisions(ctx, query, exerciseID)
}

// ListByExerciseSince returns the decisions proposed after the given time,
// in proposal order. A nil since returns the full log.
func (r *DecisionRepository) ListByExerciseSince(ctx context.Context, exerciseID uuid.UUID, since *time.Time) ([]decision.Decision, error) {
	if since == nil {
		return r.ListByExercise(ctx, exerciseID)
	}
	query := `
		SELECT id, exercise_id, category, title, description, proposed_at
		FROM decisions
		WHERE exercise_id = $1 AND proposed_at > $2
		ORDER BY proposed_at`
	return r.queryDecisions(ctx, query, exerciseID, *since)
}

func (r *DecisionRepository) queryDecisions(ctx context.Context, query string, args ...interface{}) ([]decision.Decision, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []decision.Decision
	for rows.Next() {
		var (
			d   decision.Decision
			cat string
		)
		if err := rows.Scan(&d.ID, &d.ExerciseID, &cat, &d.Title, &d.Description, &d.ProposedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		parsed, err := decision.ParseCategory(cat)
		if err != nil {
			return nil, err
		}
		d.Category = parsed
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
