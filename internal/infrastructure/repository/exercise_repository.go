package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
)

// ExerciseRepository reads exercise state from PostgreSQL. The engine never
// writes exercises; lifecycle transitions belong to the session collaborator.
type ExerciseRepository struct {
	db *pgxpool.Pool
}

func NewExerciseRepository(db *pgxpool.Pool) *ExerciseRepository {
	return &ExerciseRepository{db: db}
}

const exerciseColumns = `id, scenario_id, name, teams, status, start_time, created_at, updated_at`

// GetByID retrieves a single exercise.
func (r *ExerciseRepository) GetByID(ctx context.Context, id uuid.UUID) (*exercise.Exercise, error) {
	query := `SELECT ` + exerciseColumns + ` FROM exercises WHERE id = $1`

	ex, err := scanExercise(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	return ex, nil
}

// ListRunning returns every exercise the poll loops must service this tick.
func (r *ExerciseRepository) ListRunning(ctx context.Context) ([]*exercise.Exercise, error) {
	query := `
		SELECT ` + exerciseColumns + `
		FROM exercises
		WHERE status = 'in_progress' AND start_time IS NOT NULL
		ORDER BY start_time`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list running exercises: %w", err)
	}
	defer rows.Close()

	var exercises []*exercise.Exercise
	for rows.Next() {
		ex, err := scanExercise(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exercise: %w", err)
		}
		exercises = append(exercises, ex)
	}
	return exercises, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExercise(row rowScanner) (*exercise.Exercise, error) {
	var (
		ex        exercise.Exercise
		teamsJSON []byte
		status    string
		startTime *time.Time
	)
	if err := row.Scan(&ex.ID, &ex.ScenarioID, &ex.Name, &teamsJSON, &status, &startTime, &ex.CreatedAt, &ex.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(teamsJSON, &ex.Teams); err != nil {
		return nil, fmt.Errorf("failed to decode exercise teams: %w", err)
	}
	parsed, err := exercise.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	ex.Status = parsed
	ex.StartTime = startTime
	return &ex, nil
}
