package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
)

// EscalationRepository stores the three append-only assessment streams in
// PostgreSQL. Snapshots are never updated or deleted; the ordered stream per
// exercise is the audit trail of how the analysis evolved.
type EscalationRepository struct {
	db *pgxpool.Pool
}

func NewEscalationRepository(db *pgxpool.Pool) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// CreateFactorSnapshot appends a factor snapshot.
func (r *EscalationRepository) CreateFactorSnapshot(ctx context.Context, s *escalation.FactorSnapshot) error {
	factorsJSON, err := json.Marshal(s.Factors)
	if err != nil {
		return fmt.Errorf("failed to marshal factors: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO factor_snapshots (id, exercise_id, evaluated_at, factors, reasoning)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.ExerciseID, s.EvaluatedAt, factorsJSON, s.Reasoning,
	)
	if err != nil {
		return fmt.Errorf("failed to insert factor snapshot: %w", err)
	}
	return nil
}

// CreatePathwaySnapshot appends a pathway snapshot.
func (r *EscalationRepository) CreatePathwaySnapshot(ctx context.Context, s *escalation.PathwaySnapshot) error {
	pathwaysJSON, err := json.Marshal(s.Pathways)
	if err != nil {
		return fmt.Errorf("failed to marshal pathways: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO pathway_snapshots (id, exercise_id, evaluated_at, pathways, reasoning, factor_snapshot_id)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		s.ID, s.ExerciseID, s.EvaluatedAt, pathwaysJSON, s.Reasoning, s.FactorSnapshotID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pathway snapshot: %w", err)
	}
	return nil
}

// CreateMatrixEvaluation appends a matrix evaluation.
func (r *EscalationRepository) CreateMatrixEvaluation(ctx context.Context, m *escalation.MatrixEvaluation) error {
	matrixJSON, err := json.Marshal(m.Matrix)
	if err != nil {
		return fmt.Errorf("failed to marshal matrix: %w", err)
	}
	robustnessJSON, err := json.Marshal(m.RobustnessByDecision)
	if err != nil {
		return fmt.Errorf("failed to marshal robustness scores: %w", err)
	}
	taxonomyJSON, err := json.Marshal(m.ResponseTaxonomy)
	if err != nil {
		return fmt.Errorf("failed to marshal response taxonomy: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO matrix_evaluations (id, exercise_id, evaluated_at, matrix, robustness, taxonomy, reasoning, factor_snapshot_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.ExerciseID, m.EvaluatedAt, matrixJSON, robustnessJSON, taxonomyJSON, m.Reasoning, m.FactorSnapshotID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert matrix evaluation: %w", err)
	}
	return nil
}

// LatestFactorSnapshot returns the most recent factor snapshot for an
// exercise, or ErrNotFound if no cycle has completed yet.
func (r *EscalationRepository) LatestFactorSnapshot(ctx context.Context, exerciseID uuid.UUID) (*escalation.FactorSnapshot, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, exercise_id, evaluated_at, factors, reasoning
		FROM factor_snapshots
		WHERE exercise_id = $1
		ORDER BY evaluated_at DESC
		LIMIT 1`, exerciseID)

	s, err := scanFactorSnapshot(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest factor snapshot: %w", err)
	}
	return s, nil
}

// ListFactorSnapshots returns an exercise's factor stream in evaluation order.
func (r *EscalationRepository) ListFactorSnapshots(ctx context.Context, exerciseID uuid.UUID) ([]*escalation.FactorSnapshot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, exercise_id, evaluated_at, factors, reasoning
		FROM factor_snapshots
		WHERE exercise_id = $1
		ORDER BY evaluated_at`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list factor snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*escalation.FactorSnapshot
	for rows.Next() {
		s, err := scanFactorSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan factor snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// ListPathwaySnapshots returns an exercise's pathway stream in evaluation order.
func (r *EscalationRepository) ListPathwaySnapshots(ctx context.Context, exerciseID uuid.UUID) ([]*escalation.PathwaySnapshot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, exercise_id, evaluated_at, pathways, reasoning, factor_snapshot_id
		FROM pathway_snapshots
		WHERE exercise_id = $1
		ORDER BY evaluated_at`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pathway snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*escalation.PathwaySnapshot
	for rows.Next() {
		var (
			s            escalation.PathwaySnapshot
			pathwaysJSON []byte
		)
		if err := rows.Scan(&s.ID, &s.ExerciseID, &s.EvaluatedAt, &pathwaysJSON, &s.Reasoning, &s.FactorSnapshotID); err != nil {
			return nil, fmt.Errorf("failed to scan pathway snapshot: %w", err)
		}
		if err := json.Unmarshal(pathwaysJSON, &s.Pathways); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pathways: %w", err)
		}
		snapshots = append(snapshots, &s)
	}
	return snapshots, rows.Err()
}

// ListMatrixEvaluations returns an exercise's matrix stream in evaluation order.
func (r *EscalationRepository) ListMatrixEvaluations(ctx context.Context, exerciseID uuid.UUID) ([]*escalation.MatrixEvaluation, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, exercise_id, evaluated_at, matrix, robustness, taxonomy, reasoning, factor_snapshot_id
		FROM matrix_evaluations
		WHERE exercise_id = $1
		ORDER BY evaluated_at`, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matrix evaluations: %w", err)
	}
	defer rows.Close()

	var evaluations []*escalation.MatrixEvaluation
	for rows.Next() {
		var (
			m              escalation.MatrixEvaluation
			matrixJSON     []byte
			robustnessJSON []byte
			taxonomyJSON   []byte
		)
		if err := rows.Scan(&m.ID, &m.ExerciseID, &m.EvaluatedAt, &matrixJSON, &robustnessJSON, &taxonomyJSON, &m.Reasoning, &m.FactorSnapshotID); err != nil {
			return nil, fmt.Errorf("failed to scan matrix evaluation: %w", err)
		}
		if err := json.Unmarshal(matrixJSON, &m.Matrix); err != nil {
			return nil, fmt.Errorf("failed to unmarshal matrix: %w", err)
		}
		if err := json.Unmarshal(robustnessJSON, &m.RobustnessByDecision); err != nil {
			return nil, fmt.Errorf("failed to unmarshal robustness scores: %w", err)
		}
		if err := json.Unmarshal(taxonomyJSON, &m.ResponseTaxonomy); err != nil {
			return nil, fmt.Errorf("failed to unmarshal response taxonomy: %w", err)
		}
		evaluations = append(evaluations, &m)
	}
	return evaluations, rows.Err()
}

func scanFactorSnapshot(row rowScanner) (*escalation.FactorSnapshot, error) {
	var (
		s           escalation.FactorSnapshot
		factorsJSON []byte
	)
	if err := row.Scan(&s.ID, &s.ExerciseID, &s.EvaluatedAt, &factorsJSON, &s.Reasoning); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(factorsJSON, &s.Factors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal factors: %w", err)
	}
	return &s, nil
}
