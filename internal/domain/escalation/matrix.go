package escalation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// Matrix cell and robustness bounds. Out-of-range generator output is
// rejected at write time, never clamped: a value outside the contract
// means the upstream generator is broken, and silently coercing it would
// poison the audit trail.
const (
	MatrixCellMin = -2
	MatrixCellMax = 2

	RobustnessMin = 1
	RobustnessMax = 10
)

// ResponseTaxonomy classifies whether a team produced any textual response
// within the evaluated window.
type ResponseTaxonomy string

const (
	ResponseTextual ResponseTaxonomy = "textual"
	ResponseAbsent  ResponseTaxonomy = "absent"
)

func (r ResponseTaxonomy) IsValid() bool {
	return r == ResponseTextual || r == ResponseAbsent
}

// MatrixEvaluation is one cycle's scored inter-team impact assessment,
// conditioned on both prior snapshots of the same cycle.
type MatrixEvaluation struct {
	ID          uuid.UUID `json:"id"`
	ExerciseID  uuid.UUID `json:"exercise_id"`
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Matrix[a][b] scores how team a's actions affect team b, -2..2.
	Matrix map[values.Team]map[values.Team]int `json:"matrix"`

	// RobustnessByDecision scores how well-supported each decision is
	// against the current crisis state, 1..10.
	RobustnessByDecision map[uuid.UUID]int `json:"robustness_by_decision"`

	ResponseTaxonomy map[values.Team]ResponseTaxonomy `json:"response_taxonomy"`

	Reasoning        string    `json:"reasoning"`
	FactorSnapshotID uuid.UUID `json:"factor_snapshot_id"`
}

// NewMatrixEvaluation validates generator output and stamps the evaluation.
func NewMatrixEvaluation(
	exerciseID, factorSnapshotID uuid.UUID,
	matrix map[values.Team]map[values.Team]int,
	robustness map[uuid.UUID]int,
	taxonomy map[values.Team]ResponseTaxonomy,
	reasoning string,
	evaluatedAt time.Time,
) (*MatrixEvaluation, error) {
	if exerciseID == uuid.Nil {
		return nil, fmt.Errorf("exercise ID cannot be nil")
	}
	if factorSnapshotID == uuid.Nil {
		return nil, fmt.Errorf("factor snapshot reference cannot be nil")
	}

	eval := &MatrixEvaluation{
		ID:                   uuid.New(),
		ExerciseID:           exerciseID,
		EvaluatedAt:          evaluatedAt,
		Matrix:               matrix,
		RobustnessByDecision: robustness,
		ResponseTaxonomy:     taxonomy,
		Reasoning:            reasoning,
		FactorSnapshotID:     factorSnapshotID,
	}
	if err := eval.Validate(); err != nil {
		return nil, err
	}
	return eval, nil
}

// Validate range-checks every scored value.
func (m *MatrixEvaluation) Validate() error {
	for from, row := range m.Matrix {
		for to, score := range row {
			if score < MatrixCellMin || score > MatrixCellMax {
				return fmt.Errorf("matrix cell %s->%s out of range: %d", from, to, score)
			}
		}
	}
	for decisionID, score := range m.RobustnessByDecision {
		if score < RobustnessMin || score > RobustnessMax {
			return fmt.Errorf("robustness for decision %s out of range: %d", decisionID, score)
		}
	}
	for team, taxonomy := range m.ResponseTaxonomy {
		if !taxonomy.IsValid() {
			return fmt.Errorf("invalid response taxonomy for team %s: %q", team, taxonomy)
		}
	}
	return nil
}
