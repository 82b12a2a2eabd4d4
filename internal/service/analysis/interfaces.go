package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
)

// Generator is the external content-generation capability. Every call runs
// under a bounded per-stage timeout; output is validated by the pipeline
// and rejected whole when out of range.
type Generator interface {
	GenerateFactors(ctx context.Context, input *escalation.AnalysisInput) (*escalation.FactorsDraft, error)
	GeneratePathways(ctx context.Context, input *escalation.AnalysisInput, factors *escalation.FactorSnapshot) (*escalation.PathwaysDraft, error)
	GenerateMatrix(ctx context.Context, input *escalation.AnalysisInput, factors *escalation.FactorSnapshot) (*escalation.MatrixDraft, error)
}

// ExerciseStore supplies the cycle's per-run working set
type ExerciseStore interface {
	ListRunning(ctx context.Context) ([]*exercise.Exercise, error)
}

// DecisionLog reads the append-only decision log. The gather stage bounds
// its window by the previous evaluation; a nil since means the full log.
type DecisionLog interface {
	ListByExerciseSince(ctx context.Context, exerciseID uuid.UUID, since *time.Time) ([]decision.Decision, error)
}

// PublishedSummaries reads the published injects in the shape the gather
// stage feeds to the generator
type PublishedSummaries interface {
	ListSummaries(ctx context.Context, exerciseID uuid.UUID) ([]escalation.PublishedSummary, error)
}

// SnapshotStore persists the three append-only snapshot streams
type SnapshotStore interface {
	CreateFactorSnapshot(ctx context.Context, s *escalation.FactorSnapshot) error
	CreatePathwaySnapshot(ctx context.Context, s *escalation.PathwaySnapshot) error
	CreateMatrixEvaluation(ctx context.Context, m *escalation.MatrixEvaluation) error
	LatestFactorSnapshot(ctx context.Context, exerciseID uuid.UUID) (*escalation.FactorSnapshot, error)
}

// FactorCache refreshes the read-side latest-factors entry after a persist
type FactorCache interface {
	SetLatestFactors(ctx context.Context, snapshot *escalation.FactorSnapshot)
}
