package escalation

import (
	"time"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// AnalysisInput is the gathered exercise state an analysis cycle runs
// against. It is assembled once at cycle start so every stage sees the same
// view of the exercise even while participants keep acting.
type AnalysisInput struct {
	ExerciseID     uuid.UUID           `json:"exercise_id"`
	GatheredAt     time.Time           `json:"gathered_at"`
	ElapsedMinutes int                 `json:"elapsed_minutes"`
	Teams          []values.Team       `json:"teams"`
	Decisions      []decision.Decision `json:"decisions"`
	Published      []PublishedSummary  `json:"published"`

	// PreviousFactors carries the prior cycle's assessment so the generator
	// can reason about deltas. Nil on the first cycle.
	PreviousFactors *FactorSnapshot `json:"previous_factors,omitempty"`
}

// PublishedSummary is the slice of a published inject the generator needs.
type PublishedSummary struct {
	EventDefinitionID uuid.UUID       `json:"event_definition_id"`
	Title             string          `json:"title"`
	Severity          values.Severity `json:"severity"`
	PublishedAt       time.Time       `json:"published_at"`
}

// FactorsDraft is raw generator output for the factor stage, pre-validation.
type FactorsDraft struct {
	Factors   []Factor `json:"factors"`
	Reasoning string   `json:"reasoning"`
}

// PathwaysDraft is raw generator output for the pathway stage.
type PathwaysDraft struct {
	Pathways  []Pathway `json:"pathways"`
	Reasoning string    `json:"reasoning"`
}

// MatrixDraft is raw generator output for the matrix stage. Values are
// range-checked by NewMatrixEvaluation; out-of-range output is rejected
// whole, never clamped.
type MatrixDraft struct {
	Matrix               map[values.Team]map[values.Team]int `json:"matrix"`
	RobustnessByDecision map[uuid.UUID]int                   `json:"robustness_by_decision"`
	ResponseTaxonomy     map[values.Team]ResponseTaxonomy    `json:"response_taxonomy"`
	Reasoning            string                              `json:"reasoning"`
}
