package escalation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// Factor is one structured driver of crisis severity, optionally paired
// with the behaviour that would counteract it.
type Factor struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Severity    values.Severity `json:"severity"`

	// DeEscalationCounterpart names the de-escalating behaviour that
	// offsets this factor, when the generator identified one.
	DeEscalationCounterpart *string `json:"de_escalation_counterpart,omitempty"`
}

func (f *Factor) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("factor name cannot be empty")
	}
	if !f.Severity.IsValid() {
		return fmt.Errorf("factor %q has invalid severity: %q", f.Name, f.Severity)
	}
	return nil
}

// FactorSnapshot is one cycle's durable factor assessment. Snapshots are
// append-only: each cycle writes a new one, none is ever mutated, and the
// stream forms the audit trail.
type FactorSnapshot struct {
	ID          uuid.UUID `json:"id"`
	ExerciseID  uuid.UUID `json:"exercise_id"`
	EvaluatedAt time.Time `json:"evaluated_at"`
	Factors     []Factor  `json:"factors"`
	Reasoning   string    `json:"reasoning"`
}

// NewFactorSnapshot validates generator output and stamps the snapshot.
func NewFactorSnapshot(exerciseID uuid.UUID, factors []Factor, reasoning string, evaluatedAt time.Time) (*FactorSnapshot, error) {
	if exerciseID == uuid.Nil {
		return nil, fmt.Errorf("exercise ID cannot be nil")
	}
	for i := range factors {
		if factors[i].ID == uuid.Nil {
			factors[i].ID = uuid.New()
		}
		if err := factors[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &FactorSnapshot{
		ID:          uuid.New(),
		ExerciseID:  exerciseID,
		EvaluatedAt: evaluatedAt,
		Factors:     factors,
		Reasoning:   reasoning,
	}, nil
}
