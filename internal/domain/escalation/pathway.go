package escalation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Pathway describes one trajectory the crisis could follow, with the
// behaviours that would trigger or mitigate it.
type Pathway struct {
	PathwayID            uuid.UUID `json:"pathway_id"`
	Trajectory           string    `json:"trajectory"`
	TriggerBehaviours    []string  `json:"trigger_behaviours"`
	MitigatingBehaviours []string  `json:"mitigating_behaviours"`
	EmergingChallenges   []string  `json:"emerging_challenges,omitempty"`
}

func (p *Pathway) Validate() error {
	if p.Trajectory == "" {
		return fmt.Errorf("pathway trajectory cannot be empty")
	}
	if len(p.TriggerBehaviours) == 0 {
		return fmt.Errorf("pathway %q requires at least one trigger behaviour", p.Trajectory)
	}
	return nil
}

// PathwaySnapshot is one cycle's durable pathway assessment, conditioned on
// the factor snapshot produced earlier in the same cycle.
type PathwaySnapshot struct {
	ID               uuid.UUID `json:"id"`
	ExerciseID       uuid.UUID `json:"exercise_id"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
	Pathways         []Pathway `json:"pathways"`
	Reasoning        string    `json:"reasoning"`
	FactorSnapshotID uuid.UUID `json:"factor_snapshot_id"`
}

// NewPathwaySnapshot validates generator output and stamps the snapshot.
func NewPathwaySnapshot(exerciseID, factorSnapshotID uuid.UUID, pathways []Pathway, reasoning string, evaluatedAt time.Time) (*PathwaySnapshot, error) {
	if exerciseID == uuid.Nil {
		return nil, fmt.Errorf("exercise ID cannot be nil")
	}
	if factorSnapshotID == uuid.Nil {
		return nil, fmt.Errorf("factor snapshot reference cannot be nil")
	}
	for i := range pathways {
		if pathways[i].PathwayID == uuid.Nil {
			pathways[i].PathwayID = uuid.New()
		}
		if err := pathways[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &PathwaySnapshot{
		ID:               uuid.New(),
		ExerciseID:       exerciseID,
		EvaluatedAt:      evaluatedAt,
		Pathways:         pathways,
		Reasoning:        reasoning,
		FactorSnapshotID: factorSnapshotID,
	}, nil
}
