package scheduling

import (
	"context"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
)

// ExerciseStore supplies the scheduler's per-tick working set
type ExerciseStore interface {
	// ListRunning returns every in-progress exercise with a start time
	ListRunning(ctx context.Context) ([]*exercise.Exercise, error)
}

// DefinitionSource supplies the definitions still eligible to fire
type DefinitionSource interface {
	// ListUnfired returns scenario definitions with no terminal record for
	// the exercise, immediate triggers excluded
	ListUnfired(ctx context.Context, exerciseID, scenarioID uuid.UUID) ([]*inject.EventDefinition, error)
}

// DecisionLog reads the append-only decision log
type DecisionLog interface {
	// ListByExercise returns the full decision log in proposal order
	ListByExercise(ctx context.Context, exerciseID uuid.UUID) ([]decision.Decision, error)
}

// Publisher turns a qualifying definition into a published event
type Publisher interface {
	// Publish performs the full publish operation for a firing definition
	Publish(ctx context.Context, exerciseID uuid.UUID, definitionID uuid.UUID) (*inject.PublishedEvent, error)
}
