package publishing

import (
	"context"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/events"
)

// ExerciseReader resolves the exercise a publish or cancel targets
type ExerciseReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*exercise.Exercise, error)
}

// DefinitionStore persists and resolves event definitions
type DefinitionStore interface {
	Create(ctx context.Context, def *inject.EventDefinition) error
	GetByID(ctx context.Context, id uuid.UUID) (*inject.EventDefinition, error)
}

// EventStore writes the terminal publish record and its side effects in one
// atomic unit
type EventStore interface {
	CreateWithSideEffects(ctx context.Context, event *inject.PublishedEvent, effects []*inject.SideEffectRecord) error
}

// CancellationStore writes the alternative terminal record
type CancellationStore interface {
	Create(ctx context.Context, cancelled *inject.CancelledEvent) error
}

// PublishedCache invalidates the read-side published list after a write
type PublishedCache interface {
	InvalidatePublished(ctx context.Context, exerciseID uuid.UUID)
}

// Broadcaster is the fan-out hook invoked once per successful publish
type Broadcaster interface {
	Broadcast(notification *events.InjectNotification) error
}
