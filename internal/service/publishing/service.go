package publishing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	domainerrors "github.com/praxisops/crisis-exercise-backend/internal/domain/errors"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/events"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/repository"
	"github.com/praxisops/crisis-exercise-backend/internal/metrics"
)

// Service owns the publish and cancel write paths. It never serializes
// publishes in-process: concurrent attempts for the same pair race to the
// storage layer and the uniqueness constraint picks the winner.
type Service struct {
	exercises     ExerciseReader
	definitions   DefinitionStore
	events        EventStore
	cancellations CancellationStore
	cache         PublishedCache
	broadcaster   Broadcaster
	clock         values.Clock
	logger        *zap.Logger
	registry      *metrics.Registry
}

func NewService(
	exercises ExerciseReader,
	definitions DefinitionStore,
	eventStore EventStore,
	cancellations CancellationStore,
	cache PublishedCache,
	broadcaster Broadcaster,
	clock values.Clock,
	registry *metrics.Registry,
	logger *zap.Logger,
) *Service {
	return &Service{
		exercises:     exercises,
		definitions:   definitions,
		events:        eventStore,
		cancellations: cancellations,
		cache:         cache,
		broadcaster:   broadcaster,
		clock:         clock,
		registry:      registry,
		logger:        logger,
	}
}

// Publish fires a definition for an exercise. Idempotent at the storage
// layer: a pair that is already terminal comes back as an
// ALREADY_PUBLISHED or ALREADY_CANCELLED conflict, which callers treat as
// benign. The exercise's status is deliberately not re-checked here; a
// tick already in flight when an exercise pauses is allowed to finish.
func (s *Service) Publish(ctx context.Context, exerciseID, definitionID uuid.UUID) (*inject.PublishedEvent, error) {
	ex, err := s.exercises.GetByID(ctx, exerciseID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerrors.NewNotFoundError("exercise")
		}
		return nil, fmt.Errorf("loading exercise %s: %w", exerciseID, err)
	}

	def, err := s.definitions.GetByID(ctx, definitionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerrors.NewNotFoundError("event definition")
		}
		return nil, fmt.Errorf("loading definition %s: %w", definitionID, err)
	}
	if def.ScenarioID != ex.ScenarioID {
		return nil, domainerrors.NewValidationError("SCENARIO_MISMATCH",
			fmt.Sprintf("definition %s does not belong to the scenario of exercise %s", definitionID, exerciseID))
	}

	return s.publish(ctx, exerciseID, def)
}

// ImmediateInput describes a dynamic definition created and fired in the
// same call, usually from the analysis pipeline or a participant action.
type ImmediateInput struct {
	Title            string
	Body             string
	Severity         values.Severity
	Scope            inject.Scope
	RestrictedToUser *uuid.UUID
	SideEffect       inject.SideEffectKind
}

// PublishImmediate creates a dynamic definition with an immediate trigger
// and publishes it synchronously. The definition is persisted first so the
// published event always references a durable definition row.
func (s *Service) PublishImmediate(ctx context.Context, exerciseID uuid.UUID, input ImmediateInput) (*inject.PublishedEvent, error) {
	ex, err := s.exercises.GetByID(ctx, exerciseID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerrors.NewNotFoundError("exercise")
		}
		return nil, fmt.Errorf("loading exercise %s: %w", exerciseID, err)
	}
	if !ex.IsRunning() {
		return nil, domainerrors.NewValidationError("EXERCISE_NOT_RUNNING",
			fmt.Sprintf("exercise %s is not in progress", exerciseID))
	}

	def, err := inject.NewEventDefinition(ex.ScenarioID, input.Title, input.Body,
		input.Severity, inject.ImmediateTrigger(), input.Scope)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_DEFINITION", err.Error())
	}
	def.SideEffect = input.SideEffect
	if input.RestrictedToUser != nil {
		if err := def.RestrictToUser(*input.RestrictedToUser); err != nil {
			return nil, domainerrors.NewValidationError("INVALID_DEFINITION", err.Error())
		}
	}

	if err := s.definitions.Create(ctx, def); err != nil {
		return nil, fmt.Errorf("persisting dynamic definition: %w", err)
	}

	return s.publish(ctx, exerciseID, def)
}

// Cancel records the alternative terminal state for a definition the
// pipeline deems obsolete before it fires. Immediate definitions publish at
// creation time and can never reach this path.
func (s *Service) Cancel(ctx context.Context, exerciseID, definitionID uuid.UUID, reason string) (*inject.CancelledEvent, error) {
	def, err := s.definitions.GetByID(ctx, definitionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domainerrors.NewNotFoundError("event definition")
		}
		return nil, fmt.Errorf("loading definition %s: %w", definitionID, err)
	}
	if def.Trigger.Kind == inject.TriggerImmediate {
		return nil, domainerrors.NewValidationError("CANCEL_IMMEDIATE",
			"immediate definitions publish at creation and cannot be cancelled")
	}

	cancelled, err := inject.NewCancelledEvent(exerciseID, definitionID, reason, s.clock.Now())
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_CANCELLATION", err.Error())
	}

	if err := s.cancellations.Create(ctx, cancelled); err != nil {
		var appErr *domainerrors.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, fmt.Errorf("recording cancellation for definition %s: %w", definitionID, err)
	}

	s.logger.Info("definition cancelled",
		zap.String("exercise_id", exerciseID.String()),
		zap.String("definition_id", definitionID.String()),
		zap.String("reason", reason))
	return cancelled, nil
}

func (s *Service) publish(ctx context.Context, exerciseID uuid.UUID, def *inject.EventDefinition) (*inject.PublishedEvent, error) {
	now := s.clock.Now()

	event, err := inject.NewPublishedEvent(exerciseID, def, now)
	if err != nil {
		return nil, domainerrors.NewValidationError("INVALID_PUBLISH", err.Error())
	}

	var effects []*inject.SideEffectRecord
	if def.SideEffect != inject.SideEffectNone {
		effect, err := inject.NewSideEffectRecord(event, def, now)
		if err != nil {
			return nil, domainerrors.NewValidationError("INVALID_SIDE_EFFECT", err.Error())
		}
		effects = append(effects, effect)
	}

	if err := s.events.CreateWithSideEffects(ctx, event, effects); err != nil {
		if domainerrors.IsAlreadyPublished(err) || domainerrors.IsCode(err, "ALREADY_CANCELLED") {
			if s.registry != nil {
				s.registry.PublishConflictCounter.Add(ctx, 1)
			}
			return nil, err
		}
		if s.registry != nil {
			s.registry.PublishFailureCounter.Add(ctx, 1)
		}
		return nil, err
	}

	if s.registry != nil {
		s.registry.PublishSuccessCounter.Add(ctx, 1)
		s.registry.SideEffectCounter.Add(ctx, int64(len(effects)))
	}
	if s.cache != nil {
		s.cache.InvalidatePublished(ctx, exerciseID)
	}

	s.logger.Info("event published",
		zap.String("exercise_id", exerciseID.String()),
		zap.String("definition_id", def.ID.String()),
		zap.String("event_id", event.ID.String()),
		zap.String("trigger", def.Trigger.Kind.String()),
		zap.Int("side_effects", len(effects)))

	// The fan-out hook runs only after the durable write succeeds, so a
	// notification is never emitted for a rolled-back publish.
	if s.broadcaster != nil {
		notification := &events.InjectNotification{
			Event:    event,
			Title:    def.Title,
			Body:     def.BodyTemplate,
			Severity: def.Severity,
		}
		if err := s.broadcaster.Broadcast(notification); err != nil {
			s.logger.Warn("inject broadcast failed",
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
		}
	}

	return event, nil
}
