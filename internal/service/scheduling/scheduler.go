package scheduling

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
	domainerrors "github.com/praxisops/crisis-exercise-backend/internal/domain/errors"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
	"github.com/praxisops/crisis-exercise-backend/internal/metrics"
)

// Scheduler is the poll loop that fires time and condition triggers. Each
// tick re-derives everything from storage: elapsed time is computed from the
// exercise start time, pending work from the absence of terminal records. No
// in-memory timer state survives between ticks, so a restarted process
// resumes exactly where the data says it should.
type Scheduler struct {
	exercises   ExerciseStore
	definitions DefinitionSource
	decisions   DecisionLog
	publisher   Publisher
	clock       values.Clock
	logger      *zap.Logger
	registry    *metrics.Registry

	pollInterval time.Duration

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

func NewScheduler(
	exercises ExerciseStore,
	definitions DefinitionSource,
	decisions DecisionLog,
	publisher Publisher,
	clock values.Clock,
	registry *metrics.Registry,
	logger *zap.Logger,
	pollInterval time.Duration,
) *Scheduler {
	return &Scheduler{
		exercises:    exercises,
		definitions:  definitions,
		decisions:    decisions,
		publisher:    publisher,
		clock:        clock,
		registry:     registry,
		logger:       logger,
		pollInterval: pollInterval,
		stop:         make(chan struct{}),
	}
}

// Start runs the poll loop until the context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		s.logger.Info("inject scheduler started",
			zap.Duration("poll_interval", s.pollInterval))

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	}()
}

// Stop halts the poll loop and waits for in-flight evaluations.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.logger.Info("inject scheduler stopped")
}

// Tick evaluates every running exercise once. Exercises are evaluated
// concurrently and independently: one exercise's failure is logged and
// dropped, never allowed to starve the others.
func (s *Scheduler) Tick(ctx context.Context) {
	started := s.clock.Now()

	running, err := s.exercises.ListRunning(ctx)
	if err != nil {
		s.logger.Error("failed to list running exercises", zap.Error(err))
		return
	}
	if s.registry != nil {
		s.registry.SetActiveExercises(len(running))
	}

	var wg sync.WaitGroup
	for _, ex := range running {
		wg.Add(1)
		go func(ex *exercise.Exercise) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("exercise evaluation panicked",
						zap.String("exercise_id", ex.ID.String()),
						zap.Any("panic", r))
					if s.registry != nil {
						s.registry.ExerciseFailureCounter.Add(ctx, 1)
					}
				}
			}()
			if err := s.evaluateExercise(ctx, ex); err != nil {
				s.logger.Error("exercise evaluation failed",
					zap.String("exercise_id", ex.ID.String()),
					zap.Error(err))
				if s.registry != nil {
					s.registry.ExerciseFailureCounter.Add(ctx, 1)
				}
			}
		}(ex)
	}
	wg.Wait()

	if s.registry != nil {
		s.registry.RecordTick(ctx, s.clock.Now().Sub(started))
	}
}

func (s *Scheduler) evaluateExercise(ctx context.Context, ex *exercise.Exercise) error {
	elapsed, err := ex.ElapsedMinutes(s.clock.Now())
	if err != nil {
		return err
	}

	pending, err := s.definitions.ListUnfired(ctx, ex.ID, ex.ScenarioID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	// The decision log is fetched once per tick, and only when at least one
	// pending definition actually needs it.
	var (
		log       []decision.Decision
		logLoaded bool
	)
	for _, def := range pending {
		fire := false
		switch def.Trigger.Kind {
		case inject.TriggerTime:
			fire = elapsed >= def.Trigger.Time.MinutesFromStart
		case inject.TriggerCondition:
			if err := def.Trigger.Condition.Validate(); err != nil {
				// Malformed condition: skip the definition, keep the tick.
				s.logger.Warn("skipping definition with invalid condition",
					zap.String("definition_id", def.ID.String()),
					zap.Error(domainerrors.NewConditionEvaluationError(def.ID.String(), err.Error())))
				continue
			}
			if !logLoaded {
				log, err = s.decisions.ListByExercise(ctx, ex.ID)
				if err != nil {
					return err
				}
				logLoaded = true
			}
			fire = def.Trigger.Condition.Matches(log)
		default:
			continue
		}

		if !fire {
			continue
		}

		if _, err := s.publisher.Publish(ctx, ex.ID, def.ID); err != nil {
			if domainerrors.IsAlreadyPublished(err) || domainerrors.IsCode(err, "ALREADY_CANCELLED") {
				// Another tick or a direct publish won the race. Benign.
				s.logger.Debug("definition already terminal",
					zap.String("definition_id", def.ID.String()))
				continue
			}
			s.logger.Error("publish failed, will retry next tick",
				zap.String("exercise_id", ex.ID.String()),
				zap.String("definition_id", def.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}
