package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/escalation"
	domainerrors "github.com/praxisops/crisis-exercise-backend/internal/domain/errors"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
	"github.com/praxisops/crisis-exercise-backend/internal/infrastructure/repository"
	"github.com/praxisops/crisis-exercise-backend/internal/metrics"
)

const (
	stageFactors  = "factors"
	stagePathways = "pathways"
	stageMatrix   = "matrix"
)

// Pipeline runs the recurring escalation analysis cycle: gather the
// exercise state once, then Factors, Pathways, Matrix in strict order, each
// stage persisted with its reasoning before the next begins. A stage
// failure halts the cycle for that exercise; the streams stay internally
// consistent because later stages only ever reference snapshots that are
// already durable.
type Pipeline struct {
	exercises ExerciseStore
	decisions DecisionLog
	published PublishedSummaries
	snapshots SnapshotStore
	generator Generator
	cache     FactorCache
	clock     values.Clock
	logger    *zap.Logger
	registry  *metrics.Registry

	cycleInterval time.Duration
	stageTimeout  time.Duration

	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once
}

func NewPipeline(
	exercises ExerciseStore,
	decisions DecisionLog,
	published PublishedSummaries,
	snapshots SnapshotStore,
	generator Generator,
	cache FactorCache,
	clock values.Clock,
	registry *metrics.Registry,
	logger *zap.Logger,
	cycleInterval, stageTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		exercises:     exercises,
		decisions:     decisions,
		published:     published,
		snapshots:     snapshots,
		generator:     generator,
		cache:         cache,
		clock:         clock,
		registry:      registry,
		logger:        logger,
		cycleInterval: cycleInterval,
		stageTimeout:  stageTimeout,
		stop:          make(chan struct{}),
	}
}

// Start runs the cycle loop until the context is cancelled or Stop is called.
func (p *Pipeline) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.cycleInterval)
		defer ticker.Stop()

		p.logger.Info("escalation pipeline started",
			zap.Duration("cycle_interval", p.cycleInterval),
			zap.Duration("stage_timeout", p.stageTimeout))

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
				p.RunCycle(ctx)
			}
		}
	}()
}

// Stop halts the cycle loop and waits for in-flight cycles.
func (p *Pipeline) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
	p.logger.Info("escalation pipeline stopped")
}

// RunCycle analyses every running exercise once. Exercises are independent:
// a halted cycle for one is logged and dropped, the rest proceed.
func (p *Pipeline) RunCycle(ctx context.Context) {
	running, err := p.exercises.ListRunning(ctx)
	if err != nil {
		p.logger.Error("failed to list running exercises", zap.Error(err))
		return
	}

	var wg sync.WaitGroup
	for _, ex := range running {
		wg.Add(1)
		go func(ex *exercise.Exercise) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("analysis cycle panicked",
						zap.String("exercise_id", ex.ID.String()),
						zap.Any("panic", r))
				}
			}()
			if p.registry != nil {
				p.registry.CycleCounter.Add(ctx, 1)
			}
			if err := p.AnalyseExercise(ctx, ex); err != nil {
				p.logger.Error("analysis cycle halted",
					zap.String("exercise_id", ex.ID.String()),
					zap.Error(err))
			}
		}(ex)
	}
	wg.Wait()
}

// AnalyseExercise runs one full cycle for a single exercise.
func (p *Pipeline) AnalyseExercise(ctx context.Context, ex *exercise.Exercise) error {
	input, err := p.gather(ctx, ex)
	if err != nil {
		return err
	}

	factors, err := p.runFactorStage(ctx, ex, input)
	if err != nil {
		return err
	}
	if err := p.runPathwayStage(ctx, ex, input, factors); err != nil {
		return err
	}
	return p.runMatrixStage(ctx, ex, input, factors)
}

// gather assembles the cycle's input once so every stage sees the same view
// of the exercise, even while participants keep acting. The decision window
// starts at the previous evaluation; the first cycle reads the full log.
func (p *Pipeline) gather(ctx context.Context, ex *exercise.Exercise) (*escalation.AnalysisInput, error) {
	now := p.clock.Now()
	elapsed, err := ex.ElapsedMinutes(now)
	if err != nil {
		return nil, err
	}

	previous, err := p.snapshots.LatestFactorSnapshot(ctx, ex.ID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, err
	}
	var since *time.Time
	if previous != nil {
		since = &previous.EvaluatedAt
	}

	decisions, err := p.decisions.ListByExerciseSince(ctx, ex.ID, since)
	if err != nil {
		return nil, err
	}
	published, err := p.published.ListSummaries(ctx, ex.ID)
	if err != nil {
		return nil, err
	}

	return &escalation.AnalysisInput{
		ExerciseID:      ex.ID,
		GatheredAt:      now,
		ElapsedMinutes:  elapsed,
		Teams:           ex.Teams,
		Decisions:       decisions,
		Published:       published,
		PreviousFactors: previous,
	}, nil
}

func (p *Pipeline) runFactorStage(ctx context.Context, ex *exercise.Exercise, input *escalation.AnalysisInput) (*escalation.FactorSnapshot, error) {
	var draft *escalation.FactorsDraft
	err := p.runStage(ctx, stageFactors, func(stageCtx context.Context) error {
		var genErr error
		draft, genErr = p.generator.GenerateFactors(stageCtx, input)
		return genErr
	})
	if err != nil {
		return nil, err
	}

	snapshot, err := escalation.NewFactorSnapshot(ex.ID, draft.Factors, draft.Reasoning, p.evaluationTime(input.PreviousFactors))
	if err != nil {
		return nil, p.reject(ctx, stageFactors, err)
	}
	if err := p.snapshots.CreateFactorSnapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	if p.cache != nil {
		p.cache.SetLatestFactors(ctx, snapshot)
	}

	p.logger.Info("factor snapshot persisted",
		zap.String("exercise_id", ex.ID.String()),
		zap.String("snapshot_id", snapshot.ID.String()),
		zap.Int("factors", len(snapshot.Factors)))
	return snapshot, nil
}

func (p *Pipeline) runPathwayStage(ctx context.Context, ex *exercise.Exercise, input *escalation.AnalysisInput, factors *escalation.FactorSnapshot) error {
	var draft *escalation.PathwaysDraft
	err := p.runStage(ctx, stagePathways, func(stageCtx context.Context) error {
		var genErr error
		draft, genErr = p.generator.GeneratePathways(stageCtx, input, factors)
		return genErr
	})
	if err != nil {
		return err
	}

	snapshot, err := escalation.NewPathwaySnapshot(ex.ID, factors.ID, draft.Pathways, draft.Reasoning, p.clock.Now())
	if err != nil {
		return p.reject(ctx, stagePathways, err)
	}
	if err := p.snapshots.CreatePathwaySnapshot(ctx, snapshot); err != nil {
		return err
	}

	p.logger.Info("pathway snapshot persisted",
		zap.String("exercise_id", ex.ID.String()),
		zap.String("snapshot_id", snapshot.ID.String()),
		zap.Int("pathways", len(snapshot.Pathways)))
	return nil
}

func (p *Pipeline) runMatrixStage(ctx context.Context, ex *exercise.Exercise, input *escalation.AnalysisInput, factors *escalation.FactorSnapshot) error {
	var draft *escalation.MatrixDraft
	err := p.runStage(ctx, stageMatrix, func(stageCtx context.Context) error {
		var genErr error
		draft, genErr = p.generator.GenerateMatrix(stageCtx, input, factors)
		return genErr
	})
	if err != nil {
		return err
	}

	eval, err := escalation.NewMatrixEvaluation(ex.ID, factors.ID,
		draft.Matrix, draft.RobustnessByDecision, draft.ResponseTaxonomy,
		draft.Reasoning, p.clock.Now())
	if err != nil {
		return p.reject(ctx, stageMatrix, err)
	}
	if err := p.snapshots.CreateMatrixEvaluation(ctx, eval); err != nil {
		return err
	}

	p.logger.Info("matrix evaluation persisted",
		zap.String("exercise_id", ex.ID.String()),
		zap.String("evaluation_id", eval.ID.String()))
	return nil
}

// runStage executes one generator call under the bounded stage timeout.
func (p *Pipeline) runStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	started := p.clock.Now()
	err := fn(stageCtx)
	if p.registry != nil {
		p.registry.RecordStage(ctx, stage, p.clock.Now().Sub(started))
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || stageCtx.Err() == context.DeadlineExceeded {
			if p.registry != nil {
				p.registry.StageTimeoutCounter.Add(ctx, 1)
			}
			return domainerrors.NewStageTimeoutError(stage)
		}
		return err
	}
	return nil
}

// reject wraps a validation failure of generator output. Out-of-range or
// malformed output indicates a broken upstream generator and is dropped
// whole, never coerced into range.
func (p *Pipeline) reject(ctx context.Context, stage string, cause error) error {
	if p.registry != nil {
		p.registry.StageRejectedCounter.Add(ctx, 1)
	}
	return domainerrors.NewStageOutputError(stage, cause.Error())
}

// evaluationTime keeps factor snapshot times strictly increasing per
// exercise even under clock skew or a coarse clock.
func (p *Pipeline) evaluationTime(previous *escalation.FactorSnapshot) time.Time {
	now := p.clock.Now()
	if previous != nil && !now.After(previous.EvaluatedAt) {
		return previous.EvaluatedAt.Add(time.Millisecond)
	}
	return now
}
