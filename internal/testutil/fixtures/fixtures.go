// Package fixtures provides builders for test entities. Builders produce
// valid domain objects by default; tests override only the fields they
// care about.
package fixtures

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/exercise"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// ExerciseBuilder builds test Exercise entities
type ExerciseBuilder struct {
	id         uuid.UUID
	scenarioID uuid.UUID
	name       string
	teams      []values.Team
	status     exercise.Status
	startTime  *time.Time
}

func NewExerciseBuilder() *ExerciseBuilder {
	start := time.Now().Add(-30 * time.Minute)
	return &ExerciseBuilder{
		id:         uuid.New(),
		scenarioID: uuid.New(),
		name:       "test exercise",
		teams:      []values.Team{"fire", "police"},
		status:     exercise.StatusInProgress,
		startTime:  &start,
	}
}

func (b *ExerciseBuilder) WithScenarioID(id uuid.UUID) *ExerciseBuilder {
	b.scenarioID = id
	return b
}

func (b *ExerciseBuilder) WithStatus(status exercise.Status) *ExerciseBuilder {
	b.status = status
	return b
}

func (b *ExerciseBuilder) WithTeams(teams ...values.Team) *ExerciseBuilder {
	b.teams = teams
	return b
}

func (b *ExerciseBuilder) StartedAt(t time.Time) *ExerciseBuilder {
	b.startTime = &t
	return b
}

func (b *ExerciseBuilder) NotStarted() *ExerciseBuilder {
	b.startTime = nil
	b.status = exercise.StatusScheduled
	return b
}

func (b *ExerciseBuilder) Build() *exercise.Exercise {
	now := time.Now()
	return &exercise.Exercise{
		ID:         b.id,
		ScenarioID: b.scenarioID,
		Name:       b.name,
		Teams:      b.teams,
		Status:     b.status,
		StartTime:  b.startTime,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// DefinitionBuilder builds test EventDefinition entities
type DefinitionBuilder struct {
	scenarioID uuid.UUID
	title      string
	body       string
	severity   values.Severity
	trigger    inject.Trigger
	scope      inject.Scope
	sideEffect inject.SideEffectKind
	restricted *uuid.UUID
}

func NewDefinitionBuilder() *DefinitionBuilder {
	return &DefinitionBuilder{
		scenarioID: uuid.New(),
		title:      "test inject",
		body:       "Something happens.",
		severity:   values.SeverityMedium,
		trigger:    inject.TimeTriggerAt(15),
		scope:      inject.UniversalScope(),
		sideEffect: inject.SideEffectNone,
	}
}

func (b *DefinitionBuilder) WithScenarioID(id uuid.UUID) *DefinitionBuilder {
	b.scenarioID = id
	return b
}

func (b *DefinitionBuilder) WithTitle(title string) *DefinitionBuilder {
	b.title = title
	return b
}

func (b *DefinitionBuilder) WithSeverity(s values.Severity) *DefinitionBuilder {
	b.severity = s
	return b
}

func (b *DefinitionBuilder) WithTrigger(t inject.Trigger) *DefinitionBuilder {
	b.trigger = t
	return b
}

func (b *DefinitionBuilder) WithScope(s inject.Scope) *DefinitionBuilder {
	b.scope = s
	return b
}

func (b *DefinitionBuilder) WithSideEffect(k inject.SideEffectKind) *DefinitionBuilder {
	b.sideEffect = k
	return b
}

func (b *DefinitionBuilder) RestrictedTo(userID uuid.UUID) *DefinitionBuilder {
	b.restricted = &userID
	return b
}

func (b *DefinitionBuilder) Build(t *testing.T) *inject.EventDefinition {
	t.Helper()
	def, err := inject.NewEventDefinition(b.scenarioID, b.title, b.body, b.severity, b.trigger, b.scope)
	require.NoError(t, err)
	def.SideEffect = b.sideEffect
	if b.restricted != nil {
		require.NoError(t, def.RestrictToUser(*b.restricted))
	}
	return def
}

// DecisionBuilder builds test Decision entries
type DecisionBuilder struct {
	exerciseID  uuid.UUID
	category    decision.Category
	title       string
	description string
	proposedAt  time.Time
}

func NewDecisionBuilder(exerciseID uuid.UUID) *DecisionBuilder {
	return &DecisionBuilder{
		exerciseID:  exerciseID,
		category:    decision.CategoryOperations,
		title:       "deploy field teams",
		description: "Send available units to the staging area.",
		proposedAt:  time.Now(),
	}
}

func (b *DecisionBuilder) WithCategory(c decision.Category) *DecisionBuilder {
	b.category = c
	return b
}

func (b *DecisionBuilder) WithText(title, description string) *DecisionBuilder {
	b.title = title
	b.description = description
	return b
}

func (b *DecisionBuilder) ProposedAt(t time.Time) *DecisionBuilder {
	b.proposedAt = t
	return b
}

func (b *DecisionBuilder) Build() decision.Decision {
	return decision.Decision{
		ID:          uuid.New(),
		ExerciseID:  b.exerciseID,
		Category:    b.category,
		Title:       b.title,
		Description: b.description,
		ProposedAt:  b.proposedAt,
	}
}
