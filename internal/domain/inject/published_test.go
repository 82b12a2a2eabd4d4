package inject_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

func TestNewPublishedEvent(t *testing.T) {
	exerciseID := uuid.New()
	now := time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

	t.Run("snapshots the definition scope at publish", func(t *testing.T) {
		def, err := inject.NewEventDefinition(uuid.New(), "Power outage", "Substation 4 is offline.",
			values.SeverityHigh, inject.TimeTriggerAt(15), inject.RoleScope(values.RoleOperations))
		require.NoError(t, err)

		event, err := inject.NewPublishedEvent(exerciseID, def, now)
		require.NoError(t, err)
		assert.Equal(t, exerciseID, event.ExerciseID)
		assert.Equal(t, def.ID, event.EventDefinitionID)
		assert.Equal(t, now, event.PublishedAt)
		assert.Equal(t, inject.ScopeRoleRestricted, event.ResolvedScope.Kind)
	})

	t.Run("user-restricted definitions publish narrowed", func(t *testing.T) {
		def, err := inject.NewEventDefinition(uuid.New(), "Private briefing", "Only for you.",
			values.SeverityLow, inject.ImmediateTrigger(), inject.UniversalScope())
		require.NoError(t, err)
		userID := uuid.New()
		require.NoError(t, def.RestrictToUser(userID))

		event, err := inject.NewPublishedEvent(exerciseID, def, now)
		require.NoError(t, err)
		assert.Equal(t, inject.ScopeUserRestricted, event.ResolvedScope.Kind)
		require.NotNil(t, event.ResolvedScope.RestrictedToUser)
		assert.Equal(t, userID, *event.ResolvedScope.RestrictedToUser)
	})

	t.Run("rejects nil exercise", func(t *testing.T) {
		def, err := inject.NewEventDefinition(uuid.New(), "Power outage", "body",
			values.SeverityHigh, inject.TimeTriggerAt(15), inject.UniversalScope())
		require.NoError(t, err)

		_, err = inject.NewPublishedEvent(uuid.Nil, def, now)
		assert.Error(t, err)
	})
}

func TestNewCancelledEvent(t *testing.T) {
	now := time.Now().UTC()

	t.Run("records the cancellation reason", func(t *testing.T) {
		cancelled, err := inject.NewCancelledEvent(uuid.New(), uuid.New(), "overtaken by events", now)
		require.NoError(t, err)
		assert.Equal(t, "overtaken by events", cancelled.Reason)
		assert.Equal(t, now, cancelled.CancelledAt)
	})

	t.Run("requires a reason", func(t *testing.T) {
		_, err := inject.NewCancelledEvent(uuid.New(), uuid.New(), "  ", now)
		assert.Error(t, err)
	})
}

func TestNewSideEffectRecord(t *testing.T) {
	now := time.Now().UTC()
	exerciseID := uuid.New()

	newDef := func(t *testing.T, effect inject.SideEffectKind) *inject.EventDefinition {
		t.Helper()
		def, err := inject.NewEventDefinition(uuid.New(), "Chemical spill", "Tanker leaking near the docks.",
			values.SeverityCritical, inject.TimeTriggerAt(5), inject.UniversalScope())
		require.NoError(t, err)
		def.SideEffect = effect
		return def
	}

	t.Run("incident definitions produce incident records", func(t *testing.T) {
		def := newDef(t, inject.SideEffectIncident)
		event, err := inject.NewPublishedEvent(exerciseID, def, now)
		require.NoError(t, err)

		record, err := inject.NewSideEffectRecord(event, def, now)
		require.NoError(t, err)
		assert.Equal(t, inject.SideEffectIncident, record.Kind)
		assert.Equal(t, event.ID, record.PublishedEventID)
		assert.Equal(t, exerciseID, record.ExerciseID)
	})

	t.Run("definitions without side effects produce nothing", func(t *testing.T) {
		def := newDef(t, inject.SideEffectNone)
		event, err := inject.NewPublishedEvent(exerciseID, def, now)
		require.NoError(t, err)

		_, err = inject.NewSideEffectRecord(event, def, now)
		assert.Error(t, err)
	})
}
