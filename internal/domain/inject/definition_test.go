package inject_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/inject"
	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

func TestNewEventDefinition(t *testing.T) {
	scenarioID := uuid.New()

	t.Run("creates a valid definition", func(t *testing.T) {
		def, err := inject.NewEventDefinition(scenarioID, "Bridge closure", "The Elbe bridge is closed to all traffic.",
			values.SeverityHigh, inject.TimeTriggerAt(30), inject.UniversalScope())
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, def.ID)
		assert.Equal(t, scenarioID, def.ScenarioID)
		assert.Equal(t, inject.SideEffectNone, def.SideEffect)
		assert.Nil(t, def.RestrictedToUser)
	})

	t.Run("rejects nil scenario", func(t *testing.T) {
		_, err := inject.NewEventDefinition(uuid.Nil, "Bridge closure", "body",
			values.SeverityHigh, inject.TimeTriggerAt(30), inject.UniversalScope())
		assert.Error(t, err)
	})

	t.Run("rejects empty title", func(t *testing.T) {
		_, err := inject.NewEventDefinition(scenarioID, "", "body",
			values.SeverityHigh, inject.TimeTriggerAt(30), inject.UniversalScope())
		assert.Error(t, err)
	})

	t.Run("rejects invalid severity", func(t *testing.T) {
		_, err := inject.NewEventDefinition(scenarioID, "Bridge closure", "body",
			values.Severity("apocalyptic"), inject.TimeTriggerAt(30), inject.UniversalScope())
		assert.Error(t, err)
	})

	t.Run("rejects invalid trigger", func(t *testing.T) {
		_, err := inject.NewEventDefinition(scenarioID, "Bridge closure", "body",
			values.SeverityHigh, inject.Trigger{Kind: inject.TriggerTime}, inject.UniversalScope())
		assert.Error(t, err)
	})

	t.Run("rejects invalid scope", func(t *testing.T) {
		_, err := inject.NewEventDefinition(scenarioID, "Bridge closure", "body",
			values.SeverityHigh, inject.TimeTriggerAt(30), inject.Scope{Kind: inject.ScopeRoleRestricted})
		assert.Error(t, err)
	})
}

func TestEventDefinition_RestrictToUser(t *testing.T) {
	def, err := inject.NewEventDefinition(uuid.New(), "Press inquiry", "A journalist is asking about casualties.",
		values.SeverityMedium, inject.ImmediateTrigger(), inject.UniversalScope())
	require.NoError(t, err)

	userID := uuid.New()
	require.NoError(t, def.RestrictToUser(userID))
	require.NotNil(t, def.RestrictedToUser)
	assert.Equal(t, userID, *def.RestrictedToUser)

	// Narrowing is one-shot.
	assert.Error(t, def.RestrictToUser(uuid.New()))
	assert.Equal(t, userID, *def.RestrictedToUser)

	assert.Error(t, def.RestrictToUser(uuid.Nil))
}

func TestTrigger_Validate(t *testing.T) {
	cond := inject.ConditionTrigger{
		Categories: []decision.Category{decision.CategoryOperations},
		Mode:       inject.MatchAny,
	}

	tests := []struct {
		name    string
		trigger inject.Trigger
		wantErr bool
	}{
		{name: "immediate trigger is valid", trigger: inject.ImmediateTrigger()},
		{name: "time trigger is valid", trigger: inject.TimeTriggerAt(45)},
		{name: "time trigger at minute zero is valid", trigger: inject.TimeTriggerAt(0)},
		{name: "condition trigger is valid", trigger: inject.ConditionTriggerOf(cond)},
		{
			name:    "immediate trigger with payload is invalid",
			trigger: inject.Trigger{Kind: inject.TriggerImmediate, Time: &inject.TimeTrigger{MinutesFromStart: 5}},
			wantErr: true,
		},
		{
			name:    "time trigger without payload is invalid",
			trigger: inject.Trigger{Kind: inject.TriggerTime},
			wantErr: true,
		},
		{
			name:    "negative time offset is invalid",
			trigger: inject.TimeTriggerAt(-1),
			wantErr: true,
		},
		{
			name:    "condition trigger without payload is invalid",
			trigger: inject.Trigger{Kind: inject.TriggerCondition},
			wantErr: true,
		},
		{
			name: "trigger carrying both payloads is invalid",
			trigger: inject.Trigger{
				Kind:      inject.TriggerTime,
				Time:      &inject.TimeTrigger{MinutesFromStart: 5},
				Condition: &cond,
			},
			wantErr: true,
		},
		{
			name:    "condition trigger with malformed condition is invalid",
			trigger: inject.ConditionTriggerOf(inject.ConditionTrigger{Mode: inject.MatchAny}),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trigger.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
