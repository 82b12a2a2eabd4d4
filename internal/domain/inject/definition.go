package inject

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// EventDefinition is an authored or dynamically created template for
// something that can happen during an exercise. Definitions are immutable
// after creation except for attaching a restricted-to-user narrowing.
type EventDefinition struct {
	ID           uuid.UUID       `json:"id"`
	ScenarioID   uuid.UUID       `json:"scenario_id"`
	Title        string          `json:"title"`
	BodyTemplate string          `json:"body_template"`
	Severity     values.Severity `json:"severity"`
	Trigger      Trigger         `json:"trigger"`
	Scope        Scope           `json:"scope"`

	// RestrictedToUser is set only for definitions generated in direct
	// response to one participant's action. It narrows visibility to that
	// user plus oversight roles, overriding any broader scope.
	RestrictedToUser *uuid.UUID `json:"restricted_to_user,omitempty"`

	// Consumed by downstream scoring collaborators, not by this engine.
	RequiresResponse     bool `json:"requires_response"`
	RequiresCoordination bool `json:"requires_coordination"`

	SideEffect SideEffectKind `json:"side_effect"`

	CreatedAt time.Time `json:"created_at"`
}

// NewEventDefinition creates a validated event definition.
func NewEventDefinition(scenarioID uuid.UUID, title, bodyTemplate string, severity values.Severity, trigger Trigger, scope Scope) (*EventDefinition, error) {
	if scenarioID == uuid.Nil {
		return nil, fmt.Errorf("scenario ID cannot be nil")
	}
	if title == "" {
		return nil, fmt.Errorf("title cannot be empty")
	}
	if !severity.IsValid() {
		return nil, fmt.Errorf("invalid severity: %q", severity)
	}
	if err := trigger.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trigger: %w", err)
	}
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scope: %w", err)
	}

	return &EventDefinition{
		ID:           uuid.New(),
		ScenarioID:   scenarioID,
		Title:        title,
		BodyTemplate: bodyTemplate,
		Severity:     severity,
		Trigger:      trigger,
		Scope:        scope,
		SideEffect:   SideEffectNone,
		CreatedAt:    time.Now(),
	}, nil
}

// RestrictToUser attaches the only mutation a definition permits after
// creation: narrowing visibility to a single participant.
func (d *EventDefinition) RestrictToUser(userID uuid.UUID) error {
	if userID == uuid.Nil {
		return fmt.Errorf("restricted user ID cannot be nil")
	}
	if d.RestrictedToUser != nil {
		return fmt.Errorf("definition %s is already restricted to a user", d.ID)
	}
	d.RestrictedToUser = &userID
	return nil
}

// TriggerKind discriminates the closed set of trigger variants.
type TriggerKind int

const (
	// TriggerImmediate fires synchronously at creation time and is never
	// polled by the scheduler.
	TriggerImmediate TriggerKind = iota
	TriggerTime
	TriggerCondition
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerImmediate:
		return "immediate"
	case TriggerTime:
		return "time"
	case TriggerCondition:
		return "condition"
	default:
		return "unknown"
	}
}

// ParseTriggerKind maps a stored trigger kind back to its enum value
func ParseTriggerKind(s string) (TriggerKind, error) {
	switch s {
	case "immediate":
		return TriggerImmediate, nil
	case "time":
		return TriggerTime, nil
	case "condition":
		return TriggerCondition, nil
	default:
		return 0, fmt.Errorf("unknown trigger kind: %q", s)
	}
}

// MarshalJSON stores trigger kinds as their text form.
func (k TriggerKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *TriggerKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTriggerKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Trigger is a tagged union: exactly one variant payload matches Kind.
type Trigger struct {
	Kind      TriggerKind       `json:"kind"`
	Time      *TimeTrigger      `json:"time,omitempty"`
	Condition *ConditionTrigger `json:"condition,omitempty"`
}

// TimeTrigger qualifies once exercise elapsed time reaches the offset.
type TimeTrigger struct {
	MinutesFromStart int `json:"minutes_from_start"`
}

// ImmediateTrigger builds the trigger used by dynamic definitions that are
// created and fired at the same instant.
func ImmediateTrigger() Trigger {
	return Trigger{Kind: TriggerImmediate}
}

// TimeTriggerAt builds a trigger firing at the given exercise minute.
func TimeTriggerAt(minutesFromStart int) Trigger {
	return Trigger{Kind: TriggerTime, Time: &TimeTrigger{MinutesFromStart: minutesFromStart}}
}

// ConditionTriggerOf builds a decision-based trigger.
func ConditionTriggerOf(cond ConditionTrigger) Trigger {
	return Trigger{Kind: TriggerCondition, Condition: &cond}
}

// Validate enforces the exactly-one-variant invariant.
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerImmediate:
		if t.Time != nil || t.Condition != nil {
			return fmt.Errorf("immediate trigger must not carry a payload")
		}
	case TriggerTime:
		if t.Time == nil || t.Condition != nil {
			return fmt.Errorf("time trigger requires exactly the time payload")
		}
		if t.Time.MinutesFromStart < 0 {
			return fmt.Errorf("minutes from start cannot be negative")
		}
	case TriggerCondition:
		if t.Condition == nil || t.Time != nil {
			return fmt.Errorf("condition trigger requires exactly the condition payload")
		}
		if err := t.Condition.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown trigger kind: %d", t.Kind)
	}
	return nil
}

// SideEffectKind declares what record a publish creates alongside the event.
type SideEffectKind int

const (
	SideEffectNone SideEffectKind = iota
	// SideEffectIncident marks a reportable definition; publishing creates
	// an incident record.
	SideEffectIncident
	// SideEffectMedia marks a media-bearing definition; publishing creates
	// a simulated media item.
	SideEffectMedia
)

func (k SideEffectKind) String() string {
	switch k {
	case SideEffectNone:
		return "none"
	case SideEffectIncident:
		return "incident"
	case SideEffectMedia:
		return "media"
	default:
		return "unknown"
	}
}

// ParseSideEffectKind maps a stored side effect kind back to its enum value
func ParseSideEffectKind(s string) (SideEffectKind, error) {
	switch s {
	case "none":
		return SideEffectNone, nil
	case "incident":
		return SideEffectIncident, nil
	case "media":
		return SideEffectMedia, nil
	default:
		return 0, fmt.Errorf("unknown side effect kind: %q", s)
	}
}

// MarshalJSON stores side effect kinds as their text form.
func (k SideEffectKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *SideEffectKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseSideEffectKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
