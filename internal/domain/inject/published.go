package inject

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PublishedEvent is the durable, append-only record created once an event
// definition fires. At most one exists per (exercise, definition) pair;
// that uniqueness is the engine's central correctness contract and is
// enforced at the storage layer, not by in-process locking.
type PublishedEvent struct {
	ID                uuid.UUID     `json:"id"`
	ExerciseID        uuid.UUID     `json:"exercise_id"`
	EventDefinitionID uuid.UUID     `json:"event_definition_id"`
	PublishedAt       time.Time     `json:"published_at"`
	ResolvedScope     ResolvedScope `json:"resolved_scope"`
	SideEffectRefs    []uuid.UUID   `json:"side_effect_refs,omitempty"`
}

// NewPublishedEvent builds the publish record for a firing definition.
func NewPublishedEvent(exerciseID uuid.UUID, def *EventDefinition, now time.Time) (*PublishedEvent, error) {
	if exerciseID == uuid.Nil {
		return nil, fmt.Errorf("exercise ID cannot be nil")
	}
	if def == nil || def.ID == uuid.Nil {
		return nil, fmt.Errorf("event definition is required")
	}
	return &PublishedEvent{
		ID:                uuid.New(),
		ExerciseID:        exerciseID,
		EventDefinitionID: def.ID,
		PublishedAt:       now,
		ResolvedScope:     ResolveScope(def.Scope, def.RestrictedToUser),
	}, nil
}

// CancelledEvent is the alternative terminal record for a time-triggered
// definition the analysis pipeline deems obsolete before it fires. It is
// mutually exclusive with PublishedEvent for the same pair.
type CancelledEvent struct {
	ID                uuid.UUID `json:"id"`
	ExerciseID        uuid.UUID `json:"exercise_id"`
	EventDefinitionID uuid.UUID `json:"event_definition_id"`
	CancelledAt       time.Time `json:"cancelled_at"`
	Reason            string    `json:"reason"`
}

// NewCancelledEvent builds the cancellation record for an obsolete definition.
func NewCancelledEvent(exerciseID, definitionID uuid.UUID, reason string, now time.Time) (*CancelledEvent, error) {
	if exerciseID == uuid.Nil || definitionID == uuid.Nil {
		return nil, fmt.Errorf("exercise and definition IDs are required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("cancellation reason cannot be empty")
	}
	return &CancelledEvent{
		ID:                uuid.New(),
		ExerciseID:        exerciseID,
		EventDefinitionID: definitionID,
		CancelledAt:       now,
		Reason:            reason,
	}, nil
}

// SideEffectRecord is an incident or simulated media item created as a
// consequence of a publish. Records are keyed off the published event so a
// retried publish can never double-create them.
type SideEffectRecord struct {
	ID               uuid.UUID      `json:"id"`
	PublishedEventID uuid.UUID      `json:"published_event_id"`
	ExerciseID       uuid.UUID      `json:"exercise_id"`
	Kind             SideEffectKind `json:"kind"`
	Title            string         `json:"title"`
	Body             string         `json:"body"`
	CreatedAt        time.Time      `json:"created_at"`
}

// NewSideEffectRecord derives the side-effect row a firing definition declares.
func NewSideEffectRecord(event *PublishedEvent, def *EventDefinition, now time.Time) (*SideEffectRecord, error) {
	if def.SideEffect == SideEffectNone {
		return nil, fmt.Errorf("definition %s declares no side effect", def.ID)
	}
	return &SideEffectRecord{
		ID:               uuid.New(),
		PublishedEventID: event.ID,
		ExerciseID:       event.ExerciseID,
		Kind:             def.SideEffect,
		Title:            def.Title,
		Body:             def.BodyTemplate,
		CreatedAt:        now,
	}, nil
}
