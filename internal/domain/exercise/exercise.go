package exercise

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/values"
)

// Exercise is one running instance of a scenario: participants, a clock,
// and a status. The engine only ever reads exercises; lifecycle transitions
// are owned by the session collaborator.
type Exercise struct {
	ID         uuid.UUID  `json:"id"`
	ScenarioID uuid.UUID  `json:"scenario_id"`
	Name       string     `json:"name"`
	// Teams is the scenario-defined set of participating agencies; the
	// impact matrix is scored over exactly this set.
	Teams     []values.Team `json:"teams"`
	Status    Status        `json:"status"`
	StartTime *time.Time    `json:"start_time,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Status int

const (
	StatusScheduled Status = iota
	StatusInProgress
	StatusPaused
	StatusCompleted
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusInProgress:
		return "in_progress"
	case StatusPaused:
		return "paused"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ParseStatus maps a stored status string back to its enum value
func ParseStatus(s string) (Status, error) {
	switch s {
	case "scheduled":
		return StatusScheduled, nil
	case "in_progress":
		return StatusInProgress, nil
	case "paused":
		return StatusPaused, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled":
		return StatusCancelled, nil
	default:
		return 0, fmt.Errorf("unknown exercise status: %q", s)
	}
}

// IsRunning reports whether the exercise belongs in a poll tick's working set.
func (e *Exercise) IsRunning() bool {
	return e.Status == StatusInProgress && e.StartTime != nil
}

// Elapsed computes exercise time as a pure function of (now, startTime).
// No timer state is cached, so a restarted process resumes correctly.
func (e *Exercise) Elapsed(now time.Time) (time.Duration, error) {
	if e.StartTime == nil {
		return 0, fmt.Errorf("exercise %s has no recorded start time", e.ID)
	}
	d := now.Sub(*e.StartTime)
	if d < 0 {
		d = 0
	}
	return d, nil
}

// ElapsedMinutes is Elapsed expressed in whole minutes, the unit time
// triggers are authored in.
func (e *Exercise) ElapsedMinutes(now time.Time) (int, error) {
	d, err := e.Elapsed(now)
	if err != nil {
		return 0, err
	}
	return int(d / time.Minute), nil
}
