package decision

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Decision is one entry in the append-only decision log an exercise's
// participants produce. The log is owned by the decision collaborator and
// is strictly read-only to this engine.
type Decision struct {
	ID          uuid.UUID `json:"id"`
	ExerciseID  uuid.UUID `json:"exercise_id"`
	Category    Category  `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ProposedAt  time.Time `json:"proposed_at"`
}

// FreeText returns the unstructured text condition matching runs against.
func (d *Decision) FreeText() string {
	return d.Title + " " + d.Description
}

// Category is the closed classification of a participant decision.
type Category string

const (
	CategoryOperations     Category = "operations"
	CategoryCommunications Category = "communications"
	CategoryLogistics      Category = "logistics"
	CategoryMedical        Category = "medical"
	CategorySecurity       Category = "security"
	CategoryPolicy         Category = "policy"
	CategoryIntelligence   Category = "intelligence"
)

// ParseCategory validates a stored or submitted category value
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("unknown decision category: %q", s)
	}
	return c, nil
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryOperations, CategoryCommunications, CategoryLogistics,
		CategoryMedical, CategorySecurity, CategoryPolicy, CategoryIntelligence:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
