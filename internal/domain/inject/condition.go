package inject

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/praxisops/crisis-exercise-backend/internal/domain/decision"
)

// MatchMode selects how a condition combines its category and keyword terms.
type MatchMode int

const (
	// MatchAny is satisfied by a category hit or any single keyword hit.
	MatchAny MatchMode = iota
	// MatchAll requires one decision to hit the category set and contain
	// every listed keyword. The single-decision reading is deliberate: a
	// conjunction spread across distinct decisions does not qualify.
	MatchAll
)

func (m MatchMode) String() string {
	switch m {
	case MatchAny:
		return "any"
	case MatchAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseMatchMode maps a stored match mode back to its enum value
func ParseMatchMode(s string) (MatchMode, error) {
	switch s {
	case "any":
		return MatchAny, nil
	case "all":
		return MatchAll, nil
	default:
		return 0, fmt.Errorf("unknown match mode: %q", s)
	}
}

// MarshalJSON stores match modes as their text form.
func (m MatchMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *MatchMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseMatchMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ConditionTrigger qualifies when the decision log satisfies its terms.
type ConditionTrigger struct {
	Categories []decision.Category `json:"categories"`
	Keywords   []string            `json:"keywords"`
	Mode       MatchMode           `json:"mode"`
}

// Validate rejects malformed condition specs before they reach the matcher.
func (c *ConditionTrigger) Validate() error {
	if len(c.Categories) == 0 && len(c.Keywords) == 0 {
		return fmt.Errorf("condition requires at least one category or keyword")
	}
	for _, cat := range c.Categories {
		if !cat.IsValid() {
			return fmt.Errorf("invalid condition category: %q", cat)
		}
	}
	for _, kw := range c.Keywords {
		if strings.TrimSpace(kw) == "" {
			return fmt.Errorf("condition keywords cannot be blank")
		}
	}
	if c.Mode != MatchAny && c.Mode != MatchAll {
		return fmt.Errorf("invalid match mode: %d", c.Mode)
	}
	return nil
}

// Matches evaluates the condition against the decision log so far. It is a
// pure predicate: callers must treat a positive result as a one-way latch
// and must never cache a negative result across decision log growth.
func (c *ConditionTrigger) Matches(decisions []decision.Decision) bool {
	for i := range decisions {
		d := &decisions[i]
		categoryHit := c.categoryHit(d.Category)
		keywordHits := c.keywordHits(d.FreeText())

		switch c.Mode {
		case MatchAny:
			if categoryHit || keywordHits > 0 {
				return true
			}
		case MatchAll:
			if categoryHit && keywordHits == len(c.Keywords) {
				return true
			}
		}
	}
	return false
}

func (c *ConditionTrigger) categoryHit(cat decision.Category) bool {
	for _, want := range c.Categories {
		if cat == want {
			return true
		}
	}
	return false
}

// keywordHits counts how many distinct condition keywords appear in the
// decision text, case-insensitively.
func (c *ConditionTrigger) keywordHits(text string) int {
	lowered := strings.ToLower(text)
	hits := 0
	for _, kw := range c.Keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			hits++
		}
	}
	return hits
}
