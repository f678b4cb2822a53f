package activity

import (
	"sort"
	"time"
)

// Summary condenses the activity of one entity over a time window.
type Summary struct {
	EntityType string                     `json:"entity_type"`
	EntityID   string                     `json:"entity_id"`
	Since      time.Time                  `json:"since"`
	Until      time.Time                  `json:"until"`
	Total      int                        `json:"total"`
	LastActor  string                     `json:"last_actor,omitempty"`
	LastAt     *time.Time                 `json:"last_at,omitempty"`
	Categories map[string]CategorySummary `json:"categories"`
	Alerts     []Alert                    `json:"alerts"`
}

// CategorySummary counts one category's entries by action.
type CategorySummary struct {
	Category string         `json:"category"`
	Count    int            `json:"count"`
	ByAction map[string]int `json:"by_action"`
	// Trend compares the second half of the window with the first:
	// "rising", "falling" or "steady".
	Trend string `json:"trend"`
}

// AlertRule fires when at least Count entries with the given category and
// action occurred within Within of the end of the window.
type AlertRule struct {
	ID          string        `json:"id"`
	Description string        `json:"description"`
	Category    string        `json:"category,omitempty"`
	Action      string        `json:"action,omitempty"`
	Count       int           `json:"count"`
	Within      time.Duration `json:"within"`
}

// Alert is a rule that fired.
type Alert struct {
	Rule            AlertRule `json:"rule"`
	TriggeringCount int       `json:"triggering_count"`
	Earliest        time.Time `json:"earliest"`
	Latest          time.Time `json:"latest"`
}

// DefaultAlertRules flag records that keep bouncing between states or
// owners, and templates edited in rapid succession.
var DefaultAlertRules = []AlertRule{
	{
		ID:          "status_churn",
		Description: "Status changed 3 or more times within a week",
		Category:    "record",
		Action:      "status_changed",
		Count:       3,
		Within:      7 * 24 * time.Hour,
	},
	{
		ID:          "reassignment_churn",
		Description: "Reassigned 3 or more times within 30 days",
		Category:    "record",
		Action:      "assigned",
		Count:       3,
		Within:      30 * 24 * time.Hour,
	},
	{
		ID:          "template_churn",
		Description: "Template updated 5 or more times within a day",
		Category:    "template",
		Action:      "updated",
		Count:       5,
		Within:      24 * time.Hour,
	},
}

// Summarize builds the Summary of entries, which must already be
// restricted to one entity and to [since, until].
func Summarize(entries []Entry, entityType, entityID string, since, until time.Time, rules []AlertRule) Summary {
	s := Summary{
		EntityType: entityType,
		EntityID:   entityID,
		Since:      since,
		Until:      until,
		Total:      len(entries),
		Categories: make(map[string]CategorySummary),
		Alerts:     []Alert{},
	}

	for _, e := range entries {
		cs, ok := s.Categories[e.Category]
		if !ok {
			cs = CategorySummary{Category: e.Category, ByAction: make(map[string]int)}
		}
		cs.Count++
		cs.ByAction[e.Action]++
		s.Categories[e.Category] = cs

		if s.LastAt == nil || !e.OccurredAt.Before(*s.LastAt) {
			at := e.OccurredAt
			s.LastAt = &at
			s.LastActor = e.Actor
		}
	}
	for cat, cs := range s.Categories {
		cs.Trend = trend(entries, cat, since, until)
		s.Categories[cat] = cs
	}

	for _, r := range rules {
		if a, ok := evaluate(r, entries, until); ok {
			s.Alerts = append(s.Alerts, a)
		}
	}
	return s
}

func evaluate(r AlertRule, entries []Entry, until time.Time) (Alert, bool) {
	start := until.Add(-r.Within)
	var matching []Entry
	for _, e := range entries {
		if e.OccurredAt.Before(start) || e.OccurredAt.After(until) {
			continue
		}
		if r.Category != "" && e.Category != r.Category {
			continue
		}
		if r.Action != "" && e.Action != r.Action {
			continue
		}
		matching = append(matching, e)
	}
	if r.Count <= 0 || len(matching) < r.Count {
		return Alert{}, false
	}
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].OccurredAt.Before(matching[j].OccurredAt)
	})
	return Alert{
		Rule:            r,
		TriggeringCount: len(matching),
		Earliest:        matching[0].OccurredAt,
		Latest:          matching[len(matching)-1].OccurredAt,
	}, true
}

// trend compares entry volume in the first and second half of the window.
// A difference of one entry counts as steady.
func trend(entries []Entry, category string, since, until time.Time) string {
	mid := since.Add(until.Sub(since) / 2)
	var first, second int
	for _, e := range entries {
		if e.Category != category {
			continue
		}
		if e.OccurredAt.Before(mid) {
			first++
		} else {
			second++
		}
	}
	switch {
	case second > first+1:
		return "rising"
	case first > second+1:
		return "falling"
	default:
		return "steady"
	}
}
