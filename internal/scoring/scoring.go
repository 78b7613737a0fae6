// Package scoring collapses rule outcomes into a compliance report.
package scoring

import (
	"math"
	"time"

	"github.com/dharsanguruparan/MetroCheck/internal/evaluate"
)

// Badge is the three-tier bucket dashboards and product cards display.
type Badge string

const (
	BadgeHigh   Badge = "high"
	BadgeMedium Badge = "medium"
	BadgeLow    Badge = "low"
)

// Report is the immutable judgment for one product. RulesEvaluated separates
// "nothing to violate" (0 rules, score 100) from "fully verified".
type Report struct {
	ProductID      string             `json:"productId"`
	Outcomes       []evaluate.Outcome `json:"outcomes"`
	Violations     []evaluate.Outcome `json:"violations"`
	Score          int                `json:"score"`
	Badge          Badge              `json:"badge"`
	RulesEvaluated int                `json:"rulesEvaluated"`
	ScoredAt       time.Time          `json:"scoredAt"`
}

// Aggregate builds a report from evaluator output. Outcomes keep their order;
// a repeated rule id keeps only its first outcome.
func Aggregate(productID string, outcomes []evaluate.Outcome, now time.Time) Report {
	unique := make([]evaluate.Outcome, 0, len(outcomes))
	seen := make(map[string]struct{}, len(outcomes))
	for _, o := range outcomes {
		if _, dup := seen[o.RuleID]; dup {
			continue
		}
		seen[o.RuleID] = struct{}{}
		unique = append(unique, o)
	}
	violations := make([]evaluate.Outcome, 0)
	for _, o := range unique {
		if !o.Passed {
			violations = append(violations, o)
		}
	}
	score := Score(unique)
	return Report{
		ProductID:      productID,
		Outcomes:       unique,
		Violations:     violations,
		Score:          score,
		Badge:          BadgeFor(score),
		RulesEvaluated: len(unique),
		ScoredAt:       now.UTC(),
	}
}

// Score is round(100 * passed weight / total weight), clamped to [0, 100].
// With no outcomes, or no weight to lose, the score is 100 by convention.
func Score(outcomes []evaluate.Outcome) int {
	var passed, total float64
	for _, o := range outcomes {
		total += o.Weight
		if o.Passed {
			passed += o.Weight
		}
	}
	if total <= 0 {
		return 100
	}
	score := int(math.Round(100 * passed / total))
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return score
}

// BadgeFor buckets a score: 90 and above is high, 70 to 89 medium, below 70 low.
func BadgeFor(score int) Badge {
	switch {
	case score >= 90:
		return BadgeHigh
	case score >= 70:
		return BadgeMedium
	}
	return BadgeLow
}
