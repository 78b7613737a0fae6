package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/MetroCheck/internal/evaluate"
)

var scoredAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func outcome(id string, passed bool, weight float64) evaluate.Outcome {
	o := evaluate.Outcome{RuleID: id, RuleName: id, Passed: passed, Weight: weight, Severity: "high"}
	if !passed {
		o.Message = id + " failed"
	}
	return o
}

func TestScoreEmptyIsPerfect(t *testing.T) {
	assert.Equal(t, 100, Score(nil))
	assert.Equal(t, 100, Score([]evaluate.Outcome{outcome("a", false, 0)}), "no weight means nothing to lose")

	r := Aggregate("p", nil, scoredAt)
	assert.Equal(t, 100, r.Score)
	assert.Equal(t, BadgeHigh, r.Badge)
	assert.Equal(t, 0, r.RulesEvaluated)
	assert.NotNil(t, r.Violations)
}

func TestScoreWeights(t *testing.T) {
	assert.Equal(t, 67, Score([]evaluate.Outcome{outcome("mrp", true, 3), outcome("origin", true, 3), outcome("mfg", false, 3)}))
	assert.Equal(t, 0, Score([]evaluate.Outcome{outcome("a", false, 3), outcome("b", false, 1)}))
	assert.Equal(t, 75, Score([]evaluate.Outcome{outcome("a", true, 3), outcome("b", false, 1)}))
	assert.Equal(t, 25, Score([]evaluate.Outcome{outcome("a", false, 3), outcome("b", true, 1)}))
	assert.Equal(t, 50, Score([]evaluate.Outcome{outcome("a", true, 2.5), outcome("b", false, 2.5)}))
}

func TestScoreIsMonotonic(t *testing.T) {
	outcomes := []evaluate.Outcome{outcome("a", false, 3), outcome("b", false, 2), outcome("c", false, 1), outcome("d", false, 3)}
	prev := Score(outcomes)
	for i := range outcomes {
		outcomes[i].Passed = true
		next := Score(outcomes)
		assert.GreaterOrEqual(t, next, prev, "flipping %s to passed", outcomes[i].RuleID)
		prev = next
	}
	assert.Equal(t, 100, prev)
}

func TestScoreDroppingFailingRuleNeverLowersScore(t *testing.T) {
	mixes := [][]evaluate.Outcome{
		{outcome("mrp", true, 3), outcome("origin", true, 3), outcome("mfg", false, 3)},
		{outcome("mrp", false, 3), outcome("care", true, 2), outcome("date", false, 2), outcome("import", true, 1)},
		{outcome("a", false, 1), outcome("b", false, 1), outcome("c", false, 1)},
		{outcome("a", true, 0.5), outcome("b", false, 7), outcome("c", true, 2.5)},
		{outcome("a", false, 3), outcome("b", true, 0)},
	}
	for _, outcomes := range mixes {
		before := Score(outcomes)
		for i, o := range outcomes {
			if o.Passed {
				continue
			}
			rest := append(append([]evaluate.Outcome{}, outcomes[:i]...), outcomes[i+1:]...)
			assert.GreaterOrEqual(t, Score(rest), before, "deactivating %s", o.RuleID)
		}
	}
}

func TestBadgeFor(t *testing.T) {
	cases := map[int]Badge{100: BadgeHigh, 90: BadgeHigh, 89: BadgeMedium, 70: BadgeMedium, 69: BadgeLow, 0: BadgeLow}
	for score, want := range cases {
		assert.Equal(t, want, BadgeFor(score), "score %d", score)
	}
}

func TestAggregate(t *testing.T) {
	outcomes := []evaluate.Outcome{
		outcome("mrp", true, 3),
		outcome("origin", true, 3),
		outcome("mfg", false, 3),
		outcome("mfg", true, 3),
	}
	r := Aggregate("face-cream", outcomes, scoredAt.In(time.FixedZone("IST", 19800)))

	assert.Equal(t, "face-cream", r.ProductID)
	assert.Equal(t, 3, r.RulesEvaluated, "repeated rule ids count once")
	assert.Equal(t, 67, r.Score)
	assert.Equal(t, BadgeLow, r.Badge)
	require.Len(t, r.Violations, 1)
	assert.Equal(t, "mfg", r.Violations[0].RuleID)
	assert.Equal(t, "mfg failed", r.Violations[0].Message)
	assert.Equal(t, []string{"mrp", "origin", "mfg"}, []string{r.Outcomes[0].RuleID, r.Outcomes[1].RuleID, r.Outcomes[2].RuleID})
	assert.Equal(t, time.UTC, r.ScoredAt.Location())
	assert.True(t, r.ScoredAt.Equal(scoredAt))
}

func TestAggregateViolationsSubsetOfOutcomes(t *testing.T) {
	outcomes := []evaluate.Outcome{outcome("a", false, 1), outcome("b", true, 1), outcome("c", false, 2)}
	r := Aggregate("p", outcomes, scoredAt)
	for _, v := range r.Violations {
		assert.False(t, v.Passed)
		assert.Contains(t, r.Outcomes, v)
	}
	assert.Len(t, r.Violations, 2)
}

func TestSummarize(t *testing.T) {
	reports := []Report{
		Aggregate("a", []evaluate.Outcome{outcome("mrp", true, 3), outcome("mfg", false, 3)}, scoredAt),
		Aggregate("b", []evaluate.Outcome{outcome("mrp", false, 3), outcome("mfg", false, 3)}, scoredAt),
		Aggregate("c", []evaluate.Outcome{outcome("mrp", true, 3), outcome("mfg", true, 3)}, scoredAt),
	}
	s := Summarize(reports)

	assert.Equal(t, 3, s.Products)
	assert.Equal(t, 1, s.Compliant)
	assert.Equal(t, 2, s.WithViolations)
	assert.Equal(t, 3, s.ViolationsTotal)
	assert.InDelta(t, 50.0, s.AverageScore, 0.001)
	assert.Equal(t, map[Badge]int{BadgeHigh: 1, BadgeMedium: 0, BadgeLow: 2}, s.Badges)
	require.Len(t, s.RuleViolations, 2)
	assert.Equal(t, RuleCount{RuleID: "mfg", RuleName: "mfg", Severity: "high", Count: 2}, s.RuleViolations[0])
	assert.Equal(t, "mrp", s.RuleViolations[1].RuleID)

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.Products)
	assert.Zero(t, empty.AverageScore)
	assert.NotNil(t, empty.RuleViolations)
}
