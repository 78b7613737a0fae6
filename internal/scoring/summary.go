package scoring

import "sort"

// Summary aggregates many reports for dashboard cards.
type Summary struct {
	Products        int           `json:"products"`
	AverageScore    float64       `json:"averageScore"`
	Compliant       int           `json:"compliant"`
	WithViolations  int           `json:"withViolations"`
	Badges          map[Badge]int `json:"badges"`
	ViolationsTotal int           `json:"violationsTotal"`
	RuleViolations  []RuleCount   `json:"ruleViolations"`
}

// RuleCount is the number of violations a rule detected.
type RuleCount struct {
	RuleID   string `json:"ruleId"`
	RuleName string `json:"ruleName"`
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

// Summarize totals reports. RuleViolations is sorted by count, then rule id.
func Summarize(reports []Report) Summary {
	sum := Summary{
		Badges:         map[Badge]int{BadgeHigh: 0, BadgeMedium: 0, BadgeLow: 0},
		RuleViolations: []RuleCount{},
	}
	counts := make(map[string]*RuleCount)
	var scoreTotal int
	for _, r := range reports {
		sum.Products++
		scoreTotal += r.Score
		sum.Badges[r.Badge]++
		if len(r.Violations) == 0 {
			sum.Compliant++
		} else {
			sum.WithViolations++
		}
		for _, v := range r.Violations {
			sum.ViolationsTotal++
			c, ok := counts[v.RuleID]
			if !ok {
				c = &RuleCount{RuleID: v.RuleID, RuleName: v.RuleName, Severity: v.Severity}
				counts[v.RuleID] = c
			}
			c.Count++
		}
	}
	if sum.Products > 0 {
		sum.AverageScore = float64(scoreTotal) / float64(sum.Products)
	}
	for _, c := range counts {
		sum.RuleViolations = append(sum.RuleViolations, *c)
	}
	sort.Slice(sum.RuleViolations, func(i, j int) bool {
		a, b := sum.RuleViolations[i], sum.RuleViolations[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.RuleID < b.RuleID
	})
	return sum
}
