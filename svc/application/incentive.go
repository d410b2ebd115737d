package application

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// CreditTokenValue is the currency value of one token.
	CreditTokenValue int64 = 50
	// DefaultIncentivePlan applies to casting directors without an explicit plan.
	DefaultIncentivePlan = "25%"
)

// IncentiveAmount computes what a casting director earns when a candidate
// applies to their job. A plan ending in "%" is a percentage of the job's
// token value; anything else is a flat amount. Fractions are truncated.
func IncentiveAmount(plan string, requiredTokens int64) (int64, error) {
	plan = strings.TrimSpace(plan)
	if plan == "" {
		plan = DefaultIncentivePlan
	}

	if pct, ok := strings.CutSuffix(plan, "%"); ok {
		p, err := strconv.ParseInt(strings.TrimSpace(pct), 10, 64)
		if err != nil || p < 0 {
			return 0, fmt.Errorf("invalid incentive plan %q", plan)
		}
		return requiredTokens * CreditTokenValue * p / 100, nil
	}

	flat, err := strconv.ParseInt(plan, 10, 64)
	if err != nil || flat < 0 {
		return 0, fmt.Errorf("invalid incentive plan %q", plan)
	}
	return flat, nil
}
