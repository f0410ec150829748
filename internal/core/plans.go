package core

import "log"

// PlanLimits holds the per-plan caps enforced by the invite and generation
// services. This is deliberately a fixed enum-keyed table, not a runtime
// registry; adding a plan means adding a row here.
type PlanLimits struct {
	MaxCollaborators   int
	MonthlyGenerations int64
}

var planLimits = map[string]PlanLimits{
	"FREE":       {MaxCollaborators: 3, MonthlyGenerations: 5},
	"PRO":        {MaxCollaborators: 10, MonthlyGenerations: 100},
	"ENTERPRISE": {MaxCollaborators: 100, MonthlyGenerations: 10000},
}

// LimitsForPlan returns the limits for a plan name. Unknown plans fall back to
// the FREE limits so a misconfigured plan can never grant unlimited use.
func LimitsForPlan(plan string) PlanLimits {
	limits, ok := planLimits[plan]
	if !ok {
		log.Printf("Warning: plan '%s' not found in limits configuration, defaulting to FREE", plan)
		return planLimits["FREE"]
	}
	return limits
}
