package domain

// DefaultFreeLimit is the number of gated generations a free-plan user may
// perform before upgrading.
const DefaultFreeLimit = 10

// AllowGeneration decides whether a caller may run a quota-gated workflow.
// Premium callers are always allowed, independent of any counter value.
// The function is side-effect free: the caller increments the usage counter
// only after the generation has been persisted.
func AllowGeneration(plan Plan, freeUsage, freeLimit int) bool {
	if plan == PlanPremium {
		return true
	}
	return freeUsage < freeLimit
}
