package usecase

// SelectModel decides which base model attempt number n should use. The
// switch to the fallback is one-directional for a lineage: every attempt
// after switchAfter completed attempts uses fallbackModel, and the policy
// never reverts even if the fallback also stalls. Pure function of its
// inputs, not of call history.
func SelectModel(attemptNumber int, baseModel, fallbackModel string, switchAfter int) string {
	if fallbackModel == "" {
		return baseModel
	}
	if attemptNumber <= switchAfter {
		return baseModel
	}
	return fallbackModel
}
