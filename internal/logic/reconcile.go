package logic

import "time"

// Reconcile merges the dead-reckoning estimate with the top limit reading.
// The sensor is ground truth: contact puts the hoist exactly at the top.
func Reconcile(estimate time.Duration, topTriggered bool) time.Duration {
	if topTriggered {
		return 0
	}
	return estimate
}
