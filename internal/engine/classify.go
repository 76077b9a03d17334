package engine

import "github.com/hamed0406/socdash/internal/domain"

// DefaultDegradedThresholdMS is the latency above which a reachable service
// is reported DEGRADED. It applies to every service alike.
const DefaultDegradedThresholdMS int64 = 500

// Classify maps a probe outcome to a status. A missing latency on a
// successful probe counts as UP; the threshold itself is still UP.
func Classify(ok bool, latencyMS *int64, thresholdMS int64) domain.Status {
	if !ok {
		return domain.StatusDown
	}
	if latencyMS != nil && *latencyMS > thresholdMS {
		return domain.StatusDegraded
	}
	return domain.StatusUp
}
