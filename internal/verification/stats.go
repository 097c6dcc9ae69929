package verification

import (
	"sync"
	"time"
)

// Stats tracks service activity counters since process start. Counters only
// cover initial verifications; cross-checks report through their own
// persisted records.
type Stats struct {
	mu sync.Mutex

	startedAt       time.Time
	total           int64
	approved        int64
	rejected        int64
	pending         int64
	confidenceSum   float64
	processingSumMS int64
}

func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

// Record counts one completed verification.
func (s *Stats) Record(status VerificationStatus, confidence float64, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.confidenceSum += confidence
	s.processingSumMS += took.Milliseconds()

	switch status {
	case StatusApproved:
		s.approved++
	case StatusRejected:
		s.rejected++
	default:
		s.pending++
	}
}

// Snapshot returns the current counters. Averages are defined as zero when
// nothing has been recorded yet.
func (s *Stats) Snapshot() StatsResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	resp := StatsResponse{
		TotalVerifications: s.total,
		Approved:           s.approved,
		Rejected:           s.rejected,
		Pending:            s.pending,
		UptimeSeconds:      int64(time.Since(s.startedAt).Seconds()),
	}
	if s.total > 0 {
		resp.AverageConfidence = s.confidenceSum / float64(s.total)
		resp.AverageProcessingTimeMS = s.processingSumMS / s.total
	}
	return resp
}
