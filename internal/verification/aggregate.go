package verification

import "fmt"

// namedResult pairs a check result with the check that produced it, in the
// engine's fixed check order, so rejection reasons and warnings come out
// deterministically ordered.
type namedResult struct {
	name   string
	result CheckResult
}

// aggregate folds a set of check results into one verdict. The policy:
// skipped checks are ignored; an empty active set is the defined degenerate
// case (0.5, NEEDS_REVIEW); confidence is the unweighted mean of active
// checks; any failure vetoes the verdict to REJECTED regardless of the mean;
// otherwise the mean is thresholded, with the middle band routed to human
// review.
func aggregate(results []namedResult, approveAt, rejectAt float64) Verdict {
	var active []CheckResult
	for _, r := range results {
		if r.result.Status != CheckSkipped {
			active = append(active, r.result)
		}
	}

	if len(active) == 0 {
		return Verdict{
			ConfidenceScore:  0.5,
			Status:           StatusNeedsReview,
			RejectionReasons: []string{"No checks performed"},
			Warnings:         []string{},
		}
	}

	sum := 0.0
	for _, r := range active {
		sum += r.Confidence
	}
	confidence := sum / float64(len(active))

	// Active confidences are all in [0,1], so their mean must be too. Out of
	// range here means a check broke its contract.
	if confidence < 0 || confidence > 1 {
		panic(fmt.Sprintf("aggregated confidence %f out of range", confidence))
	}

	rejectionReasons := []string{}
	warnings := []string{}
	failed := false
	for _, r := range results {
		switch r.result.Status {
		case CheckFailed:
			failed = true
			rejectionReasons = append(rejectionReasons, r.result.Details)
		case CheckWarning:
			warnings = append(warnings, r.result.Details)
		}
	}

	var status VerificationStatus
	switch {
	case failed:
		// A single strongly-failed check cannot be averaged away.
		status = StatusRejected
	case confidence >= approveAt:
		status = StatusApproved
	case confidence <= rejectAt:
		status = StatusRejected
	default:
		status = StatusNeedsReview
	}

	return Verdict{
		ConfidenceScore:  confidence,
		Status:           status,
		RejectionReasons: rejectionReasons,
		Warnings:         warnings,
	}
}
