package verification

import (
	"context"
	"fmt"

	"github.com/civicfix/verification-service/internal/duplicate"
	"github.com/civicfix/verification-service/pkg/phash"
)

// duplicateDetectionCheck screens every submission image against the
// fingerprint index. The index owns the check-then-insert critical section;
// this check only computes fingerprints and interprets matches.
type duplicateDetectionCheck struct {
	index duplicate.Index
}

func (c *duplicateDetectionCheck) Name() string { return CheckNameDuplicateDetection }

func (c *duplicateDetectionCheck) Run(ctx context.Context, sub *Submission) CheckResult {
	results := make([]CheckResult, 0, len(sub.Assets))
	for _, asset := range sub.Assets {
		if asset.Err != nil {
			results = append(results, downloadFailedResult(asset))
			continue
		}
		results = append(results, c.screen(ctx, asset, sub.IssueID))
	}
	return worst(results)
}

func (c *duplicateDetectionCheck) screen(ctx context.Context, asset *ImageAsset, issueID int64) CheckResult {
	fp, err := phash.Compute(asset.Img)
	if err != nil {
		return CheckResult{
			Status:     CheckFailed,
			Confidence: 0,
			Details:    fmt.Sprintf("Detection error: %v", err),
		}
	}

	match, err := c.index.CheckAndInsert(ctx, fp, issueID)
	if err != nil {
		return CheckResult{
			Status:     CheckFailed,
			Confidence: 0,
			Details:    fmt.Sprintf("Detection error: %v", err),
		}
	}

	if match.Found {
		return CheckResult{
			Status:     CheckFailed,
			Confidence: match.Similarity,
			Details: fmt.Sprintf("Duplicate image detected (similarity: %.1f%%). Previously used in issue #%d",
				match.Similarity*100, match.IssueID),
			Metadata: map[string]any{
				"duplicate_issue_id": match.IssueID,
				"similarity_score":   match.Similarity,
				"hash":               fp.String(),
			},
		}
	}

	return CheckResult{
		Status:     CheckPassed,
		Confidence: 0.95,
		Details:    "No duplicate detected",
		Metadata:   map[string]any{"hash": fp.String()},
	}
}
