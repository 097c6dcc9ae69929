package verification

import (
	"context"
	"fmt"
	"image"

	// Registered decoders for image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/civicfix/verification-service/pkg/exifmeta"
	"github.com/civicfix/verification-service/pkg/geo"
)

// ImageAsset is one submission image, downloaded and decoded once and shared
// read-only by all checks. A failed download or decode leaves Err set; checks
// that need the asset degrade instead of aborting siblings.
type ImageAsset struct {
	URL  string
	Data []byte
	Img  image.Image
	Meta exifmeta.Metadata
	Err  error
}

// Submission is the unit of work for one verification pass.
type Submission struct {
	IssueID     int64
	Category    string
	Location    geo.Coordinate
	Description string
	Assets      []*ImageAsset
}

// Check is one independent signal evaluator. Implementations are pure over
// their inputs except for the duplicate index, which owns its own locking.
type Check interface {
	Name() string
	Run(ctx context.Context, sub *Submission) CheckResult
}

// worst returns the lowest-confidence result of a per-image check; when a
// submission has several images, the engine scores the check by its weakest
// image.
func worst(results []CheckResult) CheckResult {
	w := results[0]
	for _, r := range results[1:] {
		if r.Confidence < w.Confidence {
			w = r
		}
	}
	return w
}

func skippedResult(detail string) CheckResult {
	return CheckResult{Status: CheckSkipped, Confidence: 0, Details: detail}
}

func downloadFailedResult(asset *ImageAsset) CheckResult {
	return CheckResult{
		Status:     CheckFailed,
		Confidence: 0,
		Details:    fmt.Sprintf("Failed to download image: %v", asset.Err),
	}
}
