package verification

import (
	"context"
	"fmt"
	"strings"
)

// ProvenanceSearcher answers whether an image already exists on the public
// internet. Implementations wrap an external reverse-image-search provider;
// each hit is a URL the image was found at.
type ProvenanceSearcher interface {
	Search(ctx context.Context, imageData []byte) ([]string, error)
}

// Stock photo hosts: a civic report backed by a stock image is reused
// evidence, not an original photo.
var stockPhotoSites = []string{"shutterstock", "getty", "istockphoto", "unsplash", "pexels"}

// internetSearchCheck flags submission images that already circulate online.
// It is optional and flag-gated; without a searcher it reports SKIPPED.
type internetSearchCheck struct {
	searcher ProvenanceSearcher
}

func (c *internetSearchCheck) Name() string { return CheckNameInternetSearch }

func (c *internetSearchCheck) Run(ctx context.Context, sub *Submission) CheckResult {
	if c.searcher == nil {
		return skippedResult("Reverse image search not configured")
	}

	asset := sub.Assets[0]
	if asset.Err != nil {
		return downloadFailedResult(asset)
	}

	matches, err := c.searcher.Search(ctx, asset.Data)
	if err != nil {
		return CheckResult{
			Status:     CheckFailed,
			Confidence: 0,
			Details:    fmt.Sprintf("Search error: %v", err),
		}
	}

	if len(matches) == 0 {
		return CheckResult{
			Status:     CheckPassed,
			Confidence: 0.9,
			Details:    "No matches found on the internet. Image appears original.",
			Metadata:   map[string]any{"matches_found": 0},
		}
	}

	var stockMatches []string
	for _, url := range matches {
		lower := strings.ToLower(url)
		for _, site := range stockPhotoSites {
			if strings.Contains(lower, site) {
				stockMatches = append(stockMatches, url)
				break
			}
		}
	}

	if len(stockMatches) > 0 {
		return CheckResult{
			Status:     CheckFailed,
			Confidence: 0.2,
			Details: fmt.Sprintf("Image found on stock photo sites (%d matches). This appears to be a reused stock image.",
				len(stockMatches)),
			Metadata: map[string]any{
				"matches_found": len(matches),
				"stock_matches": len(stockMatches),
				"sources":       firstN(stockMatches, 5),
			},
		}
	}

	return CheckResult{
		Status:     CheckWarning,
		Confidence: 0.5,
		Details:    fmt.Sprintf("Image found elsewhere online (%d matches). May be reused evidence.", len(matches)),
		Metadata: map[string]any{
			"matches_found": len(matches),
			"sources":       firstN(matches, 5),
		},
	}
}
