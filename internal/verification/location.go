package verification

import (
	"context"
	"fmt"

	"github.com/civicfix/verification-service/pkg/geo"
)

// locationConsistencyCheck compares the reference image's embedded GPS
// position against the reported issue location. Absent GPS is a warning, not
// a failure: most phone uploads strip location, and absence alone proves
// nothing.
type locationConsistencyCheck struct {
	radiusMeters float64
}

func (c *locationConsistencyCheck) Name() string { return CheckNameLocationConsistency }

func (c *locationConsistencyCheck) Run(_ context.Context, sub *Submission) CheckResult {
	asset := sub.Assets[0]
	if asset.Err != nil {
		return downloadFailedResult(asset)
	}

	if asset.Meta.GPS == nil {
		return CheckResult{
			Status:     CheckWarning,
			Confidence: 0.7,
			Details:    "No GPS data in image metadata. Location cannot be verified from EXIF.",
			Metadata: map[string]any{
				"has_exif_gps":      false,
				"reported_location": sub.Location,
			},
		}
	}

	exifLoc := *asset.Meta.GPS
	distance := geo.Distance(exifLoc, sub.Location)

	if distance <= c.radiusMeters {
		return CheckResult{
			Status:     CheckPassed,
			Confidence: 0.95,
			Details:    fmt.Sprintf("Location verified. EXIF GPS matches reported location (distance: %.1fm)", distance),
			Metadata: map[string]any{
				"has_exif_gps":      true,
				"exif_location":     exifLoc,
				"reported_location": sub.Location,
				"distance_meters":   distance,
			},
		}
	}

	return CheckResult{
		Status:     CheckFailed,
		Confidence: 0.3,
		Details: fmt.Sprintf("Location mismatch! EXIF GPS is %.1fm away from reported location. Acceptable radius: %.0fm",
			distance, c.radiusMeters),
		Metadata: map[string]any{
			"has_exif_gps":      true,
			"exif_location":     exifLoc,
			"reported_location": sub.Location,
			"distance_meters":   distance,
			"acceptable_radius": c.radiusMeters,
		},
	}
}
