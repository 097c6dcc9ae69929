package verification

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Capture timestamps older than this are suspicious for a freshly reported
// issue.
const maxImageAgeDays = 1825 // 5 years

// metadataValidationCheck scores the plausibility of the reference image's
// capture metadata. Each rule independently caps the confidence; one red flag
// caps the ceiling no matter how clean the rest looks, which is why the rules
// combine by minimum rather than average.
type metadataValidationCheck struct {
	now func() time.Time
}

func (c *metadataValidationCheck) Name() string { return CheckNameMetadataValidation }

func (c *metadataValidationCheck) Run(_ context.Context, sub *Submission) CheckResult {
	asset := sub.Assets[0]
	if asset.Err != nil {
		return downloadFailedResult(asset)
	}

	now := time.Now()
	if c.now != nil {
		now = c.now()
	}

	meta := asset.Meta
	confidence := 1.0
	hasIssues := false
	var findings []string

	if !meta.Present {
		findings = append(findings, "No EXIF data found (common in screenshots or edited images)")
		confidence = 0.6
		hasIssues = true
	}

	if !meta.HasCameraInfo() {
		findings = append(findings, "Missing camera make/model information")
		confidence = min(confidence, 0.7)
	}

	if meta.Taken != nil {
		if meta.Taken.After(now) {
			findings = append(findings, "Image timestamp is in the future")
			confidence = min(confidence, 0.5)
			hasIssues = true
		}
		if ageDays := int(now.Sub(*meta.Taken).Hours() / 24); ageDays > maxImageAgeDays {
			findings = append(findings, fmt.Sprintf("Image is very old (%d days)", ageDays))
			confidence = min(confidence, 0.7)
		}
	} else {
		findings = append(findings, "No timestamp information found")
		confidence = min(confidence, 0.75)
	}

	if meta.GPS == nil {
		findings = append(findings, "No GPS data in EXIF (location cannot be verified from metadata)")
		confidence = min(confidence, 0.8)
	}

	if tool := meta.EditedWith(); tool != "" {
		findings = append(findings, fmt.Sprintf("Image edited with: %s", tool))
		confidence = min(confidence, 0.6)
		hasIssues = true
	}

	status := CheckPassed
	if hasIssues || confidence < 0.7 {
		status = CheckWarning
	}

	details := "Metadata appears valid"
	if len(findings) > 0 {
		details = "Metadata validation complete. " + strings.Join(findings, "; ")
	}

	return CheckResult{
		Status:     status,
		Confidence: confidence,
		Details:    details,
		Metadata: map[string]any{
			"has_exif":        meta.Present,
			"has_gps":         meta.GPS != nil,
			"has_camera_info": meta.HasCameraInfo(),
			"has_timestamp":   meta.Taken != nil,
			"findings_count":  len(findings),
		},
	}
}
