package verification

import (
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/civicfix/verification-service/pkg/geo"
	"github.com/civicfix/verification-service/pkg/phash"
)

const (
	// Comparison frame for the work-completion heuristic.
	compareSide = 256

	// Mean per-pixel grayscale delta above which the scene is considered
	// visually changed.
	pixelDiffThreshold = 20.0

	// Fingerprint similarity band consistent with genuine remediation: same
	// scene, visibly changed. Above the band the images are near-identical,
	// below it they likely show different places.
	similarityBandLow  = 0.3
	similarityBandHigh = 0.8
)

// Comparator cross-verifies a remediation claim: citizen "before" images
// against government "after" images. Its confidence is a weighted blend of
// location agreement, fingerprint similarity, and visual change.
type Comparator struct {
	radiusMeters float64
	logger       *zap.Logger
}

func NewComparator(radiusMeters float64, logger *zap.Logger) *Comparator {
	return &Comparator{radiusMeters: radiusMeters, logger: logger}
}

// Compare runs the full before/after comparison over the reference image of
// each set. On unusable inputs it returns the conservative zero verdict: the
// claim is neither confirmed nor contradicted, a human decides.
func (c *Comparator) Compare(ctx context.Context, before, after []*ImageAsset, category string) ComparisonResult {
	result := ComparisonResult{Warnings: []string{}}

	if len(before) == 0 || len(after) == 0 {
		result.Notes = "Missing before or after images"
		result.Warnings = append(result.Warnings, "Comparison requires at least one image on each side")
		return result
	}

	beforeRef, afterRef := before[0], after[0]
	if beforeRef.Err != nil || afterRef.Err != nil {
		result.Notes = "Could not load images for comparison"
		if beforeRef.Err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Before image unavailable: %v", beforeRef.Err))
		}
		if afterRef.Err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("After image unavailable: %v", afterRef.Err))
		}
		return result
	}

	var notes []string

	// The two photos are compared to each other, not to the reported pin:
	// an imprecise report must not sink a claim whose images agree. Field
	// crews shoot from wherever they parked, so the radius is doubled.
	same, distance, hasGPS := c.checkLocation(beforeRef, afterRef)
	result.SameLocation = same
	result.LocationDistanceMeters = distance
	switch {
	case !hasGPS:
		notes = append(notes, "GPS data missing from one or both images, location not verified")
		result.Warnings = append(result.Warnings, "Location could not be verified from image metadata")
	case same:
		notes = append(notes, fmt.Sprintf("Location verified (distance: %.1fm)", distance))
	default:
		notes = append(notes, fmt.Sprintf("Location mismatch (distance: %.1fm, allowed: %.0fm)", distance, 2*c.radiusMeters))
	}

	similarity, err := c.compareSimilarity(beforeRef.Img, afterRef.Img)
	if err != nil {
		c.logger.Warn("Fingerprint comparison failed", zap.Error(err))
		result.Warnings = append(result.Warnings, "Image similarity could not be computed")
	} else {
		result.SimilarityScore = similarity
		notes = append(notes, fmt.Sprintf("Image similarity: %.1f%%", similarity*100))
	}

	result.WorkAppearsCompleted = c.workCompleted(beforeRef.Img, afterRef.Img)
	if result.WorkAppearsCompleted {
		notes = append(notes, "Visual changes detected - work appears completed")
	} else {
		notes = append(notes, "No significant visual changes detected")
		result.Warnings = append(result.Warnings, "Before and after images look nearly identical")
	}

	if category != "" {
		notes = append(notes, fmt.Sprintf("Category: %s", category))
	}

	result.Confidence = blendConfidence(result.SameLocation, result.SimilarityScore, result.WorkAppearsCompleted)
	result.Notes = strings.Join(notes, " | ")

	return result
}

// checkLocation validates the before image's EXIF GPS against the after
// image's at twice the normal radius. Missing GPS on either side does not
// count against the claim.
func (c *Comparator) checkLocation(before, after *ImageAsset) (same bool, distance float64, hasGPS bool) {
	if before.Meta.GPS == nil || after.Meta.GPS == nil {
		return true, 0, false
	}
	distance = geo.Distance(*before.Meta.GPS, *after.Meta.GPS)
	return distance <= 2*c.radiusMeters, distance, true
}

func (c *Comparator) compareSimilarity(before, after image.Image) (float64, error) {
	beforeHash, err := phash.Compute(before)
	if err != nil {
		return 0, err
	}
	afterHash, err := phash.Compute(after)
	if err != nil {
		return 0, err
	}
	return phash.Similarity(beforeHash, afterHash), nil
}

// workCompleted decides whether the scene visibly changed. Both images are
// normalized to the same grayscale frame and compared pixel-wise; remediation
// work moves the mean delta well past noise.
func (c *Comparator) workCompleted(before, after image.Image) bool {
	return meanPixelDiff(before, after) > pixelDiffThreshold
}

func meanPixelDiff(before, after image.Image) float64 {
	a := imaging.Grayscale(imaging.Resize(before, compareSide, compareSide, imaging.Lanczos))
	b := imaging.Grayscale(imaging.Resize(after, compareSide, compareSide, imaging.Lanczos))

	var total float64
	n := compareSide * compareSide
	for i := 0; i < n; i++ {
		// Grayscale NRGBA has equal channels; the red channel is the value.
		va := a.Pix[i*4]
		vb := b.Pix[i*4]
		if va > vb {
			total += float64(va - vb)
		} else {
			total += float64(vb - va)
		}
	}
	return total / float64(n)
}

// blendConfidence weighs the three comparison signals. Similarity in the
// expected band earns full credit; near-identical images earn reduced credit
// because an unchanged scene undercuts the completion claim.
func blendConfidence(sameLocation bool, similarity float64, workCompleted bool) float64 {
	confidence := 0.0
	if sameLocation {
		confidence += 0.4
	}
	switch {
	case similarity >= similarityBandLow && similarity <= similarityBandHigh:
		confidence += 0.3
	case similarity > similarityBandHigh:
		confidence += 0.15
	}
	if workCompleted {
		confidence += 0.3
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence
}
