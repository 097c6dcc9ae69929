package verification

import (
	"context"
	"fmt"
	"strings"
)

// authenticityAnalyzer scores a single image for signs of AI generation or
// manipulation. The heuristic and model-backed variants implement the same
// capability; the engine selects one at construction.
type authenticityAnalyzer interface {
	Analyze(ctx context.Context, asset *ImageAsset) CheckResult
}

// fakeDetectionCheck runs the configured analyzer over every submission image
// and reports the weakest result.
type fakeDetectionCheck struct {
	analyzer authenticityAnalyzer
}

func (c *fakeDetectionCheck) Name() string { return CheckNameFakeDetection }

func (c *fakeDetectionCheck) Run(ctx context.Context, sub *Submission) CheckResult {
	results := make([]CheckResult, 0, len(sub.Assets))
	for _, asset := range sub.Assets {
		if asset.Err != nil {
			results = append(results, downloadFailedResult(asset))
			continue
		}
		results = append(results, c.analyzer.Analyze(ctx, asset))
	}
	return worst(results)
}

// heuristicAuthenticity flags images whose shape and metadata match the
// typical output of image generators. It is deliberately conservative: the
// signals are circumstantial, so the worst it produces is a warning.
type heuristicAuthenticity struct{}

// Output sizes commonly produced by image generators.
var generatorDimensions = map[[2]int]bool{
	{512, 512}:   true,
	{768, 768}:   true,
	{1024, 1024}: true,
	{1024, 1792}: true,
	{1792, 1024}: true,
}

var generatorSquareSides = map[int]bool{256: true, 512: true, 768: true, 1024: true, 2048: true}

func (heuristicAuthenticity) Analyze(_ context.Context, asset *ImageAsset) CheckResult {
	bounds := asset.Img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	suspicious := false
	confidence := 0.95
	var findings []string

	if generatorDimensions[[2]int{width, height}] {
		suspicious = true
		confidence = 0.7
		findings = append(findings, fmt.Sprintf("Image dimensions (%dx%d) match common AI generation sizes", width, height))
	}

	if width == height && generatorSquareSides[width] {
		suspicious = true
		confidence = min(confidence, 0.75)
		findings = append(findings, "Perfect square dimensions suggest AI generation")
	}

	if !asset.Meta.Present {
		confidence = min(confidence, 0.85)
		findings = append(findings, "Missing EXIF data (common in AI-generated images)")
	}

	if suspicious && confidence < 0.8 {
		return CheckResult{
			Status:     CheckWarning,
			Confidence: confidence,
			Details:    "Image shows characteristics of AI generation. " + strings.Join(findings, "; "),
			Metadata: map[string]any{
				"dimensions": fmt.Sprintf("%dx%d", width, height),
				"has_exif":   asset.Meta.Present,
			},
		}
	}

	return CheckResult{
		Status:     CheckPassed,
		Confidence: 0.95,
		Details:    "Image appears to be authentic",
		Metadata: map[string]any{
			"dimensions": fmt.Sprintf("%dx%d", width, height),
			"has_exif":   asset.Meta.Present,
		},
	}
}
