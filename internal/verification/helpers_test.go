package verification

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/civicfix/verification-service/internal/config"
	"github.com/civicfix/verification-service/internal/duplicate"
	"github.com/civicfix/verification-service/internal/fetch"
	"github.com/civicfix/verification-service/pkg/exifmeta"
	"github.com/civicfix/verification-service/pkg/geo"
)

func testConfig() *config.Config {
	return &config.Config{
		Verification: config.VerificationConfig{
			DuplicateThreshold:   0.85,
			LocationRadiusMeters: 100,
			AutoApproveThreshold: 0.9,
			AutoRejectThreshold:  0.3,
			DownloadTimeout:      5 * time.Second,
			MaxImageSizeMB:       10,
			MaxImagesPerRequest:  10,
		},
		Checks: config.ChecksConfig{
			FakeDetection:      true,
			DuplicateDetection: true,
			MetadataValidation: true,
			LocationValidation: true,
			CategoryValidation: true,
		},
	}
}

func newTestEngine(t *testing.T, cfg *config.Config, source fetch.Source) *Engine {
	t.Helper()
	index := duplicate.NewMemoryIndex(cfg.Verification.DuplicateThreshold)
	engine, err := NewEngine(context.Background(), cfg, source, index, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return engine
}

// gradientImage produces a deterministic non-uniform test image whose
// fingerprint is stable across runs.
func gradientImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / width),
				G: uint8((y * 255) / height),
				B: uint8(((x + y) * 255) / (width + height)),
				A: 255,
			})
		}
	}
	return img
}

func solidImage(width, height int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// cameraAsset mimics a genuine phone upload: camera info, a recent
// timestamp, and a GPS position.
func cameraAsset(img image.Image, gps geo.Coordinate, takenAgo time.Duration) *ImageAsset {
	taken := time.Now().Add(-takenAgo)
	return &ImageAsset{
		URL: fmt.Sprintf("https://img.example.com/%d.jpg", taken.UnixNano()),
		Img: img,
		Meta: exifmeta.Metadata{
			Present: true,
			Make:    "Apple",
			Model:   "iPhone 13",
			Taken:   &taken,
			GPS:     &gps,
		},
	}
}
