package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/civicfix/verification-service/pkg/exifmeta"
	"github.com/civicfix/verification-service/pkg/geo"
)

func TestMetadataValidation(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-24 * time.Hour)
	future := now.Add(48 * time.Hour)
	ancient := now.AddDate(-6, 0, 0)
	gps := &geo.Coordinate{Latitude: 40.0, Longitude: -74.0}

	clean := exifmeta.Metadata{
		Present: true,
		Make:    "Apple",
		Model:   "iPhone 13",
		Taken:   &recent,
		GPS:     gps,
	}

	tests := []struct {
		name           string
		meta           exifmeta.Metadata
		wantStatus     CheckStatus
		wantConfidence float64
	}{
		{
			name:           "clean camera metadata passes at full confidence",
			meta:           clean,
			wantStatus:     CheckPassed,
			wantConfidence: 1.0,
		},
		{
			name:           "missing exif caps at 0.6",
			meta:           exifmeta.Metadata{},
			wantStatus:     CheckWarning,
			wantConfidence: 0.6,
		},
		{
			name: "future timestamp caps at 0.5",
			meta: exifmeta.Metadata{
				Present: true, Make: "Apple", Model: "iPhone 13",
				Taken: &future, GPS: gps,
			},
			wantStatus:     CheckWarning,
			wantConfidence: 0.5,
		},
		{
			name: "very old capture caps at 0.7",
			meta: exifmeta.Metadata{
				Present: true, Make: "Apple", Model: "iPhone 13",
				Taken: &ancient, GPS: gps,
			},
			wantStatus:     CheckPassed,
			wantConfidence: 0.7,
		},
		{
			name: "missing timestamp caps at 0.75",
			meta: exifmeta.Metadata{
				Present: true, Make: "Apple", Model: "iPhone 13", GPS: gps,
			},
			wantStatus:     CheckPassed,
			wantConfidence: 0.75,
		},
		{
			name: "missing gps caps at 0.8",
			meta: exifmeta.Metadata{
				Present: true, Make: "Apple", Model: "iPhone 13", Taken: &recent,
			},
			wantStatus:     CheckPassed,
			wantConfidence: 0.8,
		},
		{
			name: "editing software caps at 0.6",
			meta: exifmeta.Metadata{
				Present: true, Make: "Apple", Model: "iPhone 13",
				Software: "Adobe Photoshop 2025", Taken: &recent, GPS: gps,
			},
			wantStatus:     CheckWarning,
			wantConfidence: 0.6,
		},
		{
			name: "missing camera info caps at 0.7",
			meta: exifmeta.Metadata{
				Present: true, Taken: &recent, GPS: gps,
			},
			wantStatus:     CheckPassed,
			wantConfidence: 0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := &metadataValidationCheck{now: func() time.Time { return now }}
			sub := &Submission{Assets: []*ImageAsset{{Meta: tt.meta}}}

			result := check.Run(context.Background(), sub)

			assert.Equal(t, tt.wantStatus, result.Status)
			assert.InDelta(t, tt.wantConfidence, result.Confidence, 1e-9)
		})
	}
}

func TestMetadataValidationDownloadFailure(t *testing.T) {
	check := &metadataValidationCheck{}
	sub := &Submission{Assets: []*ImageAsset{{Err: assert.AnError}}}

	result := check.Run(context.Background(), sub)

	assert.Equal(t, CheckFailed, result.Status)
	assert.Zero(t, result.Confidence)
}
