package verification

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicfix/verification-service/internal/config"
	"github.com/civicfix/verification-service/internal/fetch"
	"github.com/civicfix/verification-service/pkg/geo"
)

type stubSource struct{ err error }

func (s stubSource) Fetch(context.Context, string) ([]byte, error) {
	return nil, s.err
}

// evaluate runs the check pipeline over pre-built assets, bypassing download
// and EXIF extraction so tests can supply GPS metadata directly.
func evaluate(e *Engine, sub *Submission) Verdict {
	results := e.runChecks(context.Background(), sub)
	return aggregate(results,
		e.cfg.Verification.AutoApproveThreshold,
		e.cfg.Verification.AutoRejectThreshold)
}

func TestEngineApprovesGenuineSubmission(t *testing.T) {
	engine := newTestEngine(t, testConfig(), stubSource{})
	location := geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

	sub := &Submission{
		IssueID:     101,
		Category:    "Road Infrastructure",
		Location:    location,
		Description: "Large pothole in the road, cracked asphalt on the street near the traffic intersection",
		Assets:      []*ImageAsset{cameraAsset(gradientImage(640, 480), location, time.Hour)},
	}

	verdict := evaluate(engine, sub)

	assert.Equal(t, StatusApproved, verdict.Status)
	assert.GreaterOrEqual(t, verdict.ConfidenceScore, 0.9)
	assert.Empty(t, verdict.RejectionReasons)
}

func TestEngineTerseDescriptionLandsInReview(t *testing.T) {
	// An otherwise clean submission with a terse description scores low on
	// category relevance, dragging the mean below the approval threshold.
	engine := newTestEngine(t, testConfig(), stubSource{})
	location := geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

	sub := &Submission{
		IssueID:     103,
		Category:    "Road Infrastructure",
		Location:    location,
		Description: "large pothole on main road",
		Assets:      []*ImageAsset{cameraAsset(gradientImage(640, 480), location, time.Hour)},
	}

	verdict := evaluate(engine, sub)

	assert.Equal(t, StatusNeedsReview, verdict.Status)
	assert.Less(t, verdict.ConfidenceScore, 0.9)
	assert.Greater(t, verdict.ConfidenceScore, 0.3)
}

func TestEngineRejectsLocationMismatch(t *testing.T) {
	engine := newTestEngine(t, testConfig(), stubSource{})
	reported := geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	// Image taken ~5km from the reported location.
	farAway := geo.Coordinate{Latitude: 40.7578, Longitude: -74.0060}

	sub := &Submission{
		IssueID:     102,
		Category:    "Road Infrastructure",
		Location:    reported,
		Description: "Large pothole in the road, cracked asphalt on the street",
		Assets:      []*ImageAsset{cameraAsset(gradientImage(640, 480), farAway, time.Hour)},
	}

	verdict := evaluate(engine, sub)

	assert.Equal(t, StatusRejected, verdict.Status)
	require.NotEmpty(t, verdict.RejectionReasons)
	assert.Contains(t, verdict.RejectionReasons[0], "Location mismatch")
}

func TestEngineRejectsDuplicateAcrossIssues(t *testing.T) {
	engine := newTestEngine(t, testConfig(), stubSource{})
	location := geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	img := gradientImage(640, 480)

	first := &Submission{
		IssueID:     201,
		Category:    "Road Infrastructure",
		Location:    location,
		Description: "pothole in the road",
		Assets:      []*ImageAsset{cameraAsset(img, location, time.Hour)},
	}
	verdict := evaluate(engine, first)
	assert.NotEqual(t, StatusRejected, verdict.Status)

	second := &Submission{
		IssueID:     202,
		Category:    "Road Infrastructure",
		Location:    location,
		Description: "pothole in the road",
		Assets:      []*ImageAsset{cameraAsset(img, location, time.Hour)},
	}
	verdict = evaluate(engine, second)

	assert.Equal(t, StatusRejected, verdict.Status)
	require.NotEmpty(t, verdict.RejectionReasons)
	assert.Contains(t, verdict.RejectionReasons[0], "Duplicate image detected")
}

func TestEngineDisabledChecksAreSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Checks.FakeDetection = false
	cfg.Checks.DuplicateDetection = false
	engine := newTestEngine(t, cfg, stubSource{})

	location := geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	sub := &Submission{
		IssueID:     301,
		Category:    "Road Infrastructure",
		Location:    location,
		Description: "pothole in the road",
		Assets:      []*ImageAsset{cameraAsset(gradientImage(640, 480), location, time.Hour)},
	}

	results := engine.runChecks(context.Background(), sub)
	checks := groupChecks(results)

	assert.Equal(t, CheckSkipped, checks.FakeDetection.Status)
	assert.Equal(t, CheckSkipped, checks.DuplicateDetection.Status)
	assert.Equal(t, CheckPassed, checks.LocationConsistency.Status)
	assert.Nil(t, checks.InternetSearch)
}

func TestEngineAllChecksDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Checks = config.ChecksConfig{}
	engine := newTestEngine(t, cfg, stubSource{})

	verdict := evaluate(engine, &Submission{IssueID: 302, Assets: []*ImageAsset{{}}})

	assert.Equal(t, StatusNeedsReview, verdict.Status)
	assert.Equal(t, 0.5, verdict.ConfidenceScore)
	assert.Equal(t, []string{"No checks performed"}, verdict.RejectionReasons)
}

func TestEngineRecoversFromPanickingCheck(t *testing.T) {
	engine := newTestEngine(t, testConfig(), stubSource{})

	// An empty asset slice makes every per-image check panic on Assets[0];
	// the engine converts each panic into a failed result.
	sub := &Submission{IssueID: 303, Category: "Road Infrastructure", Assets: nil}

	results := engine.runChecks(context.Background(), sub)
	checks := groupChecks(results)

	assert.Equal(t, CheckFailed, checks.FakeDetection.Status)
	assert.Contains(t, checks.FakeDetection.Details, "Check error")
	// Checks that never touch assets still complete.
	assert.Equal(t, CheckWarning, checks.CategoryRelevance.Status)
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestVerifySubmissionEndToEnd(t *testing.T) {
	imageBytes := encodePNG(t, gradientImage(640, 480))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageBytes)
	}))
	defer server.Close()

	engine := newTestEngine(t, testConfig(), fetch.NewHTTPSource(5*time.Second, 10<<20))

	resp, err := engine.VerifySubmission(context.Background(), &InitialVerificationRequest{
		IssueID:     401,
		ImageURLs:   []string{server.URL + "/issue.png"},
		Category:    "Road Infrastructure",
		Location:    geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060},
		Description: "pothole in the road",
	})
	require.NoError(t, err)

	// A PNG carries no EXIF, so metadata and location degrade to warnings
	// and the verdict lands in the review band.
	assert.Equal(t, StatusNeedsReview, resp.Status)
	assert.Equal(t, CheckWarning, resp.Checks.MetadataValidation.Status)
	assert.Equal(t, CheckWarning, resp.Checks.LocationConsistency.Status)
	assert.NotEmpty(t, resp.Warnings)
	assert.GreaterOrEqual(t, resp.ProcessingTimeMS, int64(0))

	stats := engine.Stats()
	assert.Equal(t, int64(1), stats.TotalVerifications)
	assert.Equal(t, int64(1), stats.Pending)
}

func TestVerifySubmissionDownloadFailure(t *testing.T) {
	engine := newTestEngine(t, testConfig(), stubSource{err: fmt.Errorf("connection refused")})

	resp, err := engine.VerifySubmission(context.Background(), &InitialVerificationRequest{
		IssueID:     402,
		ImageURLs:   []string{"https://img.example.com/gone.jpg"},
		Category:    "Road Infrastructure",
		Location:    geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060},
		Description: "pothole",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusRejected, resp.Status)
	assert.NotEmpty(t, resp.RejectionReasons)
}

func TestVerifySubmissionRequestValidation(t *testing.T) {
	engine := newTestEngine(t, testConfig(), stubSource{})
	location := geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

	t.Run("too many images", func(t *testing.T) {
		urls := make([]string, 11)
		for i := range urls {
			urls[i] = fmt.Sprintf("https://img.example.com/%d.jpg", i)
		}
		_, err := engine.VerifySubmission(context.Background(), &InitialVerificationRequest{
			IssueID: 403, ImageURLs: urls, Category: "Road Infrastructure", Location: location,
		})
		assert.ErrorContains(t, err, "too many images")
	})

	t.Run("no images", func(t *testing.T) {
		_, err := engine.VerifySubmission(context.Background(), &InitialVerificationRequest{
			IssueID: 404, Category: "Road Infrastructure", Location: location,
		})
		assert.Error(t, err)
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		_, err := engine.VerifySubmission(context.Background(), &InitialVerificationRequest{
			IssueID:   405,
			ImageURLs: []string{"https://img.example.com/a.jpg"},
			Category:  "Road Infrastructure",
			Location:  geo.Coordinate{Latitude: 95, Longitude: 0},
		})
		assert.ErrorContains(t, err, "invalid location")
	})
}

func TestCrossCheckEndToEnd(t *testing.T) {
	beforeBytes := encodePNG(t, solidImage(320, 240, 60))
	afterBytes := encodePNG(t, solidImage(320, 240, 180))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.URL.Path == "/before.png" {
			w.Write(beforeBytes)
			return
		}
		w.Write(afterBytes)
	}))
	defer server.Close()

	engine := newTestEngine(t, testConfig(), fetch.NewHTTPSource(5*time.Second, 10<<20))

	resp, err := engine.CrossCheck(context.Background(), &CrossVerificationRequest{
		IssueID:          501,
		CitizenImages:    []string{server.URL + "/before.png"},
		GovernmentImages: []string{server.URL + "/after.png"},
		Location:         geo.Coordinate{Latitude: 40.7128, Longitude: -74.0060},
		IssueCategory:    "Road Infrastructure",
	})
	require.NoError(t, err)

	assert.True(t, resp.WorkCompleted)
	// No GPS in a PNG, so location is not contradicted.
	assert.True(t, resp.SameLocation)
	assert.NotEqual(t, StatusRejected, resp.Status)
	assert.Contains(t, resp.Notes, "work appears completed")
}
