package verification

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/civicfix/verification-service/internal/config"
	"github.com/civicfix/verification-service/internal/duplicate"
	"github.com/civicfix/verification-service/internal/fetch"
	"github.com/civicfix/verification-service/pkg/exifmeta"
)

// configuredCheck pairs a check with its enable flag. Disabled checks
// synthesize a SKIPPED result so the response always reports the full check
// set.
type configuredCheck struct {
	check          Check
	enabled        bool
	disabledDetail string
}

// Engine runs the configured checks over one submission and folds the
// results into a verdict. Configuration is an immutable snapshot taken at
// construction.
type Engine struct {
	cfg        *config.Config
	source     fetch.Source
	comparator *Comparator
	checks     []configuredCheck
	repo       Repository
	stats      *Stats
	logger     *zap.Logger
}

// EngineOption is a functional option for Engine construction.
type EngineOption func(*Engine)

// WithProvenanceSearcher wires a reverse-image-search provider into the
// internet search check.
func WithProvenanceSearcher(s ProvenanceSearcher) EngineOption {
	return func(e *Engine) {
		for i, cc := range e.checks {
			if ic, ok := cc.check.(*internetSearchCheck); ok {
				ic.searcher = s
				e.checks[i] = cc
			}
		}
	}
}

// WithAuthenticityAnalyzer overrides the analyzer behind the fake-detection
// check.
func WithAuthenticityAnalyzer(a authenticityAnalyzer) EngineOption {
	return func(e *Engine) {
		for i, cc := range e.checks {
			if fc, ok := cc.check.(*fakeDetectionCheck); ok {
				fc.analyzer = a
				e.checks[i] = cc
			}
		}
	}
}

// NewEngine builds the decision engine. Invalid threshold configuration is
// fatal here, before any verification runs.
func NewEngine(ctx context.Context, cfg *config.Config, source fetch.Source, index duplicate.Index, repo Repository, logger *zap.Logger, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var analyzer authenticityAnalyzer = heuristicAuthenticity{}
	if cfg.AI.GeminiAPIKey != "" {
		modelBacked, err := newGeminiAuthenticity(ctx, cfg.AI.GeminiAPIKey, cfg.AI.GeminiModel, logger)
		if err != nil {
			return nil, err
		}
		analyzer = modelBacked
		logger.Info("Using model-backed authenticity analyzer", zap.String("model", cfg.AI.GeminiModel))
	}

	e := &Engine{
		cfg:        cfg,
		source:     source,
		comparator: NewComparator(cfg.Verification.LocationRadiusMeters, logger),
		repo:       repo,
		stats:      NewStats(),
		logger:     logger,
		checks: []configuredCheck{
			{&fakeDetectionCheck{analyzer: analyzer}, cfg.Checks.FakeDetection, "Fake detection disabled"},
			{&duplicateDetectionCheck{index: index}, cfg.Checks.DuplicateDetection, "Duplicate detection disabled"},
			{&metadataValidationCheck{}, cfg.Checks.MetadataValidation, "Metadata validation disabled"},
			{&locationConsistencyCheck{radiusMeters: cfg.Verification.LocationRadiusMeters}, cfg.Checks.LocationValidation, "Location validation disabled"},
			{categoryRelevanceCheck{}, cfg.Checks.CategoryValidation, "Category validation disabled"},
			{&internetSearchCheck{}, cfg.Checks.InternetSearch, "Internet search disabled"},
		},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// VerifySubmission screens one reported issue and returns the verdict.
func (e *Engine) VerifySubmission(ctx context.Context, req *InitialVerificationRequest) (*InitialVerificationResponse, error) {
	if err := e.validateInitialRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	e.logger.Info("Starting initial verification",
		zap.Int64("issue_id", req.IssueID),
		zap.Int("images", len(req.ImageURLs)))

	sub := &Submission{
		IssueID:     req.IssueID,
		Category:    req.Category,
		Location:    req.Location,
		Description: req.Description,
		Assets:      e.loadAssets(ctx, req.ImageURLs),
	}

	results := e.runChecks(ctx, sub)
	verdict := aggregate(results, e.cfg.Verification.AutoApproveThreshold, e.cfg.Verification.AutoRejectThreshold)
	took := time.Since(start)

	resp := &InitialVerificationResponse{
		IssueID:          req.IssueID,
		Status:           verdict.Status,
		ConfidenceScore:  verdict.ConfidenceScore,
		Checks:           groupChecks(results),
		RejectionReasons: verdict.RejectionReasons,
		Warnings:         verdict.Warnings,
		ProcessingTimeMS: took.Milliseconds(),
		Timestamp:        time.Now().UTC(),
	}

	e.persistInitial(ctx, resp)
	e.stats.Record(verdict.Status, verdict.ConfidenceScore, took)

	e.logger.Info("Verification completed",
		zap.Int64("issue_id", req.IssueID),
		zap.String("status", string(verdict.Status)),
		zap.Float64("confidence", verdict.ConfidenceScore),
		zap.Duration("took", took))

	return resp, nil
}

// CrossCheck compares a remediation claim's before/after image sets.
func (e *Engine) CrossCheck(ctx context.Context, req *CrossVerificationRequest) (*CrossVerificationResponse, error) {
	if !req.Location.Valid() {
		return nil, fmt.Errorf("invalid location: %+v", req.Location)
	}

	start := time.Now()
	e.logger.Info("Starting cross-verification", zap.Int64("issue_id", req.IssueID))

	before := e.loadAssets(ctx, req.CitizenImages)
	after := e.loadAssets(ctx, req.GovernmentImages)

	result := e.comparator.Compare(ctx, before, after, req.IssueCategory)

	v := e.cfg.Verification
	var status VerificationStatus
	switch {
	// A location mismatch is disqualifying no matter how confident the
	// rest of the comparison looks.
	case !result.SameLocation || result.Confidence <= v.AutoRejectThreshold:
		status = StatusRejected
	case result.Confidence >= v.AutoApproveThreshold && result.WorkAppearsCompleted:
		status = StatusApproved
	default:
		status = StatusNeedsReview
	}

	took := time.Since(start)
	resp := &CrossVerificationResponse{
		IssueID:              req.IssueID,
		Status:               status,
		ConfidenceScore:      result.Confidence,
		SameLocation:         result.SameLocation,
		WorkCompleted:        result.WorkAppearsCompleted,
		ImageSimilarityScore: result.SimilarityScore,
		Notes:                result.Notes,
		Warnings:             result.Warnings,
		ProcessingTimeMS:     took.Milliseconds(),
		Timestamp:            time.Now().UTC(),
	}

	e.persistCross(ctx, resp)

	e.logger.Info("Cross-verification completed",
		zap.Int64("issue_id", req.IssueID),
		zap.String("status", string(status)),
		zap.Float64("confidence", result.Confidence))

	return resp, nil
}

// GetStatus returns the latest persisted verification for an issue.
func (e *Engine) GetStatus(ctx context.Context, issueID int64) (*StatusResponse, error) {
	if e.repo == nil {
		return nil, ErrNotFound
	}
	rec, err := e.repo.GetLatestByIssueID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{
		IssueID:          rec.IssueID,
		VerificationType: rec.VerificationType,
		Status:           rec.Status,
		ConfidenceScore:  rec.ConfidenceScore,
		CreatedAt:        rec.CreatedAt,
		ChecksPerformed:  rec.ChecksPerformed,
	}, nil
}

// Stats reports service activity counters.
func (e *Engine) Stats() StatsResponse {
	return e.stats.Snapshot()
}

func (e *Engine) validateInitialRequest(req *InitialVerificationRequest) error {
	if len(req.ImageURLs) == 0 {
		return fmt.Errorf("at least one image URL is required")
	}
	if max := e.cfg.Verification.MaxImagesPerRequest; len(req.ImageURLs) > max {
		return fmt.Errorf("too many images: %d (limit %d)", len(req.ImageURLs), max)
	}
	if !req.Location.Valid() {
		return fmt.Errorf("invalid location: %+v", req.Location)
	}
	return nil
}

// loadAssets downloads and decodes all images concurrently. Each asset
// carries its own failure; one bad download never blocks the others.
func (e *Engine) loadAssets(ctx context.Context, urls []string) []*ImageAsset {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Verification.DownloadTimeout)
	defer cancel()

	assets := make([]*ImageAsset, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			assets[i] = e.loadAsset(ctx, url)
		}(i, url)
	}
	wg.Wait()

	return assets
}

func (e *Engine) loadAsset(ctx context.Context, url string) *ImageAsset {
	asset := &ImageAsset{URL: url}

	data, err := e.source.Fetch(ctx, url)
	if err != nil {
		asset.Err = err
		e.logger.Warn("Image download failed", zap.String("url", url), zap.Error(err))
		return asset
	}
	asset.Data = data

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		asset.Err = &fetch.DecodeError{URL: url, Err: err}
		e.logger.Warn("Image decode failed", zap.String("url", url), zap.Error(err))
		return asset
	}
	asset.Img = img
	asset.Meta = exifmeta.Extract(data)

	return asset
}

// runChecks fans the enabled checks out over goroutines and joins all results
// before aggregating. A panicking check is converted into a FAILED result at
// the check boundary.
func (e *Engine) runChecks(ctx context.Context, sub *Submission) []namedResult {
	results := make([]namedResult, len(e.checks))

	var wg sync.WaitGroup
	for i, cc := range e.checks {
		results[i].name = cc.check.Name()
		if !cc.enabled {
			results[i].result = skippedResult(cc.disabledDetail)
			continue
		}

		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			results[i].result = e.runOne(ctx, c, sub)
		}(i, cc.check)
	}
	wg.Wait()

	return results
}

func (e *Engine) runOne(ctx context.Context, c Check, sub *Submission) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Check panicked",
				zap.String("check", c.Name()),
				zap.Any("panic", r))
			result = CheckResult{
				Status:     CheckFailed,
				Confidence: 0,
				Details:    fmt.Sprintf("Check error: %v", r),
			}
		}
	}()
	return c.Run(ctx, sub)
}

func groupChecks(results []namedResult) VerificationChecks {
	var checks VerificationChecks
	for _, r := range results {
		switch r.name {
		case CheckNameFakeDetection:
			checks.FakeDetection = r.result
		case CheckNameDuplicateDetection:
			checks.DuplicateDetection = r.result
		case CheckNameMetadataValidation:
			checks.MetadataValidation = r.result
		case CheckNameLocationConsistency:
			checks.LocationConsistency = r.result
		case CheckNameCategoryRelevance:
			checks.CategoryRelevance = r.result
		case CheckNameInternetSearch:
			// Optional check: omitted from the response when it did not run.
			if r.result.Status != CheckSkipped {
				res := r.result
				checks.InternetSearch = &res
			}
		}
	}
	return checks
}

// Persistence failures are logged, not surfaced: a computed verdict is not
// voided by a write error.
func (e *Engine) persistInitial(ctx context.Context, resp *InitialVerificationResponse) {
	if e.repo == nil {
		return
	}

	rec := NewRecord(resp.IssueID, TypeInitial, resp.Status, resp.ConfidenceScore, resp.RejectionReasons, map[string]any{
		"fake_detection":       resp.Checks.FakeDetection,
		"duplicate_detection":  resp.Checks.DuplicateDetection,
		"metadata_validation":  resp.Checks.MetadataValidation,
		"location_consistency": resp.Checks.LocationConsistency,
		"category_relevance":   resp.Checks.CategoryRelevance,
	})
	if err := e.repo.SaveVerification(ctx, rec); err != nil {
		e.logger.Error("Failed to save verification", zap.Int64("issue_id", resp.IssueID), zap.Error(err))
		return
	}

	event := &TimelineEvent{
		IssueID:     resp.IssueID,
		EventType:   "AI_VERIFICATION_COMPLETED",
		ActorType:   "AI",
		Description: fmt.Sprintf("AI verification completed with status: %s", resp.Status),
		Metadata: map[string]any{
			"confidence_score":   resp.ConfidenceScore,
			"status":             resp.Status,
			"processing_time_ms": resp.ProcessingTimeMS,
		},
	}
	if err := e.repo.CreateTimelineEvent(ctx, event); err != nil {
		e.logger.Error("Failed to create timeline event", zap.Int64("issue_id", resp.IssueID), zap.Error(err))
	}
}

func (e *Engine) persistCross(ctx context.Context, resp *CrossVerificationResponse) {
	if e.repo == nil {
		return
	}

	rec := NewRecord(resp.IssueID, TypeCrossVerification, resp.Status, resp.ConfidenceScore, resp.Warnings, map[string]any{
		"same_location":    resp.SameLocation,
		"work_completed":   resp.WorkCompleted,
		"similarity_score": resp.ImageSimilarityScore,
	})
	if err := e.repo.SaveVerification(ctx, rec); err != nil {
		e.logger.Error("Failed to save cross-verification", zap.Int64("issue_id", resp.IssueID), zap.Error(err))
		return
	}

	event := &TimelineEvent{
		IssueID:     resp.IssueID,
		EventType:   "AI_CROSS_VERIFICATION_COMPLETED",
		ActorType:   "AI",
		Description: fmt.Sprintf("Cross-verification completed: %s", resp.Notes),
		Metadata: map[string]any{
			"confidence":     resp.ConfidenceScore,
			"status":         resp.Status,
			"work_completed": resp.WorkCompleted,
		},
	}
	if err := e.repo.CreateTimelineEvent(ctx, event); err != nil {
		e.logger.Error("Failed to create timeline event", zap.Int64("issue_id", resp.IssueID), zap.Error(err))
	}
}
