package verification

import (
	"time"

	"github.com/civicfix/verification-service/pkg/geo"
)

// =====================================================
// Enums and Constants
// =====================================================

// VerificationStatus is the final outcome of a verification pass.
type VerificationStatus string

const (
	StatusPending     VerificationStatus = "PENDING"
	StatusApproved    VerificationStatus = "APPROVED"
	StatusRejected    VerificationStatus = "REJECTED"
	StatusNeedsReview VerificationStatus = "NEEDS_REVIEW"
)

// CheckStatus is the outcome of one individual check.
type CheckStatus string

const (
	CheckPassed  CheckStatus = "PASSED"
	CheckFailed  CheckStatus = "FAILED"
	CheckWarning CheckStatus = "WARNING"
	CheckSkipped CheckStatus = "SKIPPED"
)

// VerificationType distinguishes the two verification flows.
type VerificationType string

const (
	TypeInitial           VerificationType = "INITIAL"
	TypeCrossVerification VerificationType = "CROSS_VERIFICATION"
)

// Check names, fixed across responses and persisted records.
const (
	CheckNameFakeDetection       = "fake_detection"
	CheckNameDuplicateDetection  = "duplicate_detection"
	CheckNameMetadataValidation  = "metadata_validation"
	CheckNameLocationConsistency = "location_consistency"
	CheckNameCategoryRelevance   = "category_relevance"
	CheckNameInternetSearch      = "internet_search"
)

// =====================================================
// Check Results
// =====================================================

// CheckResult is the common currency of the decision engine: every check
// returns one, and results are only aggregated, never mutated.
type CheckResult struct {
	Status     CheckStatus    `json:"status"`
	Confidence float64        `json:"confidence"`
	Details    string         `json:"details"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// VerificationChecks groups the per-check results of an initial pass.
type VerificationChecks struct {
	FakeDetection       CheckResult  `json:"fake_detection"`
	DuplicateDetection  CheckResult  `json:"duplicate_detection"`
	MetadataValidation  CheckResult  `json:"metadata_validation"`
	LocationConsistency CheckResult  `json:"location_consistency"`
	CategoryRelevance   CheckResult  `json:"category_relevance"`
	InternetSearch      *CheckResult `json:"internet_search,omitempty"`
}

// Verdict is the aggregated outcome of a set of check results.
type Verdict struct {
	ConfidenceScore  float64            `json:"confidence_score"`
	Status           VerificationStatus `json:"status"`
	RejectionReasons []string           `json:"rejection_reasons"`
	Warnings         []string           `json:"warnings"`
}

// ComparisonResult is the output of the before/after comparator.
type ComparisonResult struct {
	SimilarityScore        float64  `json:"similarity_score"`
	SameLocation           bool     `json:"same_location"`
	LocationDistanceMeters float64  `json:"location_distance_meters"`
	WorkAppearsCompleted   bool     `json:"work_appears_completed"`
	Confidence             float64  `json:"confidence"`
	Notes                  string   `json:"notes"`
	Warnings               []string `json:"warnings"`
}

// =====================================================
// Requests
// =====================================================

// InitialVerificationRequest is a newly reported issue to screen.
type InitialVerificationRequest struct {
	IssueID     int64          `json:"issue_id" binding:"required"`
	ImageURLs   []string       `json:"image_urls" binding:"required,min=1"`
	Category    string         `json:"category" binding:"required"`
	Location    geo.Coordinate `json:"location"`
	Description string         `json:"description"`
}

// CrossVerificationRequest asks whether a remediation claim is genuine:
// citizen "before" images against government "after" images.
type CrossVerificationRequest struct {
	IssueID          int64          `json:"issue_id" binding:"required"`
	CitizenImages    []string       `json:"citizen_images" binding:"required,min=1"`
	GovernmentImages []string       `json:"government_images" binding:"required,min=1"`
	Location         geo.Coordinate `json:"location"`
	IssueCategory    string         `json:"issue_category"`
}

// =====================================================
// Responses
// =====================================================

// InitialVerificationResponse reports the outcome of an initial pass.
type InitialVerificationResponse struct {
	IssueID          int64              `json:"issue_id"`
	Status           VerificationStatus `json:"status"`
	ConfidenceScore  float64            `json:"confidence_score"`
	Checks           VerificationChecks `json:"checks"`
	RejectionReasons []string           `json:"rejection_reasons"`
	Warnings         []string           `json:"warnings"`
	ProcessingTimeMS int64              `json:"processing_time_ms"`
	Timestamp        time.Time          `json:"timestamp"`
}

// CrossVerificationResponse reports the outcome of a cross-check.
type CrossVerificationResponse struct {
	IssueID              int64              `json:"issue_id"`
	Status               VerificationStatus `json:"status"`
	ConfidenceScore      float64            `json:"confidence_score"`
	SameLocation         bool               `json:"same_location"`
	WorkCompleted        bool               `json:"work_completed"`
	ImageSimilarityScore float64            `json:"image_similarity_score"`
	Notes                string             `json:"notes"`
	Warnings             []string           `json:"warnings"`
	ProcessingTimeMS     int64              `json:"processing_time_ms"`
	Timestamp            time.Time          `json:"timestamp"`
}

// StatusResponse reports the latest persisted verification for an issue.
type StatusResponse struct {
	IssueID          int64              `json:"issue_id"`
	VerificationType VerificationType   `json:"verification_type"`
	Status           VerificationStatus `json:"status"`
	ConfidenceScore  float64            `json:"confidence_score"`
	CreatedAt        time.Time          `json:"created_at"`
	ChecksPerformed  map[string]any     `json:"checks_performed,omitempty"`
}

// StatsResponse summarizes service activity since start.
type StatsResponse struct {
	TotalVerifications      int64   `json:"total_verifications"`
	Approved                int64   `json:"approved"`
	Rejected                int64   `json:"rejected"`
	Pending                 int64   `json:"pending"`
	AverageConfidence       float64 `json:"average_confidence"`
	AverageProcessingTimeMS int64   `json:"average_processing_time_ms"`
	UptimeSeconds           int64   `json:"uptime_seconds"`
}
