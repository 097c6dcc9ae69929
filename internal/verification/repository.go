package verification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrNotFound is returned when no verification exists for an issue.
var ErrNotFound = errors.New("verification not found")

// VerificationRecord is the persisted form of a verification outcome.
type VerificationRecord struct {
	ID               uuid.UUID          `db:"id"`
	IssueID          int64              `db:"issue_id"`
	VerificationType VerificationType   `db:"verification_type"`
	Status           VerificationStatus `db:"status"`
	ConfidenceScore  float64            `db:"confidence_score"`
	RejectionReasons pq.StringArray     `db:"rejection_reasons"`
	ChecksPerformed  map[string]any     `db:"-"`
	CreatedAt        time.Time          `db:"created_at"`
}

// NewRecord builds a record ready for persistence.
func NewRecord(issueID int64, vType VerificationType, status VerificationStatus, confidence float64, reasons []string, checks map[string]any) *VerificationRecord {
	return &VerificationRecord{
		ID:               uuid.New(),
		IssueID:          issueID,
		VerificationType: vType,
		Status:           status,
		ConfidenceScore:  confidence,
		RejectionReasons: pq.StringArray(reasons),
		ChecksPerformed:  checks,
		CreatedAt:        time.Now().UTC(),
	}
}

// TimelineEvent is an audit entry attached to an issue's history.
type TimelineEvent struct {
	ID          uuid.UUID      `db:"id"`
	IssueID     int64          `db:"issue_id"`
	EventType   string         `db:"event_type"`
	ActorType   string         `db:"actor_type"`
	Description string         `db:"description"`
	Metadata    map[string]any `db:"-"`
	CreatedAt   time.Time      `db:"created_at"`
}

// Repository persists verification outcomes and their audit trail.
type Repository interface {
	SaveVerification(ctx context.Context, rec *VerificationRecord) error
	CreateTimelineEvent(ctx context.Context, event *TimelineEvent) error
	GetLatestByIssueID(ctx context.Context, issueID int64) (*VerificationRecord, error)
}

// PostgresRepository implements Repository on PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) SaveVerification(ctx context.Context, rec *VerificationRecord) error {
	checksJSON, err := json.Marshal(rec.ChecksPerformed)
	if err != nil {
		return fmt.Errorf("failed to marshal checks: %w", err)
	}

	query := `
		INSERT INTO ai_verifications (
			id, issue_id, verification_type, status, confidence_score,
			rejection_reasons, checks_performed, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.IssueID, rec.VerificationType, rec.Status, rec.ConfidenceScore,
		rec.RejectionReasons, checksJSON, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save verification: %w", err)
	}

	return nil
}

func (r *PostgresRepository) CreateTimelineEvent(ctx context.Context, event *TimelineEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	metadataJSON, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO timeline_events (
			id, issue_id, event_type, actor_type, description, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.IssueID, event.EventType, event.ActorType,
		event.Description, metadataJSON, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create timeline event: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetLatestByIssueID(ctx context.Context, issueID int64) (*VerificationRecord, error) {
	query := `
		SELECT id, issue_id, verification_type, status, confidence_score,
		       rejection_reasons, checks_performed, created_at
		FROM ai_verifications
		WHERE issue_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var rec VerificationRecord
	var checksJSON []byte
	row := r.db.QueryRowxContext(ctx, query, issueID)
	err := row.Scan(&rec.ID, &rec.IssueID, &rec.VerificationType, &rec.Status,
		&rec.ConfidenceScore, &rec.RejectionReasons, &checksJSON, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load verification: %w", err)
	}

	if len(checksJSON) > 0 {
		if err := json.Unmarshal(checksJSON, &rec.ChecksPerformed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checks: %w", err)
		}
	}

	return &rec, nil
}
