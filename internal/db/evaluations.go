package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

// Evaluation lifecycle statuses. A row is created pending, moves to running
// when the engine picks it up, and ends completed or failed.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ErrNotFound is returned when no evaluation exists for the requested ID.
var ErrNotFound = errors.New("evaluation not found")

// PoolInterface defines the interface for database pool operations
type PoolInterface interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// EvaluationRepository handles database operations for evaluation reports
type EvaluationRepository struct {
	pool PoolInterface
}

// NewEvaluationRepository creates a repository on any pool-shaped connection
func NewEvaluationRepository(pool PoolInterface) *EvaluationRepository {
	return &EvaluationRepository{pool: pool}
}

// NewEvaluationRepositoryWithDB creates a repository backed by the shared pool
func NewEvaluationRepositoryWithDB(database *DB) *EvaluationRepository {
	return &EvaluationRepository{pool: database.Pool()}
}

// EvaluationRecord is the persisted envelope around an evaluation report.
// The full report is stored as JSONB; the headline numbers are denormalized
// into columns so listings and rankings never parse the document.
type EvaluationRecord struct {
	ID            string             `json:"id"`
	Strategy      string             `json:"strategy"`
	Status        string             `json:"status"` // pending, running, completed or failed
	SchemaVersion string             `json:"schema_version"`
	Report        *evaluation.Report `json:"report,omitempty"`

	Sharpe          float64 `json:"sharpe"`
	TotalReturnPct  float64 `json:"total_return_pct"`
	WinRatePct      float64 `json:"win_rate_pct"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct"`
	RobustnessScore float64 `json:"robustness_score"`
	IsStable        bool    `json:"is_stable"`
	TradeCount      int     `json:"trade_count"`

	CreatedAt time.Time `json:"created_at"`
}

// EvaluationSummary is the listing row: everything a dashboard needs without
// the report document.
type EvaluationSummary struct {
	ID              string    `json:"id"`
	Strategy        string    `json:"strategy"`
	Status          string    `json:"status"`
	Sharpe          float64   `json:"sharpe"`
	TotalReturnPct  float64   `json:"total_return_pct"`
	RobustnessScore float64   `json:"robustness_score"`
	IsStable        bool      `json:"is_stable"`
	TradeCount      int       `json:"trade_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewEvaluationRecord wraps a finished report in a persistable record,
// assigning an ID, stamping the schema version, and lifting the headline
// numbers out of the document.
func NewEvaluationRecord(report *evaluation.Report) *EvaluationRecord {
	rec := &EvaluationRecord{
		ID:            uuid.New().String(),
		Strategy:      report.Strategy,
		Status:        StatusFailed,
		SchemaVersion: ReportSchemaVersion,
		Report:        report,
		CreatedAt:     report.GeneratedAt,
	}

	if report.Success {
		rec.Status = StatusCompleted
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if report.Metrics != nil {
		rec.Sharpe = report.Metrics.Sharpe
		rec.TotalReturnPct = report.Metrics.TotalReturnPct
		rec.WinRatePct = report.Metrics.WinRatePct
		rec.MaxDrawdownPct = report.Metrics.MaxDrawdownPct
		rec.TradeCount = report.Metrics.TradeCount
	}
	if report.Overfitting != nil {
		rec.RobustnessScore = report.Overfitting.RobustnessScore
		rec.IsStable = report.Overfitting.IsStable
	}

	return rec
}

// Save creates or updates an evaluation record in the database
func (r *EvaluationRepository) Save(ctx context.Context, rec *EvaluationRecord) error {
	if r.pool == nil {
		return fmt.Errorf("database connection not available")
	}

	reportJSON, err := json.Marshal(rec.Report)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation report: %w", err)
	}

	// Generate ID if not present
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.SchemaVersion == "" {
		rec.SchemaVersion = ReportSchemaVersion
	}

	query := `
		INSERT INTO evaluations (id, strategy, status, schema_version, report, sharpe, total_return_pct, win_rate_pct, max_drawdown_pct, robustness_score, is_stable, trade_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			strategy = EXCLUDED.strategy,
			status = EXCLUDED.status,
			schema_version = EXCLUDED.schema_version,
			report = EXCLUDED.report,
			sharpe = EXCLUDED.sharpe,
			total_return_pct = EXCLUDED.total_return_pct,
			win_rate_pct = EXCLUDED.win_rate_pct,
			max_drawdown_pct = EXCLUDED.max_drawdown_pct,
			robustness_score = EXCLUDED.robustness_score,
			is_stable = EXCLUDED.is_stable,
			trade_count = EXCLUDED.trade_count
	`

	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.Strategy,
		rec.Status,
		rec.SchemaVersion,
		reportJSON,
		rec.Sharpe,
		rec.TotalReturnPct,
		rec.WinRatePct,
		rec.MaxDrawdownPct,
		rec.RobustnessScore,
		rec.IsStable,
		rec.TradeCount,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save evaluation: %w", err)
	}

	log.Debug().
		Str("evaluation_id", rec.ID).
		Str("strategy", rec.Strategy).
		Str("status", rec.Status).
		Msg("Evaluation saved to database")

	return nil
}

// CreatePending inserts a placeholder row for a run that has been accepted
// but not yet evaluated. The eventual Save upserts the full report over it.
func (r *EvaluationRepository) CreatePending(ctx context.Context, id, strategy string) error {
	if r.pool == nil {
		return fmt.Errorf("database connection not available")
	}

	query := `
		INSERT INTO evaluations (id, strategy, status, schema_version, report)
		VALUES ($1, $2, $3, $4, 'null'::jsonb)
	`

	_, err := r.pool.Exec(ctx, query, id, strategy, StatusPending, ReportSchemaVersion)
	if err != nil {
		return fmt.Errorf("failed to create pending evaluation: %w", err)
	}

	log.Debug().
		Str("evaluation_id", id).
		Str("strategy", strategy).
		Msg("Pending evaluation created")

	return nil
}

// SetStatus updates the lifecycle status of an evaluation
func (r *EvaluationRepository) SetStatus(ctx context.Context, id, status string) error {
	if r.pool == nil {
		return fmt.Errorf("database connection not available")
	}

	result, err := r.pool.Exec(ctx, `UPDATE evaluations SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update evaluation status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// GetByID retrieves an evaluation record, including the full report, by ID
func (r *EvaluationRepository) GetByID(ctx context.Context, id string) (*EvaluationRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	query := `
		SELECT strategy, status, schema_version, report, sharpe, total_return_pct, win_rate_pct, max_drawdown_pct, robustness_score, is_stable, trade_count, created_at
		FROM evaluations WHERE id = $1
	`

	rec := &EvaluationRecord{ID: id}
	var reportJSON []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.Strategy,
		&rec.Status,
		&rec.SchemaVersion,
		&reportJSON,
		&rec.Sharpe,
		&rec.TotalReturnPct,
		&rec.WinRatePct,
		&rec.MaxDrawdownPct,
		&rec.RobustnessScore,
		&rec.IsStable,
		&rec.TradeCount,
		&rec.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	if err := CheckReportCompatibility(rec.SchemaVersion); err != nil {
		return nil, err
	}

	// Pending and running rows carry a JSON null placeholder instead of a
	// report document.
	if len(reportJSON) > 0 && string(reportJSON) != "null" {
		var report evaluation.Report
		if err := json.Unmarshal(reportJSON, &report); err != nil {
			return nil, fmt.Errorf("failed to unmarshal evaluation report: %w", err)
		}
		rec.Report = &report
	}

	return rec, nil
}

// GetReport retrieves just the stored report document by evaluation ID
func (r *EvaluationRepository) GetReport(ctx context.Context, id string) (*evaluation.Report, error) {
	rec, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Report, nil
}

// List retrieves evaluation summaries, newest first
func (r *EvaluationRepository) List(ctx context.Context, limit, offset int) ([]*EvaluationSummary, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, strategy, status, sharpe, total_return_pct, robustness_score, is_stable, trade_count, created_at
		FROM evaluations
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	return r.querySummaries(ctx, query, limit, offset)
}

// ListByStrategy retrieves evaluation summaries for one strategy, newest first
func (r *EvaluationRepository) ListByStrategy(ctx context.Context, strategy string, limit, offset int) ([]*EvaluationSummary, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, strategy, status, sharpe, total_return_pct, robustness_score, is_stable, trade_count, created_at
		FROM evaluations
		WHERE strategy = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	return r.querySummaries(ctx, query, strategy, limit, offset)
}

// Count returns the number of stored evaluations, optionally filtered to one
// strategy
func (r *EvaluationRepository) Count(ctx context.Context, strategy string) (int, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("database connection not available")
	}

	query := `SELECT COUNT(*) FROM evaluations`
	args := []interface{}{}
	if strategy != "" {
		query += ` WHERE strategy = $1`
		args = append(args, strategy)
	}

	var total int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count evaluations: %w", err)
	}

	return total, nil
}

// TopByRobustness retrieves the highest-scoring completed evaluations
func (r *EvaluationRepository) TopByRobustness(ctx context.Context, limit int) ([]*EvaluationSummary, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database connection not available")
	}

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, strategy, status, sharpe, total_return_pct, robustness_score, is_stable, trade_count, created_at
		FROM evaluations
		WHERE status = 'completed'
		ORDER BY robustness_score DESC, created_at DESC
		LIMIT $1
	`

	return r.querySummaries(ctx, query, limit)
}

// querySummaries runs a summary-shaped query and scans the rows
func (r *EvaluationRepository) querySummaries(ctx context.Context, query string, args ...interface{}) ([]*EvaluationSummary, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	summaries := make([]*EvaluationSummary, 0)
	for rows.Next() {
		s := &EvaluationSummary{}
		if err := rows.Scan(
			&s.ID,
			&s.Strategy,
			&s.Status,
			&s.Sharpe,
			&s.TotalReturnPct,
			&s.RobustnessScore,
			&s.IsStable,
			&s.TradeCount,
			&s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating evaluations: %w", err)
	}

	return summaries, nil
}

// Delete removes an evaluation record from the database
func (r *EvaluationRepository) Delete(ctx context.Context, id string) error {
	if r.pool == nil {
		return fmt.Errorf("database connection not available")
	}

	result, err := r.pool.Exec(ctx, `DELETE FROM evaluations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete evaluation: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	log.Info().
		Str("evaluation_id", id).
		Msg("Evaluation deleted from database")

	return nil
}
