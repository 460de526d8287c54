package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

func sampleReport(strategy string, generatedAt time.Time) *evaluation.Report {
	return &evaluation.Report{
		Success:     true,
		GeneratedAt: generatedAt,
		Strategy:    strategy,
		Metrics: &evaluation.StrategyMetrics{
			Strategy: strategy,
			SegmentMetrics: evaluation.SegmentMetrics{
				TradeCount:     120,
				Sharpe:         1.8,
				MaxDrawdownPct: 12.3,
				ProfitFactor:   1.6,
				WinRatePct:     58.0,
				Expectancy:     14.2,
				TotalReturnPct: 42.5,
			},
		},
		Overfitting: &evaluation.OverfitResult{
			InSampleSharpe:  2.1,
			OutSampleSharpe: 1.5,
			SharpeDrop:      0.6,
			IsStable:        true,
			RobustnessScore: 77.0,
		},
	}
}

// TestNewEvaluationRecord tests lifting headline metrics out of a report
func TestNewEvaluationRecord(t *testing.T) {
	generatedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	report := sampleReport("momentum", generatedAt)

	rec := NewEvaluationRecord(report)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "momentum", rec.Strategy)
	assert.Equal(t, "completed", rec.Status)
	assert.Equal(t, ReportSchemaVersion, rec.SchemaVersion)
	assert.Equal(t, generatedAt, rec.CreatedAt)
	assert.Equal(t, 1.8, rec.Sharpe)
	assert.Equal(t, 42.5, rec.TotalReturnPct)
	assert.Equal(t, 58.0, rec.WinRatePct)
	assert.Equal(t, 12.3, rec.MaxDrawdownPct)
	assert.Equal(t, 77.0, rec.RobustnessScore)
	assert.True(t, rec.IsStable)
	assert.Equal(t, 120, rec.TradeCount)
}

// TestNewEvaluationRecordFailed tests wrapping a failed report
func TestNewEvaluationRecordFailed(t *testing.T) {
	report := &evaluation.Report{
		Success: false,
		Error:   "no trades supplied",
	}

	rec := NewEvaluationRecord(report)

	assert.Equal(t, "failed", rec.Status)
	assert.Zero(t, rec.Sharpe)
	assert.Zero(t, rec.TradeCount)
	assert.False(t, rec.IsStable)
	// GeneratedAt was zero, so CreatedAt falls back to the current time
	assert.False(t, rec.CreatedAt.IsZero())
}

// TestSaveEvaluation tests persisting a record through the upsert path
func TestSaveEvaluation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	generatedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := NewEvaluationRecord(sampleReport("momentum", generatedAt))

	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs(rec.ID, "momentum", "completed", ReportSchemaVersion, pgxmock.AnyArg(),
			1.8, 42.5, 58.0, 12.3, 77.0, true, 120, generatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := context.Background()
	err = repo.Save(ctx, rec)
	assert.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSaveEvaluationAssignsID tests that a missing ID is generated on save
func TestSaveEvaluationAssignsID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	generatedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := NewEvaluationRecord(sampleReport("momentum", generatedAt))
	rec.ID = ""
	rec.SchemaVersion = ""

	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs(pgxmock.AnyArg(), "momentum", "completed", ReportSchemaVersion, pgxmock.AnyArg(),
			1.8, 42.5, 58.0, 12.3, 77.0, true, 120, generatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := context.Background()
	err = repo.Save(ctx, rec)
	assert.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, ReportSchemaVersion, rec.SchemaVersion)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetEvaluationByID tests loading a record including the report document
func TestGetEvaluationByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	reportJSON, err := json.Marshal(sampleReport("momentum", createdAt))
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{
		"strategy", "status", "schema_version", "report",
		"sharpe", "total_return_pct", "win_rate_pct", "max_drawdown_pct",
		"robustness_score", "is_stable", "trade_count", "created_at",
	}).AddRow("momentum", "completed", "1.0", reportJSON,
		1.8, 42.5, 58.0, 12.3, 77.0, true, 120, createdAt)

	mock.ExpectQuery("SELECT(.+)FROM evaluations WHERE id").
		WithArgs("eval-1").
		WillReturnRows(rows)

	ctx := context.Background()
	rec, err := repo.GetByID(ctx, "eval-1")

	require.NoError(t, err)
	assert.Equal(t, "eval-1", rec.ID)
	assert.Equal(t, "momentum", rec.Strategy)
	assert.Equal(t, "completed", rec.Status)
	assert.Equal(t, 1.8, rec.Sharpe)
	assert.Equal(t, 120, rec.TradeCount)
	require.NotNil(t, rec.Report)
	assert.True(t, rec.Report.Success)
	require.NotNil(t, rec.Report.Metrics)
	assert.Equal(t, 1.8, rec.Report.Metrics.Sharpe)
	require.NotNil(t, rec.Report.Overfitting)
	assert.Equal(t, 77.0, rec.Report.Overfitting.RobustnessScore)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetEvaluationByIDNotFound tests the missing-record error
func TestGetEvaluationByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	mock.ExpectQuery("SELECT(.+)FROM evaluations WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	ctx := context.Background()
	_, err = repo.GetByID(ctx, "missing")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "evaluation not found")

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetEvaluationByIDNewerSchema tests rejection of records written by a
// newer schema version
func TestGetEvaluationByIDNewerSchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"strategy", "status", "schema_version", "report",
		"sharpe", "total_return_pct", "win_rate_pct", "max_drawdown_pct",
		"robustness_score", "is_stable", "trade_count", "created_at",
	}).AddRow("momentum", "completed", "2.0", []byte(`{}`),
		0.0, 0.0, 0.0, 0.0, 0.0, false, 0, createdAt)

	mock.ExpectQuery("SELECT(.+)FROM evaluations WHERE id").
		WithArgs("eval-2").
		WillReturnRows(rows)

	ctx := context.Background()
	_, err = repo.GetByID(ctx, "eval-2")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "report requires schema version")

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestListEvaluations tests the newest-first summary listing
func TestListEvaluations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "strategy", "status", "sharpe", "total_return_pct",
		"robustness_score", "is_stable", "trade_count", "created_at",
	}).
		AddRow("eval-2", "breakout", "completed", 1.2, 18.0, 61.0, true, 80, now).
		AddRow("eval-1", "momentum", "completed", 1.8, 42.5, 77.0, true, 120, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT(.+)FROM evaluations(.+)ORDER BY created_at DESC").
		WithArgs(100, 0).
		WillReturnRows(rows)

	ctx := context.Background()
	summaries, err := repo.List(ctx, 0, 0)

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "eval-2", summaries[0].ID)
	assert.Equal(t, "breakout", summaries[0].Strategy)
	assert.Equal(t, "eval-1", summaries[1].ID)
	assert.Equal(t, 1.8, summaries[1].Sharpe)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestListEvaluationsByStrategy tests filtering summaries to one strategy
func TestListEvaluationsByStrategy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "strategy", "status", "sharpe", "total_return_pct",
		"robustness_score", "is_stable", "trade_count", "created_at",
	}).AddRow("eval-1", "momentum", "completed", 1.8, 42.5, 77.0, true, 120, now)

	mock.ExpectQuery("SELECT(.+)FROM evaluations(.+)WHERE strategy").
		WithArgs("momentum", 20, 0).
		WillReturnRows(rows)

	ctx := context.Background()
	summaries, err := repo.ListByStrategy(ctx, "momentum", 0, 0)

	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "momentum", summaries[0].Strategy)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestTopEvaluationsByRobustness tests the completed-only ranking query
func TestTopEvaluationsByRobustness(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	now := time.Now()
	rows := pgxmock.NewRows([]string{
		"id", "strategy", "status", "sharpe", "total_return_pct",
		"robustness_score", "is_stable", "trade_count", "created_at",
	}).
		AddRow("eval-1", "momentum", "completed", 1.8, 42.5, 77.0, true, 120, now).
		AddRow("eval-2", "breakout", "completed", 1.2, 18.0, 61.0, true, 80, now)

	mock.ExpectQuery("SELECT(.+)FROM evaluations(.+)ORDER BY robustness_score DESC").
		WithArgs(5).
		WillReturnRows(rows)

	ctx := context.Background()
	summaries, err := repo.TopByRobustness(ctx, 5)

	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 77.0, summaries[0].RobustnessScore)
	assert.Equal(t, 61.0, summaries[1].RobustnessScore)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDeleteEvaluation tests removing a record
func TestDeleteEvaluation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	mock.ExpectExec("DELETE FROM evaluations").
		WithArgs("eval-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	ctx := context.Background()
	err = repo.Delete(ctx, "eval-1")
	assert.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestDeleteEvaluationNotFound tests deleting a nonexistent record
func TestDeleteEvaluationNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	mock.ExpectExec("DELETE FROM evaluations").
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	ctx := context.Background()
	err = repo.Delete(ctx, "missing")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "evaluation not found")

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestRepositoryWithoutPool tests that all operations refuse a nil pool
func TestRepositoryWithoutPool(t *testing.T) {
	repo := NewEvaluationRepository(nil)
	ctx := context.Background()

	rec := NewEvaluationRecord(sampleReport("momentum", time.Now()))

	err := repo.Save(ctx, rec)
	assert.ErrorContains(t, err, "database connection not available")

	_, err = repo.GetByID(ctx, "eval-1")
	assert.ErrorContains(t, err, "database connection not available")

	_, err = repo.List(ctx, 10, 0)
	assert.ErrorContains(t, err, "database connection not available")

	_, err = repo.ListByStrategy(ctx, "momentum", 10, 0)
	assert.ErrorContains(t, err, "database connection not available")

	_, err = repo.TopByRobustness(ctx, 10)
	assert.ErrorContains(t, err, "database connection not available")

	err = repo.CreatePending(ctx, "eval-1", "momentum")
	assert.ErrorContains(t, err, "database connection not available")

	err = repo.SetStatus(ctx, "eval-1", StatusRunning)
	assert.ErrorContains(t, err, "database connection not available")

	_, err = repo.Count(ctx, "")
	assert.ErrorContains(t, err, "database connection not available")

	err = repo.Delete(ctx, "eval-1")
	assert.ErrorContains(t, err, "database connection not available")
}

// TestCreatePendingEvaluation tests inserting the placeholder row
func TestCreatePendingEvaluation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	mock.ExpectExec("INSERT INTO evaluations").
		WithArgs("eval-1", "momentum", StatusPending, ReportSchemaVersion).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ctx := context.Background()
	err = repo.CreatePending(ctx, "eval-1", "momentum")
	assert.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSetEvaluationStatus tests the lifecycle status update
func TestSetEvaluationStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	mock.ExpectExec("UPDATE evaluations SET status").
		WithArgs("eval-1", StatusRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ctx := context.Background()
	err = repo.SetStatus(ctx, "eval-1", StatusRunning)
	assert.NoError(t, err)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestSetEvaluationStatusNotFound tests updating a nonexistent record
func TestSetEvaluationStatusNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	mock.ExpectExec("UPDATE evaluations SET status").
		WithArgs("missing", StatusRunning).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ctx := context.Background()
	err = repo.SetStatus(ctx, "missing", StatusRunning)

	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestGetEvaluationPending tests loading a row whose report is still the
// JSON null placeholder
func TestGetEvaluationPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)

	createdAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"strategy", "status", "schema_version", "report",
		"sharpe", "total_return_pct", "win_rate_pct", "max_drawdown_pct",
		"robustness_score", "is_stable", "trade_count", "created_at",
	}).AddRow("momentum", StatusPending, "1.0", []byte("null"),
		0.0, 0.0, 0.0, 0.0, 0.0, false, 0, createdAt)

	mock.ExpectQuery("SELECT(.+)FROM evaluations WHERE id").
		WithArgs("eval-1").
		WillReturnRows(rows)

	ctx := context.Background()
	rec, err := repo.GetByID(ctx, "eval-1")

	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
	assert.Nil(t, rec.Report)

	require.NoError(t, mock.ExpectationsWereMet())
}

// TestCountEvaluations tests the total and per-strategy counts
func TestCountEvaluations(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewEvaluationRepository(mock)
	ctx := context.Background()

	mock.ExpectQuery("SELECT COUNT(.+)FROM evaluations").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	total, err := repo.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 7, total)

	mock.ExpectQuery("SELECT COUNT(.+)FROM evaluations WHERE strategy").
		WithArgs("momentum").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	total, err = repo.Count(ctx, "momentum")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	require.NoError(t, mock.ExpectationsWereMet())
}
