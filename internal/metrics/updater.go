package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Updater periodically updates metrics from the database
type Updater struct {
	db       *pgxpool.Pool
	interval time.Duration
	stopCh   chan struct{}
}

// NewUpdater creates a new metrics updater
func NewUpdater(db *pgxpool.Pool, interval time.Duration) *Updater {
	return &Updater{
		db:       db,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the metrics update loop
func (u *Updater) Start(ctx context.Context) {
	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	// Update immediately on start
	u.update(ctx)

	for {
		select {
		case <-ticker.C:
			u.update(ctx)
		case <-u.stopCh:
			log.Info().Msg("Metrics updater stopped")
			return
		case <-ctx.Done():
			log.Info().Msg("Metrics updater context cancelled")
			return
		}
	}
}

// Stop stops the metrics updater
func (u *Updater) Stop() {
	close(u.stopCh)
}

// update fetches and updates all metrics
func (u *Updater) update(ctx context.Context) {
	log.Debug().Msg("Updating metrics from database")

	u.updateEvaluationMetrics(ctx)
	u.updateStrategyScores(ctx)
	u.updateDatabaseMetrics()

	log.Debug().Msg("Metrics updated successfully")
}

// updateEvaluationMetrics updates stored-evaluation aggregates
func (u *Updater) updateEvaluationMetrics(ctx context.Context) {
	var total, strategies int64
	var stableShare float64

	query := `
		SELECT
			COUNT(*) as total,
			COUNT(DISTINCT strategy) as strategies,
			COALESCE(AVG(CASE WHEN is_stable THEN 1.0 ELSE 0.0 END)
				FILTER (WHERE status = 'completed'), 0) as stable_share
		FROM evaluations
	`

	err := u.db.QueryRow(ctx, query).Scan(&total, &strategies, &stableShare)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch evaluation metrics")
		return
	}

	EvaluationsStored.Set(float64(total))
	StrategiesTracked.Set(float64(strategies))
	StableStrategyShare.Set(stableShare)
}

// updateStrategyScores refreshes the latest scores per strategy
func (u *Updater) updateStrategyScores(ctx context.Context) {
	query := `
		SELECT DISTINCT ON (strategy)
			strategy,
			sharpe,
			robustness_score
		FROM evaluations
		WHERE status = 'completed'
		ORDER BY strategy, created_at DESC
	`

	rows, err := u.db.Query(ctx, query)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch strategy scores")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var strategy string
		var sharpe, robustness float64
		if err := rows.Scan(&strategy, &sharpe, &robustness); err != nil {
			continue
		}
		SetStrategyScores(strategy, sharpe, robustness)
	}
}

// updateDatabaseMetrics updates database connection pool metrics
func (u *Updater) updateDatabaseMetrics() {
	stat := u.db.Stat()
	UpdateDatabaseConnections(stat.AcquiredConns(), stat.IdleConns())
}
