package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/rawblock/ringbreaker-engine/pkg/models"
)

// schemaSQL is compiled into the binary at build time so schema init works
// inside the runtime image, which does not copy internal/db/schema.sql.
//
//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logrus.Entry
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string, log *logrus.Entry) (*PostgresStore, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Info("connected to PostgreSQL")
	return &PostgresStore{pool: pool, log: log}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema executes the embedded schema.sql DDL statements.
func (s *PostgresStore) InitSchema() error {
	_, err := s.pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}
	s.log.Info("analysis schema initialized")
	return nil
}

// RunMeta describes the upload that produced an analysis run.
type RunMeta struct {
	Filename         string
	TransactionCount int
	AccountCount     int
	ReportHash       string
}

// SaveAnalysisRun persists one complete analysis: the run row plus every
// ring and flagged account, in a single transaction. Returns the run ID.
func (s *PostgresStore) SaveAnalysisRun(ctx context.Context, meta RunMeta, result *models.AnalysisResult) (uuid.UUID, error) {
	runID := uuid.New()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertRunSQL := `
		INSERT INTO analysis_runs
			(id, uploaded_filename, transaction_count, account_count,
			 suspicious_count, ring_count, detection_seconds, processing_seconds, report_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''));
	`
	_, err = tx.Exec(ctx, insertRunSQL,
		runID,
		meta.Filename,
		meta.TransactionCount,
		meta.AccountCount,
		result.Summary.SuspiciousAccountsFlagged,
		result.Summary.FraudRingsDetected,
		result.Summary.DetectionTimeSeconds,
		result.Summary.ProcessingTimeSeconds,
		meta.ReportHash,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert analysis run: %w", err)
	}

	insertRingSQL := `
		INSERT INTO fraud_rings (run_id, ring_id, pattern_type, risk_score, member_accounts)
		VALUES ($1, $2, $3, $4, $5);
	`
	for _, ring := range result.FraudRings {
		_, err = tx.Exec(ctx, insertRingSQL,
			runID, ring.RingID, ring.PatternType, ring.RiskScore, ring.MemberAccounts)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert ring %s: %w", ring.RingID, err)
		}
	}

	insertAccountSQL := `
		INSERT INTO suspicious_accounts (run_id, account_id, suspicion_score, detected_patterns, ring_id)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''));
	`
	for _, acc := range result.SuspiciousAccounts {
		_, err = tx.Exec(ctx, insertAccountSQL,
			runID, acc.AccountID, acc.SuspicionScore, acc.DetectedPatterns, acc.RingID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to insert account %s: %w", acc.AccountID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, err
	}
	return runID, nil
}

// ShadowDivergence summarizes a production-vs-candidate threshold comparison.
type ShadowDivergence struct {
	FlaggedProduction int
	FlaggedShadow     int
	RingsProduction   int
	RingsShadow       int
	OnlyInProduction  []string
	OnlyInShadow      []string
}

// SaveShadowRun persists one shadow comparison tied to its production run.
func (s *PostgresStore) SaveShadowRun(ctx context.Context, runID uuid.UUID, d ShadowDivergence) error {
	if d.OnlyInProduction == nil {
		d.OnlyInProduction = []string{}
	}
	if d.OnlyInShadow == nil {
		d.OnlyInShadow = []string{}
	}
	sql := `
		INSERT INTO shadow_runs
			(run_id, flagged_production, flagged_shadow, rings_production, rings_shadow,
			 only_in_production, only_in_shadow)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := s.pool.Exec(ctx, sql, runID,
		d.FlaggedProduction, d.FlaggedShadow, d.RingsProduction, d.RingsShadow,
		d.OnlyInProduction, d.OnlyInShadow)
	if err != nil {
		return fmt.Errorf("failed to insert shadow run: %w", err)
	}
	return nil
}

// PruneRunsBefore deletes analysis runs older than the cutoff. Rings,
// accounts and shadow rows cascade with them.
func (s *PostgresStore) PruneRunsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analysis_runs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune analysis runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetPool exposes the connection pool for other subsystems.
func (s *PostgresStore) GetPool() *pgxpool.Pool {
	return s.pool
}
