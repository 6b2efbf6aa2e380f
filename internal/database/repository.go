package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

// Repository persists applications and their analyses. It serves the
// analyzer as both record store and result sink.
type Repository struct {
	db *DB
}

var (
	_ analysis.RecordStore = (*Repository)(nil)
	_ analysis.ResultSink  = (*Repository)(nil)
)

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// SaveApplication inserts or replaces one application.
func (r *Repository) SaveApplication(ctx context.Context, rec *types.ApplicationRecord) error {
	if rec.ID == "" {
		return errors.New("application id is required")
	}
	stmt, err := r.db.GetPreparedStatement(stmtUpsertApplication)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode application %s: %w", rec.ID, err)
	}

	now := time.Now().UTC()
	var applied interface{}
	if !rec.AppliedAt.IsZero() {
		applied = rec.AppliedAt
	}
	if _, err := stmt.ExecContext(ctx, rec.ID, applied, string(payload), now, now); err != nil {
		return fmt.Errorf("failed to save application %s: %w", rec.ID, err)
	}
	return nil
}

// SaveApplications stores a batch in one transaction.
func (r *Repository) SaveApplications(ctx context.Context, records []types.ApplicationRecord) error {
	stmt, err := r.db.GetPreparedStatement(stmtUpsertApplication)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	txStmt := tx.StmtContext(ctx, stmt)
	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			return fmt.Errorf("record %d: application id is required", i)
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode application %s: %w", rec.ID, err)
		}
		var applied interface{}
		if !rec.AppliedAt.IsZero() {
			applied = rec.AppliedAt
		}
		if _, err := txStmt.ExecContext(ctx, rec.ID, applied, string(payload), now, now); err != nil {
			return fmt.Errorf("failed to save application %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// Get loads one application. Unknown ids wrap analysis.ErrApplicationNotFound.
func (r *Repository) Get(ctx context.Context, id string) (*types.ApplicationRecord, error) {
	stmt, err := r.db.GetPreparedStatement(stmtGetApplication)
	if err != nil {
		return nil, err
	}

	var payload string
	err = stmt.QueryRowContext(ctx, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", analysis.ErrApplicationNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query application %s: %w", id, err)
	}

	var rec types.ApplicationRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode application %s: %w", id, err)
	}
	return &rec, nil
}

// ListApplications returns every stored application ordered by id.
func (r *Repository) ListApplications(ctx context.Context) ([]types.ApplicationRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM applications ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var out []types.ApplicationRecord
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		var rec types.ApplicationRecord
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode application: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountApplications returns the number of stored applications.
func (r *Repository) CountApplications(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count applications: %w", err)
	}
	return n, nil
}

// SaveAnalysis appends a computed result to the analysis history.
func (r *Repository) SaveAnalysis(ctx context.Context, result *analysis.AnalysisResult) error {
	stmt, err := r.db.GetPreparedStatement(stmtInsertAnalysis)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode analysis: %w", err)
	}

	row := NewAnalysisRow(result.ApplicationID)
	_, err = stmt.ExecContext(ctx,
		row.ID, row.ApplicationID, result.ModelVersion, string(result.Source),
		result.RiskCategory, result.RiskLevel, result.Confidence, result.RiskScore, string(payload), row.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save analysis for %s: %w", result.ApplicationID, err)
	}
	return nil
}

// LatestAnalysis returns the most recent stored result for an application.
func (r *Repository) LatestAnalysis(ctx context.Context, applicationID string) (*analysis.AnalysisResult, error) {
	stmt, err := r.db.GetPreparedStatement(stmtLatestAnalysis)
	if err != nil {
		return nil, err
	}

	var payload string
	err = stmt.QueryRowContext(ctx, applicationID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no stored analysis for %s", analysis.ErrApplicationNotFound, applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}

	var result analysis.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	return &result, nil
}

// CategoryDistribution counts stored analyses per risk category.
func (r *Repository) CategoryDistribution(ctx context.Context) ([]CategoryCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT risk_category, COUNT(*) FROM analyses
		GROUP BY risk_category ORDER BY risk_category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution: %w", err)
	}
	defer rows.Close()

	var out []CategoryCount
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.RiskCategory, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan distribution: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
