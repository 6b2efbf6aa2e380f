// Package privacy erases applicant data on request and enforces the
// retention window for stored analyses.
package privacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/database"
)

// DefaultRetention is how long analysis history is kept.
const DefaultRetention = 365 * 24 * time.Hour

// Erasure reports what a deletion removed.
type Erasure struct {
	ApplicationID    string `json:"application_id"`
	Applications     int64  `json:"applications_deleted"`
	Analyses         int64  `json:"analyses_deleted"`
	CacheInvalidated bool   `json:"cache_invalidated"`
}

// Footprint summarizes what is held about one application.
type Footprint struct {
	ApplicationID string     `json:"application_id"`
	Stored        bool       `json:"stored"`
	Analyses      int        `json:"analyses"`
	FirstAnalysis *time.Time `json:"first_analysis,omitempty"`
	LastAnalysis  *time.Time `json:"last_analysis,omitempty"`
	RetentionDays int        `json:"retention_days"`
}

// Invalidator drops cached results for an application.
type Invalidator interface {
	Invalidate(id string) bool
}

// Service deletes applicant data from the store and the result cache.
type Service struct {
	db        *database.DB
	cache     Invalidator
	retention time.Duration
}

// NewService creates a privacy service. A non-positive retention uses
// DefaultRetention; cache may be nil.
func NewService(db *database.DB, cache Invalidator, retention time.Duration) *Service {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Service{db: db, cache: cache, retention: retention}
}

// Fingerprint hashes an application id so logs never carry the raw value.
func Fingerprint(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:12]
}

// DeleteApplication removes an application with its whole analysis history
// and drops any cached result. Unknown ids wrap analysis.ErrApplicationNotFound.
func (s *Service) DeleteApplication(ctx context.Context, id string) (*Erasure, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM analyses WHERE application_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete analyses: %w", err)
	}
	analyses, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete application: %w", err)
	}
	apps, _ := res.RowsAffected()

	if apps == 0 && analyses == 0 {
		return nil, fmt.Errorf("%w: %s", analysis.ErrApplicationNotFound, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit deletion: %w", err)
	}

	out := &Erasure{ApplicationID: id, Applications: apps, Analyses: analyses}
	if s.cache != nil {
		out.CacheInvalidated = s.cache.Invalidate(id)
	}

	slog.Info("Application data deleted",
		"application", Fingerprint(id),
		"applications_deleted", apps,
		"analyses_deleted", analyses,
	)
	return out, nil
}

// Footprint reports how much is stored about an application.
func (s *Service) Footprint(ctx context.Context, id string) (*Footprint, error) {
	var stored int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applications WHERE id = ?`, id).Scan(&stored); err != nil {
		return nil, fmt.Errorf("failed to query application: %w", err)
	}

	var n int
	var first, last database.Timestamp
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(created_at), MAX(created_at)
		FROM analyses WHERE application_id = ?`, id).Scan(&n, &first, &last)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	if stored == 0 && n == 0 {
		return nil, fmt.Errorf("%w: %s", analysis.ErrApplicationNotFound, id)
	}

	return &Footprint{
		ApplicationID: id,
		Stored:        stored > 0,
		Analyses:      n,
		FirstAnalysis: first.Ptr(),
		LastAnalysis:  last.Ptr(),
		RetentionDays: s.RetentionDays(),
	}, nil
}

// PurgeExpired deletes analyses older than the retention window relative
// to now. Applications themselves are kept; they are training data.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-s.retention).UTC()
	res, err := s.db.ExecContext(ctx, `DELETE FROM analyses WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired analyses: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.Info("Analysis cleanup completed", "cutoff", cutoff, "analyses_deleted", n)
	return n, nil
}

// StartCleanup purges expired analyses every interval until ctx is done.
func (s *Service) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if _, err := s.PurgeExpired(ctx, now); err != nil {
					slog.Warn("Analysis cleanup failed", "error", err)
				}
			}
		}
	}()
}

// RetentionDays is the retention window in whole days.
func (s *Service) RetentionDays() int {
	return int(s.retention / (24 * time.Hour))
}

// GetRetentionInfo describes the retention policy for the health report.
func (s *Service) GetRetentionInfo() map[string]interface{} {
	return map[string]interface{}{
		"analysis_retention_days": s.RetentionDays(),
		"application_retention":   "until deleted",
		"log_identifiers":         "sha256 prefix",
	}
}
