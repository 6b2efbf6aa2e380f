// Package leaderboard ranks applications by the risk score of their most
// recent analysis within a reporting period.
package leaderboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/database"
)

// Period names a reporting window.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	AllTime Period = "all_time"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// ErrInvalidPeriod is returned for an unknown period name.
var ErrInvalidPeriod = errors.New("invalid period")

// ParsePeriod validates a period name. Empty means weekly.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return Weekly, nil
	case Daily, Weekly, Monthly, AllTime:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// Start is the first instant of the period containing now, in UTC. AllTime
// starts at the zero time.
func (p Period) Start(now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	switch p {
	case Daily:
		return day
	case Weekly:
		// weeks start on Monday
		return day.AddDate(0, 0, -((int(day.Weekday()) + 6) % 7))
	case Monthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

// Entry is one ranked application.
type Entry struct {
	Rank          int       `json:"rank"`
	ApplicationID string    `json:"application_id"`
	RiskCategory  string    `json:"risk_category"`
	RiskLevel     int       `json:"risk_level"`
	RiskScore     float64   `json:"risk_score"`
	Confidence    float64   `json:"confidence"`
	Source        string    `json:"source"`
	ModelVersion  string    `json:"model_version,omitempty"`
	AnalyzedAt    time.Time `json:"analyzed_at"`
}

// Board is the ranking for one period, riskiest first. Total,
// Distribution and AverageRiskScore cover every ranked application, not
// just Entries.
type Board struct {
	Period           Period         `json:"period"`
	PeriodStart      time.Time      `json:"period_start"`
	GeneratedAt      time.Time      `json:"generated_at"`
	Total            int            `json:"total"`
	Distribution     map[string]int `json:"distribution"`
	AverageRiskScore float64        `json:"average_risk_score"`
	Entries          []Entry        `json:"entries"`
}

// Service builds boards from the analysis history.
type Service struct {
	db    *database.DB
	cache *BoardCache
	now   func() time.Time
}

// NewService creates a leaderboard whose boards are cached for ttl.
func NewService(db *database.DB, ttl time.Duration) *Service {
	return &Service{db: db, cache: NewBoardCache(ttl), now: time.Now}
}

// latestRanked keeps each application's newest analysis since ?1 and ranks
// them by risk score. Ties go to the lower application id.
const latestRanked = `
	WITH latest AS (
		SELECT application_id, risk_category, risk_level, risk_score, confidence,
			source, model_version, created_at,
			ROW_NUMBER() OVER (PARTITION BY application_id ORDER BY created_at DESC, rowid DESC) AS rn
		FROM analyses
		WHERE created_at >= ?
	),
	ranked AS (
		SELECT *, ROW_NUMBER() OVER (ORDER BY risk_score DESC, application_id ASC) AS rank
		FROM latest WHERE rn = 1
	)`

// GetLeaderboard returns the top limit applications for period. Limits
// outside 1..MaxLimit fall back to DefaultLimit or MaxLimit.
func (s *Service) GetLeaderboard(ctx context.Context, period Period, limit int) (*Board, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	now := s.now()
	board, _, err := s.cache.GetOrCompute(now, period, limit, func() (*Board, error) {
		return s.build(ctx, period, limit, now)
	})
	return board, err
}

func (s *Service) build(ctx context.Context, period Period, limit int, now time.Time) (*Board, error) {
	start := period.Start(now)
	board := &Board{
		Period:       period,
		PeriodStart:  start,
		GeneratedAt:  now.UTC(),
		Distribution: make(map[string]int),
		Entries:      []Entry{},
	}

	rows, err := s.db.QueryContext(ctx, latestRanked+`
		SELECT risk_category, COUNT(*), SUM(risk_score) FROM ranked GROUP BY risk_category`, start)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution: %w", err)
	}
	var scoreSum float64
	for rows.Next() {
		var category string
		var n int
		var sum float64
		if err := rows.Scan(&category, &n, &sum); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan distribution: %w", err)
		}
		board.Distribution[category] = n
		board.Total += n
		scoreSum += sum
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read distribution: %w", err)
	}
	if board.Total > 0 {
		board.AverageRiskScore = scoreSum / float64(board.Total)
	}

	rows, err = s.db.QueryContext(ctx, latestRanked+`
		SELECT rank, application_id, risk_category, risk_level, risk_score, confidence,
			source, model_version, created_at
		FROM ranked ORDER BY rank LIMIT ?`, start, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		board.Entries = append(board.Entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	return board, nil
}

// Rank returns where one application stands in period. It is never cached.
// Applications without an analysis in the period wrap
// analysis.ErrApplicationNotFound.
func (s *Service) Rank(ctx context.Context, id string, period Period) (*Entry, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, latestRanked+`
		SELECT rank, application_id, risk_category, risk_level, risk_score, confidence,
			source, model_version, created_at
		FROM ranked WHERE application_id = ?`, period.Start(s.now()), id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no %s analysis for %s", analysis.ErrApplicationNotFound, period, id)
	}
	return e, err
}

// InvalidateAll drops cached boards, e.g. after data is deleted.
func (s *Service) InvalidateAll() int {
	return s.cache.InvalidateAll()
}

// GetCacheStats returns board cache statistics.
func (s *Service) GetCacheStats() map[string]interface{} {
	st := s.cache.Stats()
	return map[string]interface{}{
		"boards": st.Size,
		"hits":   st.Hits,
		"misses": st.Misses,
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var version sql.NullString
	var at database.Timestamp
	err := row.Scan(&e.Rank, &e.ApplicationID, &e.RiskCategory, &e.RiskLevel,
		&e.RiskScore, &e.Confidence, &e.Source, &version, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
	}
	e.ModelVersion = version.String
	e.AnalyzedAt = at.Time
	return &e, nil
}
