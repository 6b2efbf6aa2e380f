package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/database"
)

func newTestService(t *testing.T) (*Service, *database.Repository, *database.DB) {
	t.Helper()
	db, err := database.NewDB(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, time.Minute), database.NewRepository(db), db
}

func save(t *testing.T, repo *database.Repository, id, category string, score float64) {
	t.Helper()
	require.NoError(t, repo.SaveAnalysis(context.Background(), &analysis.AnalysisResult{
		ApplicationID: id,
		Source:        analysis.SourceModel,
		ModelVersion:  "v1",
		RiskCategory:  category,
		RiskScore:     score,
		Confidence:    1 - score,
	}))
}

func TestParsePeriod(t *testing.T) {
	tests := []struct {
		in      string
		want    Period
		wantErr bool
	}{
		{"", Weekly, false},
		{"daily", Daily, false},
		{"all_time", AllTime, false},
		{"yearly", "", true},
		{"Daily", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePeriod(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidPeriod, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestPeriod_Start(t *testing.T) {
	// a Sunday afternoon
	now := time.Date(2025, 8, 17, 15, 30, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 8, 17, 0, 0, 0, 0, time.UTC), Daily.Start(now))
	assert.Equal(t, time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC), Weekly.Start(now))
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), Monthly.Start(now))
	assert.True(t, AllTime.Start(now).IsZero())

	monday := time.Date(2025, 8, 18, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, monday, Weekly.Start(monday.Add(time.Hour)))
}

func TestGetLeaderboard_RanksLatestAnalysis(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	save(t, repo, "APP-1", "Secure", 0.1)
	save(t, repo, "APP-2", "Critical", 0.8)
	save(t, repo, "APP-3", "Risky", 0.5)
	// a newer analysis replaces the earlier one
	time.Sleep(5 * time.Millisecond)
	save(t, repo, "APP-1", "Default", 0.9)

	board, err := svc.GetLeaderboard(ctx, AllTime, 0)
	require.NoError(t, err)

	assert.Equal(t, AllTime, board.Period)
	assert.Equal(t, 3, board.Total)
	assert.Equal(t, map[string]int{"Default": 1, "Critical": 1, "Risky": 1}, board.Distribution)
	assert.InDelta(t, (0.9+0.8+0.5)/3, board.AverageRiskScore, 1e-9)
	require.Len(t, board.Entries, 3)

	ids := []string{}
	for i, e := range board.Entries {
		assert.Equal(t, i+1, e.Rank)
		assert.Equal(t, "v1", e.ModelVersion)
		assert.False(t, e.AnalyzedAt.IsZero())
		ids = append(ids, e.ApplicationID)
	}
	assert.Equal(t, []string{"APP-1", "APP-2", "APP-3"}, ids)
	assert.Equal(t, "Default", board.Entries[0].RiskCategory)
}

func TestGetLeaderboard_LimitAndCache(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	save(t, repo, "APP-1", "Secure", 0.2)
	save(t, repo, "APP-2", "Secure", 0.2)

	board, err := svc.GetLeaderboard(ctx, Daily, 1)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.Equal(t, 2, board.Total)
	assert.Equal(t, "APP-1", board.Entries[0].ApplicationID, "ties go to the lower id")

	save(t, repo, "APP-3", "Default", 0.9)
	cached, err := svc.GetLeaderboard(ctx, Daily, 1)
	require.NoError(t, err)
	assert.Same(t, board, cached)

	assert.Equal(t, 1, svc.InvalidateAll())
	fresh, err := svc.GetLeaderboard(ctx, Daily, 1)
	require.NoError(t, err)
	assert.Equal(t, "APP-3", fresh.Entries[0].ApplicationID)

	stats := svc.GetCacheStats()
	assert.Equal(t, int64(1), stats["hits"])
}

func TestGetLeaderboard_CacheExpiresWithWindow(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	now := time.Now()
	svc.now = func() time.Time { return now }

	save(t, repo, "APP-1", "Secure", 0.2)
	first, err := svc.GetLeaderboard(ctx, AllTime, 10)
	require.NoError(t, err)

	save(t, repo, "APP-2", "Risky", 0.6)
	now = now.Add(2 * time.Minute)
	second, err := svc.GetLeaderboard(ctx, AllTime, 10)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Len(t, second.Entries, 2)
}

func TestGetLeaderboard_PeriodExcludesOldAnalyses(t *testing.T) {
	svc, repo, db := newTestService(t)
	ctx := context.Background()

	save(t, repo, "APP-new", "Risky", 0.5)
	_, err := db.ExecContext(ctx, `INSERT INTO analyses
		(id, application_id, model_version, source, risk_category, risk_level, confidence, risk_score, payload, created_at)
		VALUES ('old', 'APP-old', 'v0', 'model', 'Default', 4, 0.1, 0.9, '{}', ?)`,
		time.Now().UTC().AddDate(0, -2, 0))
	require.NoError(t, err)

	monthly, err := svc.GetLeaderboard(ctx, Monthly, 10)
	require.NoError(t, err)
	require.Len(t, monthly.Entries, 1)
	assert.Equal(t, "APP-new", monthly.Entries[0].ApplicationID)

	all, err := svc.GetLeaderboard(ctx, AllTime, 10)
	require.NoError(t, err)
	require.Len(t, all.Entries, 2)
	assert.Equal(t, "APP-old", all.Entries[0].ApplicationID)
}

func TestGetLeaderboard_InvalidPeriod(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.GetLeaderboard(context.Background(), "yearly", 10)
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestRank(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	save(t, repo, "APP-1", "Secure", 0.1)
	save(t, repo, "APP-2", "Critical", 0.7)

	e, err := svc.Rank(ctx, "APP-1", Weekly)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Rank)
	assert.Equal(t, "Secure", e.RiskCategory)
	assert.InDelta(t, 0.1, e.RiskScore, 1e-12)

	_, err = svc.Rank(ctx, "APP-9", Weekly)
	assert.ErrorIs(t, err, analysis.ErrApplicationNotFound)

	_, err = svc.Rank(ctx, "APP-1", "hourly")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}
