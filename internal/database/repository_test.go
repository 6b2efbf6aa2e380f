package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/dataset"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDB(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func TestRepository_ApplicationRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	records := dataset.Synthesize(10, 4)

	require.NoError(t, repo.SaveApplications(ctx, records))
	n, err := repo.CountApplications(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)

	got, err := repo.Get(ctx, records[3].ID)
	require.NoError(t, err)
	assert.Equal(t, records[3].ID, got.ID)
	assert.Equal(t, records[3].CreditLimit, got.CreditLimit)
	assert.Equal(t, records[3].LoanPurpose, got.LoanPurpose)
	assert.True(t, records[3].AppliedAt.Equal(got.AppliedAt))

	all, err := repo.ListApplications(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 10)
}

func TestRepository_SaveApplicationReplaces(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	rec := types.ApplicationRecord{ID: "APP-1", GrossMonthlyIncome: types.Float(1000)}

	require.NoError(t, repo.SaveApplication(ctx, &rec))
	rec.GrossMonthlyIncome = types.Float(2000)
	require.NoError(t, repo.SaveApplication(ctx, &rec))

	got, err := repo.Get(ctx, "APP-1")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, *got.GrossMonthlyIncome)

	assert.Error(t, repo.SaveApplication(ctx, &types.ApplicationRecord{}))
}

func TestRepository_GetUnknown(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get(context.Background(), "APP-missing")
	assert.ErrorIs(t, err, analysis.ErrApplicationNotFound)

	_, err = repo.LatestAnalysis(context.Background(), "APP-missing")
	assert.ErrorIs(t, err, analysis.ErrApplicationNotFound)
}

func TestRepository_AnalysisHistory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &analysis.AnalysisResult{ApplicationID: "APP-1", Source: analysis.SourceFallback, RiskCategory: "Risky", RiskLevel: 2, Confidence: 0.6}
	second := &analysis.AnalysisResult{ApplicationID: "APP-1", Source: analysis.SourceModel, RiskCategory: "Secure", RiskLevel: 0, Confidence: 0.8}
	other := &analysis.AnalysisResult{ApplicationID: "APP-2", Source: analysis.SourceModel, RiskCategory: "Secure", Confidence: 0.7}

	require.NoError(t, repo.SaveAnalysis(ctx, first))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, repo.SaveAnalysis(ctx, second))
	require.NoError(t, repo.SaveAnalysis(ctx, other))

	latest, err := repo.LatestAnalysis(ctx, "APP-1")
	require.NoError(t, err)
	assert.Equal(t, analysis.SourceModel, latest.Source)
	assert.Equal(t, "Secure", latest.RiskCategory)

	dist, err := repo.CategoryDistribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, []CategoryCount{{RiskCategory: "Risky", Count: 1}, {RiskCategory: "Secure", Count: 2}}, dist)
}

func TestRepository_ServesAnalyzer(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	records := dataset.Synthesize(300, 2)
	require.NoError(t, repo.SaveApplications(ctx, records))

	cfg := analysis.DefaultConfig()
	cfg.Explain.Samples = 300
	a, err := analysis.NewAnalyzer(cfg, repo, analysis.WithResultSink(repo))
	require.NoError(t, err)
	_, err = a.Retrain(ctx, records)
	require.NoError(t, err)

	result, err := a.Analyze(ctx, records[0].ID)
	require.NoError(t, err)

	stored, err := repo.LatestAnalysis(ctx, records[0].ID)
	require.NoError(t, err)
	assert.Equal(t, result.RiskCategory, stored.RiskCategory)
	assert.Equal(t, result.ModelVersion, stored.ModelVersion)
}
