package privacy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/analysis"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/database"
	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

type fakeCache struct{ dropped []string }

func (f *fakeCache) Invalidate(id string) bool {
	f.dropped = append(f.dropped, id)
	return true
}

func setup(t *testing.T, retention time.Duration) (*Service, *database.Repository, *fakeCache) {
	t.Helper()
	db, err := database.NewDB(context.Background(), t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fc := &fakeCache{}
	return NewService(db, fc, retention), database.NewRepository(db), fc
}

func seed(t *testing.T, repo *database.Repository, id string, analyses int) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.SaveApplication(ctx, &types.ApplicationRecord{ID: id, GrossMonthlyIncome: types.Float(1000)}))
	for i := 0; i < analyses; i++ {
		require.NoError(t, repo.SaveAnalysis(ctx, &analysis.AnalysisResult{
			ApplicationID: id, Source: analysis.SourceFallback, RiskCategory: "Risky", Confidence: 0.6,
		}))
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("APP-20250101-1234")
	assert.Len(t, a, 12)
	assert.Equal(t, a, Fingerprint("APP-20250101-1234"))
	assert.NotEqual(t, a, Fingerprint("APP-20250101-1235"))
	assert.NotContains(t, a, "APP")
}

func TestDeleteApplication(t *testing.T) {
	svc, repo, fc := setup(t, 0)
	ctx := context.Background()
	seed(t, repo, "APP-1", 3)
	seed(t, repo, "APP-2", 1)

	got, err := svc.DeleteApplication(ctx, "APP-1")
	require.NoError(t, err)
	assert.Equal(t, &Erasure{ApplicationID: "APP-1", Applications: 1, Analyses: 3, CacheInvalidated: true}, got)
	assert.Equal(t, []string{"APP-1"}, fc.dropped)

	_, err = repo.Get(ctx, "APP-1")
	assert.ErrorIs(t, err, analysis.ErrApplicationNotFound)
	_, err = repo.LatestAnalysis(ctx, "APP-1")
	assert.ErrorIs(t, err, analysis.ErrApplicationNotFound)

	_, err = repo.LatestAnalysis(ctx, "APP-2")
	assert.NoError(t, err, "other applications are untouched")

	_, err = svc.DeleteApplication(ctx, "APP-1")
	assert.ErrorIs(t, err, analysis.ErrApplicationNotFound)
}

func TestFootprint(t *testing.T) {
	svc, repo, _ := setup(t, 30*24*time.Hour)
	ctx := context.Background()

	seed(t, repo, "APP-1", 2)
	fp, err := svc.Footprint(ctx, "APP-1")
	require.NoError(t, err)
	assert.True(t, fp.Stored)
	assert.Equal(t, 2, fp.Analyses)
	assert.Equal(t, 30, fp.RetentionDays)
	require.NotNil(t, fp.FirstAnalysis)
	require.NotNil(t, fp.LastAnalysis)
	assert.False(t, fp.LastAnalysis.Before(*fp.FirstAnalysis))
	assert.WithinDuration(t, time.Now(), *fp.LastAnalysis, time.Minute)

	seed(t, repo, "APP-2", 0)
	fp, err = svc.Footprint(ctx, "APP-2")
	require.NoError(t, err)
	assert.Zero(t, fp.Analyses)
	assert.Nil(t, fp.FirstAnalysis)

	_, err = svc.Footprint(ctx, "APP-missing")
	assert.ErrorIs(t, err, analysis.ErrApplicationNotFound)
}

func TestPurgeExpired(t *testing.T) {
	svc, repo, _ := setup(t, 24*time.Hour)
	ctx := context.Background()
	seed(t, repo, "APP-1", 2)

	n, err := svc.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.PurgeExpired(ctx, time.Now().Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.Get(ctx, "APP-1")
	assert.NoError(t, err, "applications outlive their analyses")
}

func TestRetentionInfo(t *testing.T) {
	svc, _, _ := setup(t, 0)
	assert.Equal(t, 365, svc.RetentionDays())
	assert.Equal(t, 365, svc.GetRetentionInfo()["analysis_retention_days"])
}
