package model

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/features"
)

// ordinalData draws a latent score from two informative columns plus noise
// and cuts it into classes; the third column is pure noise.
func ordinalData(n, classes int, seed int64) (features.Matrix, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make(features.Matrix, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		a := rng.NormFloat64()
		b := rng.NormFloat64() * 100
		x[i] = []float64{a, b, rng.Float64()}
		latent := 2*a + b/100 + 0.3*rng.NormFloat64()
		c := int(math.Floor((latent + 3) / 6 * float64(classes)))
		if c < 0 {
			c = 0
		}
		if c >= classes {
			c = classes - 1
		}
		y[i] = c
	}
	return x, y
}

func TestTrain_InsufficientData(t *testing.T) {
	x, y := ordinalData(200, 5, 1)

	tests := []struct {
		name string
		x    features.Matrix
		y    []int
		cfg  TrainConfig
	}{
		{"no rows", nil, nil, DefaultTrainConfig()},
		{"label count mismatch", x, y[:10], DefaultTrainConfig()},
		{"thin class", x, y, TrainConfig{Iterations: 1, LearningRate: 0.1, MinPerClass: 1000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Train(tt.x, tt.y, 5, tt.cfg)
			assert.Nil(t, m)
			assert.ErrorIs(t, err, ErrInsufficientTrainingData)
		})
	}
}

func TestTrain_RejectsRaggedRows(t *testing.T) {
	x := features.Matrix{{1, 2}, {1}, {2, 3}, {3, 4}}
	_, err := Train(x, []int{0, 0, 1, 1}, 2, TrainConfig{Iterations: 1, MinPerClass: 1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestPredict_ProbabilitiesFormDistribution(t *testing.T) {
	x, y := ordinalData(500, 5, 2)
	m, err := Train(x, y, 5, DefaultTrainConfig())
	require.NoError(t, err)

	for _, row := range x {
		c, probs, err := m.Predict(row)
		require.NoError(t, err)
		require.Len(t, probs, 5)
		sum := 0.0
		for _, p := range probs {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
		assert.GreaterOrEqual(t, c, 0)
		assert.Less(t, c, 5)
		for _, p := range probs {
			assert.LessOrEqual(t, p, probs[c])
		}
	}
}

func TestTrain_CutsStayOrdered(t *testing.T) {
	x, y := ordinalData(400, 5, 3)
	m, err := Train(x, y, 5, DefaultTrainConfig())
	require.NoError(t, err)

	cuts := m.Cuts()
	require.Len(t, cuts, 4)
	for k := 1; k < len(cuts); k++ {
		assert.Greater(t, cuts[k], cuts[k-1])
	}
}

func TestTrain_LearnsSignal(t *testing.T) {
	x, y := ordinalData(600, 5, 4)

	untrained, err := Train(x, y, 5, TrainConfig{Iterations: 0, MinPerClass: 3})
	require.NoError(t, err)
	trained, err := Train(x, y, 5, DefaultTrainConfig())
	require.NoError(t, err)

	assert.Greater(t, trained.LogLikelihood(x, y), untrained.LogLikelihood(x, y))

	w := trained.Weights()
	assert.Greater(t, math.Abs(w[0]), math.Abs(w[2]))
	assert.Greater(t, math.Abs(w[1]), math.Abs(w[2]))

	correct := 0
	for i, row := range x {
		c, _, err := trained.Predict(row)
		require.NoError(t, err)
		if c == y[i] {
			correct++
		}
	}
	assert.Greater(t, float64(correct)/float64(len(x)), 0.6)
}

func TestTrain_MonotoneInLatentScore(t *testing.T) {
	x, y := ordinalData(600, 5, 5)
	m, err := Train(x, y, 5, DefaultTrainConfig())
	require.NoError(t, err)

	prev := -1
	for a := -3.0; a <= 3.0; a += 0.25 {
		c, _, err := m.Predict([]float64{a, 0, 0.5})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, c, prev)
		prev = c
	}
}

func TestPredictBatch_RowOrderInvariant(t *testing.T) {
	x, y := ordinalData(300, 5, 6)
	m, err := Train(x, y, 5, DefaultTrainConfig())
	require.NoError(t, err)

	batch := features.Matrix{x[0], x[1], x[2]}
	reversed := features.Matrix{x[2], x[1], x[0]}

	forward, err := m.PredictBatch(batch)
	require.NoError(t, err)
	backward, err := m.PredictBatch(reversed)
	require.NoError(t, err)

	assert.Equal(t, forward[0], backward[2])
	assert.Equal(t, forward[1], backward[1])
	assert.Equal(t, forward[2], backward[0])
}

func TestPredict_Errors(t *testing.T) {
	var nilModel *Model
	_, _, err := nilModel.Predict([]float64{1})
	assert.ErrorIs(t, err, ErrNotTrained)

	x, y := ordinalData(200, 3, 7)
	m, err := Train(x, y, 3, TrainConfig{Iterations: 10, LearningRate: 0.5, MinPerClass: 1})
	require.NoError(t, err)

	_, _, err = m.Predict([]float64{1, 2})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Nil(t, m.PredictProba([]float64{1, 2}))
}

func TestTrain_ConstantColumnIsHarmless(t *testing.T) {
	x, y := ordinalData(200, 3, 8)
	for _, row := range x {
		row[2] = 7
	}
	m, err := Train(x, y, 3, DefaultTrainConfig())
	require.NoError(t, err)

	_, probs, err := m.Predict(x[0])
	require.NoError(t, err)
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
	}
}
