package forecast

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainGBDTEmptyInput(t *testing.T) {
	t.Parallel()

	_, err := TrainGBDT(nil, nil, defaultRounds, defaultDepth, defaultShrinkage)
	assert.Error(t, err)

	_, err = TrainGBDT([][]float64{{1}}, []float64{1, 2}, defaultRounds, defaultDepth, defaultShrinkage)
	assert.Error(t, err)
}

func TestGBDTFitsStepFunction(t *testing.T) {
	t.Parallel()

	// y = 100 for x < 10, 500 otherwise. A tree ensemble should recover the
	// step almost exactly.
	var X [][]float64
	var y []float64
	for i := 0; i < 20; i++ {
		X = append(X, []float64{float64(i)})
		if i < 10 {
			y = append(y, 100)
		} else {
			y = append(y, 500)
		}
	}

	model, err := TrainGBDT(X, y, defaultRounds, defaultDepth, defaultShrinkage)
	require.NoError(t, err)

	assert.InDelta(t, 100, model.Predict([]float64{3}), 5)
	assert.InDelta(t, 500, model.Predict([]float64{15}), 5)
}

func TestGBDTConstantTarget(t *testing.T) {
	t.Parallel()

	X := [][]float64{{1}, {2}, {3}, {4}}
	y := []float64{1500, 1500, 1500, 1500}

	model, err := TrainGBDT(X, y, defaultRounds, defaultDepth, defaultShrinkage)
	require.NoError(t, err)
	assert.InDelta(t, 1500, model.Predict([]float64{2.5}), 0.01)
	assert.InDelta(t, 1500, model.Predict([]float64{99}), 0.01)
}

func TestGBDTReducesTrainingError(t *testing.T) {
	t.Parallel()

	// Noiseless linear target over two features.
	var X [][]float64
	var y []float64
	for i := 0; i < 30; i++ {
		x1 := float64(i % 7)
		x2 := float64(i % 12)
		X = append(X, []float64{x1, x2})
		y = append(y, 1000+150*x1+40*x2)
	}

	model, err := TrainGBDT(X, y, defaultRounds, defaultDepth, defaultShrinkage)
	require.NoError(t, err)

	base := mean(y)
	var sseModel, sseBase float64
	for i := range y {
		dm := model.Predict(X[i]) - y[i]
		db := base - y[i]
		sseModel += dm * dm
		sseBase += db * db
	}
	assert.Less(t, sseModel, sseBase/10)
	assert.False(t, math.IsNaN(sseModel))
}
