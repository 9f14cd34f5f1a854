package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeanAndStdDev(t *testing.T) {
	data := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 5.0, Mean(data), 0.0001)
	assert.InDelta(t, 2.138, StdDev(data), 0.001)

	assert.Zero(t, Mean(nil))
	assert.Zero(t, StdDev(nil))
}

func TestReturns(t *testing.T) {
	prices := []float64{100, 110, 99}
	returns := Returns(prices)
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 0.0001)
	assert.InDelta(t, -0.10, returns[1], 0.0001)

	assert.Empty(t, Returns([]float64{100}))
}

func TestPercentile(t *testing.T) {
	history := []float64{10, 20, 30, 40, 50}
	assert.InDelta(t, 60.0, Percentile(history, 35), 0.0001)
	assert.InDelta(t, 0.0, Percentile(history, 5), 0.0001)
	assert.InDelta(t, 100.0, Percentile(history, 60), 0.0001)
	assert.Zero(t, Percentile(nil, 10))
}

func TestRSI_RequiresEnoughData(t *testing.T) {
	assert.Nil(t, RSI([]float64{1, 2, 3}, 14))

	closes := make([]float64, 0, 30)
	price := 100.0
	for i := 0; i < 30; i++ {
		price += 1.0 // steady uptrend
		closes = append(closes, price)
	}
	rsi := RSI(closes, 14)
	require.NotNil(t, rsi)
	assert.Greater(t, *rsi, 70.0, "steady uptrend reads overbought")
}
