package sensors

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedReadings(t *testing.T) {
	s := NewSimulated(1)
	s.FailureRate = 0
	require.NoError(t, s.Begin())

	for i := 0; i < 50; i++ {
		h := s.ReadHumidity()
		tc := s.ReadTemperature()
		assert.InDelta(t, 60, h, 2)
		assert.InDelta(t, 20, tc, 0.5)
		assert.InDelta(t, HeatIndex(tc, h, false), s.ComputeHeatIndex(false), 0.0001)
	}
}

func TestSimulatedFailures(t *testing.T) {
	s := NewSimulated(1)
	s.FailureRate = 1

	assert.True(t, math.IsNaN(s.ReadHumidity()))
	assert.True(t, math.IsNaN(s.ReadTemperature()))
	assert.True(t, math.IsNaN(s.ComputeHeatIndex(false)))
}
