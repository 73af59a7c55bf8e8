package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRealizedPnLSignMatchesDirection(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10.0, RealizedPnL(true, 100, 110, 1))
	assert.Equal(t, 10.0, RealizedPnL(false, 100, 90, 1))
	assert.Equal(t, -10.0, RealizedPnL(true, 100, 90, 1))
	assert.Equal(t, -5.0, RealizedPnL(false, 100, 110, 0.5))
}

func TestROE(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 50.0, ROE(10, 20))
	assert.Equal(t, -25.0, ROE(-5, 20))
	assert.Zero(t, ROE(10, 0))
}

func TestMargin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 20.0, Margin(100, 5))
	assert.Equal(t, 100.0, Margin(100, 0))
}
