package curve

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func createCurve(t *testing.T, points []Point) *FanCurve {
	c, err := NewFanCurve(points)
	assert.NoError(t, err)
	return c
}

func TestNewFanCurveTooFewPoints(t *testing.T) {
	// GIVEN
	points := []Point{
		{Temperature: 50, Speed: 100},
	}

	// WHEN
	c, err := NewFanCurve(points)

	// THEN
	assert.Nil(t, c)
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestValidateSpeedBelowMin(t *testing.T) {
	// GIVEN
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 50},
		{Temperature: 90, Speed: 255},
	})

	// WHEN
	err := c.Validate(100, 255)

	// THEN
	assert.ErrorIs(t, err, ErrBelowMin)
}

func TestValidateSpeedAboveMax(t *testing.T) {
	// GIVEN
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 100},
		{Temperature: 90, Speed: 300},
	})

	// WHEN
	err := c.Validate(100, 255)

	// THEN
	assert.ErrorIs(t, err, ErrAboveMax)
}

func TestValidateTempsNotMonotonic(t *testing.T) {
	// GIVEN
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 100},
		{Temperature: 40, Speed: 150},
		{Temperature: 90, Speed: 255},
	})

	// WHEN
	err := c.Validate(0, 255)

	// THEN
	assert.ErrorIs(t, err, ErrTempsNotMonotonic)
}

func TestValidateSpeedsNotMonotonic(t *testing.T) {
	// GIVEN
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 150},
		{Temperature: 60, Speed: 100},
		{Temperature: 90, Speed: 255},
	})

	// WHEN
	err := c.Validate(0, 255)

	// THEN
	assert.ErrorIs(t, err, ErrSpeedsNotMonotonic)
}

func TestValidateBoundsCheckedBeforeMonotonicity(t *testing.T) {
	// GIVEN a curve that violates both the bounds and the temp ordering
	c := createCurve(t, []Point{
		{Temperature: 60, Speed: 50},
		{Temperature: 40, Speed: 255},
	})

	// WHEN
	err := c.Validate(100, 255)

	// THEN the bounds violation wins, checks run in order
	assert.ErrorIs(t, err, ErrBelowMin)
}

func TestValidateOk(t *testing.T) {
	// GIVEN
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 100},
		{Temperature: 60, Speed: 150},
		{Temperature: 90, Speed: 255},
	})

	// WHEN
	err := c.Validate(100, 255)

	// THEN
	assert.NoError(t, err)
}

func TestValidateAllowsTiedSpeeds(t *testing.T) {
	// GIVEN speeds may tie, but never decrease
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 100},
		{Temperature: 60, Speed: 100},
		{Temperature: 90, Speed: 255},
	})

	// WHEN
	err := c.Validate(0, 255)

	// THEN
	assert.NoError(t, err)
}

func TestInterpolate(t *testing.T) {
	// GIVEN
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 100},
		{Temperature: 60, Speed: 150},
		{Temperature: 90, Speed: 255},
	})

	// WHEN / THEN
	assert.Equal(t, 125, c.Interpolate(50))
	assert.Equal(t, 100, c.Interpolate(30))
	assert.Equal(t, 255, c.Interpolate(95))
}

func TestInterpolateSaturation(t *testing.T) {
	// GIVEN
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 100},
		{Temperature: 90, Speed: 255},
	})

	// WHEN / THEN
	assert.Equal(t, 100, c.Interpolate(40))
	assert.Equal(t, 100, c.Interpolate(-10))
	assert.Equal(t, 255, c.Interpolate(90))
	assert.Equal(t, 255, c.Interpolate(200))
}

func TestInterpolateExactBreakpoints(t *testing.T) {
	// GIVEN interior breakpoints are hit via the segment ending at them,
	// the result must still land exactly on the configured speed
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 100},
		{Temperature: 60, Speed: 150},
		{Temperature: 75, Speed: 200},
		{Temperature: 90, Speed: 255},
	})

	// WHEN / THEN
	assert.Equal(t, 150, c.Interpolate(60))
	assert.Equal(t, 200, c.Interpolate(75))
}

func TestInterpolateTruncatesTowardZero(t *testing.T) {
	// GIVEN a segment with slope 50/20: exact value at 41 °C is 102.5
	c := createCurve(t, []Point{
		{Temperature: 40, Speed: 100},
		{Temperature: 60, Speed: 150},
	})

	// WHEN
	result := c.Interpolate(41)

	// THEN truncated, not rounded
	assert.Equal(t, 102, result)

	// 43 °C -> 107.5 -> 107
	assert.Equal(t, 107, c.Interpolate(43))
}

func TestInterpolateMonotonicProperty(t *testing.T) {
	// GIVEN random monotonic curves that pass validation
	rnd := rand.New(rand.NewSource(42))

	for run := 0; run < 100; run++ {
		numPoints := 2 + rnd.Intn(6)
		points := make([]Point, 0, numPoints)
		temp := rnd.Intn(30)
		speed := rnd.Intn(64)
		for i := 0; i < numPoints; i++ {
			temp += 1 + rnd.Intn(20)
			speed += rnd.Intn(48)
			if speed > 255 {
				speed = 255
			}
			points = append(points, Point{Temperature: temp, Speed: speed})
		}

		c := createCurve(t, points)
		assert.NoError(t, c.Validate(0, 255))

		// THEN interpolation is monotonically non-decreasing in temperature
		previous := c.Interpolate(-10)
		for temperature := -9; temperature < 160; temperature++ {
			current := c.Interpolate(temperature)
			assert.GreaterOrEqual(t, current, previous)
			previous = current
		}

		// and saturates at the curve bounds
		assert.Equal(t, c.MinSpeed(), c.Interpolate(c.MinTemperature()-1))
		assert.Equal(t, c.MaxSpeed(), c.Interpolate(c.MaxTemperature()+1))
	}
}
