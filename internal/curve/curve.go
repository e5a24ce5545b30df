package curve

import (
	"errors"
	"fmt"
)

var (
	ErrTooFewPoints       = errors.New("curve needs at least two points")
	ErrBelowMin           = errors.New("curve speed below device minimum pwm")
	ErrAboveMax           = errors.New("curve speed above device maximum pwm")
	ErrTempsNotMonotonic  = errors.New("curve temperatures must be strictly increasing")
	ErrSpeedsNotMonotonic = errors.New("curve speeds must not decrease")
)

// Point is a single calibration point of a fan curve,
// mapping a temperature (in °C) to a pwm duty-cycle value.
type Point struct {
	Temperature int `json:"temperature"`
	Speed       int `json:"speed"`
}

// FanCurve is an immutable, ordered set of calibration points.
// The temperature and speed projections are derived once at
// construction time.
type FanCurve struct {
	points       []Point
	temperatures []int
	speeds       []int
}

func NewFanCurve(points []Point) (*FanCurve, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}

	c := &FanCurve{
		points:       make([]Point, len(points)),
		temperatures: make([]int, len(points)),
		speeds:       make([]int, len(points)),
	}
	copy(c.points, points)
	for i, point := range points {
		c.temperatures[i] = point.Temperature
		c.speeds[i] = point.Speed
	}
	return c, nil
}

func (c *FanCurve) Points() []Point {
	points := make([]Point, len(c.points))
	copy(points, c.points)
	return points
}

func (c *FanCurve) MinTemperature() int { return c.temperatures[0] }
func (c *FanCurve) MaxTemperature() int { return c.temperatures[len(c.temperatures)-1] }
func (c *FanCurve) MinSpeed() int       { return c.speeds[0] }
func (c *FanCurve) MaxSpeed() int       { return c.speeds[len(c.speeds)-1] }

// Validate checks the curve against the pwm bounds reported by the device.
// It fails fast on the first violation. A curve must pass validation before
// it is ever used for interpolation and before its device is switched to
// manual control.
func (c *FanCurve) Validate(pwmMin int, pwmMax int) error {
	for _, point := range c.points {
		if point.Speed < pwmMin {
			return fmt.Errorf("point (%d, %d): %w (min: %d)", point.Temperature, point.Speed, ErrBelowMin, pwmMin)
		}
	}
	for _, point := range c.points {
		if point.Speed > pwmMax {
			return fmt.Errorf("point (%d, %d): %w (max: %d)", point.Temperature, point.Speed, ErrAboveMax, pwmMax)
		}
	}
	for i := 1; i < len(c.points); i++ {
		if c.temperatures[i] <= c.temperatures[i-1] {
			return fmt.Errorf("points %d and %d: %w", i-1, i, ErrTempsNotMonotonic)
		}
	}
	for i := 1; i < len(c.points); i++ {
		if c.speeds[i] < c.speeds[i-1] {
			return fmt.Errorf("points %d and %d: %w", i-1, i, ErrSpeedsNotMonotonic)
		}
	}
	return nil
}

// Interpolate returns the pwm value for the given temperature (in °C).
// Temperatures outside the curve's domain saturate at the lowest/highest
// configured speed. In between, the value is linearly interpolated on the
// segment ending at the first point whose temperature is >= the input.
// The division truncates toward zero, the hardware pwm field only accepts
// integers.
func (c *FanCurve) Interpolate(temperature int) int {
	last := len(c.points) - 1
	if temperature >= c.temperatures[last] {
		return c.speeds[last]
	}
	if temperature <= c.temperatures[0] {
		return c.speeds[0]
	}

	i := 1
	for c.temperatures[i] < temperature {
		i++
	}

	lowTemp, highTemp := c.temperatures[i-1], c.temperatures[i]
	lowSpeed, highSpeed := c.speeds[i-1], c.speeds[i]
	return lowSpeed + (temperature-lowTemp)*(highSpeed-lowSpeed)/(highTemp-lowTemp)
}
