package controller

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/asecurityteam/rolling"
	"github.com/gpufand/gpufand/internal/amdgpu"
	"github.com/gpufand/gpufand/internal/curve"
	"github.com/gpufand/gpufand/internal/ui"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// ControllerMap holds all active controllers keyed by card id,
// for the statistics collectors and the REST api.
var ControllerMap = cmap.New[*Controller]()

// Mode is the control ownership state of a controller. Transitions are
// one-directional per process: Uninitialized -> Manual once on successful
// activation, Manual -> Auto at most once on shutdown.
type Mode int

const (
	ModeUninitialized Mode = iota
	ModeManual
	ModeAuto
)

func (m Mode) String() string {
	switch m {
	case ModeManual:
		return "manual"
	case ModeAuto:
		return "auto"
	default:
		return "uninitialized"
	}
}

const temperatureWindowSize = 10

// Controller owns one card and its fan curve. It computes and applies the
// next pwm value on each tick and drives the manual/auto mode transitions.
type Controller struct {
	device     amdgpu.DeviceHandle
	curve      *curve.FanCurve
	hysteresis int

	// mu guards the mutable state below, the statistics collectors and the
	// api read snapshots concurrently with the tick loop
	mu                 sync.Mutex
	mode               Mode
	lastSetPwm         *int
	lastTemperature    int
	temperatureWindow  *rolling.PointPolicy
	temperatureSamples int
	pwmWriteCount      int
	unexpectedPwmCount int
}

// Snapshot is a point-in-time copy of a controller's state.
type Snapshot struct {
	Id                 string        `json:"id"`
	Mode               string        `json:"mode"`
	Temperature        int           `json:"temperature"`
	TemperatureAvg     float64       `json:"temperatureAvg"`
	LastSetPwm         *int          `json:"lastSetPwm"`
	PwmWriteCount      int           `json:"pwmWriteCount"`
	UnexpectedPwmCount int           `json:"unexpectedPwmCount"`
	Curve              []curve.Point `json:"curve"`
}

func NewController(device amdgpu.DeviceHandle, fanCurve *curve.FanCurve, hysteresis int) *Controller {
	return &Controller{
		device:            device,
		curve:             fanCurve,
		hysteresis:        hysteresis,
		temperatureWindow: rolling.NewPointPolicy(rolling.NewWindow(temperatureWindowSize)),
	}
}

func (c *Controller) GetId() string {
	return c.device.GetId()
}

// Activate validates the curve against the device's reported pwm bounds and
// switches the card to manual fan control. On failure the controller stays
// uninitialized and the device is left untouched.
func (c *Controller) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeUninitialized {
		return nil
	}

	if err := c.curve.Validate(c.device.PwmMin(), c.device.PwmMax()); err != nil {
		return fmt.Errorf("curve of %s: %w", c.GetId(), err)
	}

	if err := c.device.SetMode(amdgpu.ModeManual); err != nil {
		return fmt.Errorf("enabling manual fan control on %s: %w", c.GetId(), err)
	}

	c.mode = ModeManual
	ui.Info("Fan control of %s is now manual", c.GetId())
	return nil
}

// Tick reads the card's temperature channels, interpolates the target pwm
// and applies it if it differs from the current value by more than the
// hysteresis step. A non-nil error is fatal to the whole process.
func (c *Controller) Tick() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode != ModeManual {
		return nil
	}

	controlTemperature := c.controlTemperature()
	c.lastTemperature = controlTemperature
	c.temperatureWindow.Append(float64(controlTemperature))
	c.temperatureSamples++

	target := c.curve.Interpolate(controlTemperature)

	current, err := c.device.Pwm()
	if err != nil {
		if c.lastSetPwm == nil {
			// no reference value yet, command the target directly
			return c.setPwm(target)
		}
		current = *c.lastSetPwm
	}

	if c.lastSetPwm != nil && *c.lastSetPwm != current {
		ui.Warning("PWM of %s was changed by a third party! Last set value was: %d but is now: %d",
			c.GetId(), *c.lastSetPwm, current)
		c.unexpectedPwmCount++
	}

	if target > current+c.hysteresis || target < current-c.hysteresis {
		ui.Debug("Controller %s: temp %d°, pwm %d -> %d", c.GetId(), controlTemperature, current, target)
		return c.setPwm(target)
	}

	ui.Debug("Controller %s: temp %d°, pwm %d, target %d within hysteresis", c.GetId(), controlTemperature, current, target)
	return nil
}

// ToAutoMode hands fan control back to the card firmware. Idempotent, and
// safe to call on a controller that was never activated.
func (c *Controller) ToAutoMode() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.mode == ModeAuto {
		return nil
	}

	err := c.device.SetMode(amdgpu.ModeAuto)
	c.mode = ModeAuto
	if err != nil {
		return fmt.Errorf("restoring automatic fan control on %s: %w", c.GetId(), err)
	}
	ui.Info("Fan control of %s is back to automatic", c.GetId())
	return nil
}

func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastSetPwm *int
	if c.lastSetPwm != nil {
		value := *c.lastSetPwm
		lastSetPwm = &value
	}

	temperatureAvg := 0.0
	if c.temperatureSamples > 0 {
		temperatureAvg = c.temperatureWindow.Reduce(rolling.Avg)
	}

	return Snapshot{
		Id:                 c.GetId(),
		Mode:               c.mode.String(),
		Temperature:        c.lastTemperature,
		TemperatureAvg:     temperatureAvg,
		LastSetPwm:         lastSetPwm,
		PwmWriteCount:      c.pwmWriteCount,
		UnexpectedPwmCount: c.unexpectedPwmCount,
		Curve:              c.curve.Points(),
	}
}

// controlTemperature returns the maximum across the available channels.
// Either compute or memory thermal load can dominate depending on the
// workload, the hotter one governs. Channels the card does not expose
// read as 0 and never fail the tick.
func (c *Controller) controlTemperature() int {
	max := 0
	for _, channel := range amdgpu.Channels {
		value, err := c.device.Temperature(channel)
		if err != nil {
			if !errors.Is(err, amdgpu.ErrUnsupportedChannel) {
				ui.Debug("Error reading %s channel of %s: %v", channel, c.GetId(), err)
			}
			continue
		}
		if value > max {
			max = value
		}
	}
	return max
}

func (c *Controller) setPwm(target int) error {
	err := c.device.SetPwm(target)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("writing pwm of %s: %w, gpufand needs to run as root to control fan speeds", c.GetId(), err)
		}
		// transient write errors do not stop the control loop
		ui.Error("Error setting pwm of %s: %v", c.GetId(), err)
		return nil
	}

	value := target
	c.lastSetPwm = &value
	c.pwmWriteCount++
	return nil
}
