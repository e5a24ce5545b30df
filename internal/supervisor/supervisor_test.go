package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/gpufand/gpufand/internal/amdgpu"
	"github.com/gpufand/gpufand/internal/configuration"
	"github.com/gpufand/gpufand/internal/controller"
	"github.com/gpufand/gpufand/internal/curve"
	"github.com/stretchr/testify/assert"
)

type MockDevice struct {
	ID    string
	Temps map[amdgpu.Channel]int

	CurrentPwm int
	MinPwm     int
	MaxPwm     int

	PwmWrites  []int
	ModeWrites []amdgpu.Mode

	PwmWriteErr   error
	FailAutoWrite bool
	// AutoWriteAttempts counts reversion attempts, including failed ones
	AutoWriteAttempts int
}

func (d *MockDevice) GetId() string {
	return d.ID
}

func (d *MockDevice) Temperature(channel amdgpu.Channel) (int, error) {
	value, ok := d.Temps[channel]
	if !ok {
		return 0, fmt.Errorf("%s: %w", channel, amdgpu.ErrUnsupportedChannel)
	}
	return value, nil
}

func (d *MockDevice) Pwm() (int, error) {
	return d.CurrentPwm, nil
}

func (d *MockDevice) SetPwm(pwm int) error {
	if d.PwmWriteErr != nil {
		return d.PwmWriteErr
	}
	d.PwmWrites = append(d.PwmWrites, pwm)
	d.CurrentPwm = pwm
	return nil
}

func (d *MockDevice) PwmMin() int { return d.MinPwm }
func (d *MockDevice) PwmMax() int { return d.MaxPwm }

func (d *MockDevice) SetMode(mode amdgpu.Mode) error {
	if mode == amdgpu.ModeAuto {
		d.AutoWriteAttempts++
		if d.FailAutoWrite {
			return errors.New("write failed")
		}
	}
	d.ModeWrites = append(d.ModeWrites, mode)
	return nil
}

func createMockDevice(id string) *MockDevice {
	return &MockDevice{
		ID:     id,
		Temps:  map[amdgpu.Channel]int{amdgpu.ChannelEdge: 50},
		MinPwm: 0,
		MaxPwm: 255,
	}
}

func testConfig(cards ...configuration.CardConfig) configuration.Configuration {
	return configuration.Configuration{
		Interval:   10 * time.Millisecond,
		Hysteresis: 3,
		Cards:      cards,
	}
}

func testCardConfig(id string) configuration.CardConfig {
	return configuration.CardConfig{
		Id: id,
		Points: []curve.Point{
			{Temperature: 40, Speed: 100},
			{Temperature: 90, Speed: 255},
		},
	}
}

func resolverFor(devices map[string]*MockDevice) DeviceResolver {
	return func(id string) (amdgpu.DeviceHandle, error) {
		device, ok := devices[id]
		if !ok {
			return nil, fmt.Errorf("no amdgpu card found for identifier '%s'", id)
		}
		return device, nil
	}
}

func TestBuildActivatesAllControllers(t *testing.T) {
	// GIVEN
	devices := map[string]*MockDevice{
		"card0": createMockDevice("card0"),
		"card1": createMockDevice("card1"),
	}

	// WHEN
	s, err := Build(testConfig(testCardConfig("card0"), testCardConfig("card1")), resolverFor(devices))

	// THEN
	assert.NoError(t, err)
	controllers := s.Controllers()
	assert.Len(t, controllers, 2)
	for _, c := range controllers {
		assert.Equal(t, controller.ModeManual, c.Mode())
	}
	assert.Equal(t, []amdgpu.Mode{amdgpu.ModeManual}, devices["card0"].ModeWrites)
	assert.Equal(t, []amdgpu.Mode{amdgpu.ModeManual}, devices["card1"].ModeWrites)
}

func TestBuildFailsFastAndRevertsActivatedCards(t *testing.T) {
	// GIVEN card1 has a curve below its device's minimum pwm
	devices := map[string]*MockDevice{
		"card0": createMockDevice("card0"),
		"card1": createMockDevice("card1"),
	}
	devices["card1"].MinPwm = 150

	// WHEN
	s, err := Build(testConfig(testCardConfig("card0"), testCardConfig("card1")), resolverFor(devices))

	// THEN the whole build fails
	assert.Nil(t, s)
	assert.ErrorIs(t, err, curve.ErrBelowMin)

	// and card0, which was already in manual mode, has been reverted
	assert.Equal(t, []amdgpu.Mode{amdgpu.ModeManual, amdgpu.ModeAuto}, devices["card0"].ModeWrites)
	// card1 was never switched to manual
	assert.Empty(t, devices["card1"].ModeWrites)
}

func TestBuildUnknownDevice(t *testing.T) {
	// GIVEN
	devices := map[string]*MockDevice{}

	// WHEN
	s, err := Build(testConfig(testCardConfig("card7")), resolverFor(devices))

	// THEN
	assert.Nil(t, s)
	assert.Error(t, err)
}

func TestRunTicksUntilCancelled(t *testing.T) {
	// GIVEN a hot card so that every tick wants to write
	devices := map[string]*MockDevice{"card0": createMockDevice("card0")}
	devices["card0"].Temps[amdgpu.ChannelEdge] = 90

	s, err := Build(testConfig(testCardConfig("card0")), resolverFor(devices))
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// WHEN
	err = s.Run(ctx)

	// THEN the loop exits cleanly and has actuated the fan
	assert.NoError(t, err)
	assert.NotEmpty(t, devices["card0"].PwmWrites)
	assert.Equal(t, 255, devices["card0"].CurrentPwm)
}

func TestRunStopsOnFatalWriteError(t *testing.T) {
	// GIVEN
	devices := map[string]*MockDevice{"card0": createMockDevice("card0")}
	devices["card0"].Temps[amdgpu.ChannelEdge] = 90
	devices["card0"].PwmWriteErr = fmt.Errorf("open pwm1: %w", os.ErrPermission)

	s, err := Build(testConfig(testCardConfig("card0")), resolverFor(devices))
	assert.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// WHEN
	err = s.Run(ctx)

	// THEN
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestShutdownRevertsEveryCard(t *testing.T) {
	// GIVEN three cards, the middle one fails its reversion write
	devices := map[string]*MockDevice{
		"card0": createMockDevice("card0"),
		"card1": createMockDevice("card1"),
		"card2": createMockDevice("card2"),
	}
	devices["card1"].FailAutoWrite = true

	s, err := Build(testConfig(testCardConfig("card0"), testCardConfig("card1"), testCardConfig("card2")), resolverFor(devices))
	assert.NoError(t, err)

	// WHEN
	s.Shutdown()

	// THEN every device got exactly one reversion attempt
	assert.Equal(t, 1, devices["card0"].AutoWriteAttempts)
	assert.Equal(t, 1, devices["card1"].AutoWriteAttempts)
	assert.Equal(t, 1, devices["card2"].AutoWriteAttempts)

	// and every controller ends up in auto mode
	for _, c := range s.Controllers() {
		assert.Equal(t, controller.ModeAuto, c.Mode())
	}

	// a second shutdown pass does not write again
	s.Shutdown()
	assert.Equal(t, 1, devices["card0"].AutoWriteAttempts)
}
