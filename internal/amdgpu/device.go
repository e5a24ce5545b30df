package amdgpu

import (
	"errors"
	"fmt"

	"github.com/gpufand/gpufand/internal/util"
)

const (
	MinPwmValue = 0
	MaxPwmValue = 255
)

// Channel identifies one of the temperature sensors an amdgpu card may expose.
type Channel string

const (
	// ChannelEdge is the die temperature
	ChannelEdge Channel = "edge"
	// ChannelJunction is the hotspot temperature
	ChannelJunction Channel = "junction"
	// ChannelMem is the memory temperature
	ChannelMem Channel = "mem"
)

var Channels = []Channel{ChannelEdge, ChannelJunction, ChannelMem}

// Mode is the fan control ownership state of a card, as written
// to the pwm1_enable attribute of the amdgpu hwmon interface.
type Mode int

const (
	// ModeManual means this daemon commands the pwm value directly
	ModeManual Mode = 1
	// ModeAuto means the card firmware governs fan speed on its own
	ModeAuto Mode = 2
)

var ErrUnsupportedChannel = errors.New("temperature channel not supported by device")

// DeviceHandle abstracts the sensor/actuator endpoints of a single card.
// Each handle is owned by exactly one controller.
type DeviceHandle interface {
	GetId() string

	// Temperature returns the current reading of the given channel in °C.
	// Returns ErrUnsupportedChannel for channels the card does not expose.
	Temperature(channel Channel) (int, error)

	// Pwm returns the currently applied pwm duty-cycle value
	Pwm() (int, error)
	SetPwm(pwm int) error

	PwmMin() int
	PwmMax() int

	SetMode(mode Mode) error
}

// HwMonDevice is a DeviceHandle backed by the amdgpu hwmon sysfs interface.
type HwMonDevice struct {
	Identifier string
	HwMonPath  string
	TempInputs map[Channel]string
}

func (d HwMonDevice) GetId() string {
	return d.Identifier
}

func (d HwMonDevice) Temperature(channel Channel) (int, error) {
	inputPath, ok := d.TempInputs[channel]
	if !ok {
		return 0, fmt.Errorf("%s: %w", channel, ErrUnsupportedChannel)
	}
	milliDegrees, err := util.ReadIntFromFile(inputPath)
	if err != nil {
		return 0, err
	}
	// sensors report milli-degrees, the scaling truncates toward zero
	return milliDegrees / 1000, nil
}

func (d HwMonDevice) Pwm() (int, error) {
	return util.ReadIntFromFile(d.HwMonPath + "/pwm1")
}

func (d HwMonDevice) SetPwm(pwm int) error {
	return util.WriteIntToFile(pwm, d.HwMonPath+"/pwm1")
}

func (d HwMonDevice) PwmMin() int {
	value, err := util.ReadIntFromFile(d.HwMonPath + "/pwm1_min")
	if err != nil {
		return MinPwmValue
	}
	return value
}

func (d HwMonDevice) PwmMax() int {
	value, err := util.ReadIntFromFile(d.HwMonPath + "/pwm1_max")
	if err != nil {
		return MaxPwmValue
	}
	return value
}

func (d HwMonDevice) SetMode(mode Mode) error {
	return util.WriteIntToFile(int(mode), d.HwMonPath+"/pwm1_enable")
}

// GetMode reads the current control ownership state of the card.
func (d HwMonDevice) GetMode() (Mode, error) {
	value, err := util.ReadIntFromFile(d.HwMonPath + "/pwm1_enable")
	if err != nil {
		return 0, err
	}
	return Mode(value), nil
}
