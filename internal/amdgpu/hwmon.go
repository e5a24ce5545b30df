package amdgpu

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/gpufand/gpufand/internal/util"
	"golang.org/x/exp/slices"
)

const amdgpuChipName = "amdgpu"

var (
	tempInputRegex = regexp.MustCompile(`^temp\d+_input$`)
	cardRegex      = regexp.MustCompile(`^card\d+$`)
)

// GetDevices scans /sys/class/hwmon for amdgpu chips and returns a handle
// per card, sorted by card identifier.
func GetDevices() []*HwMonDevice {
	var devices []*HwMonDevice

	for _, hwmonPath := range util.FindHwmonDevicePaths() {
		if util.GetDeviceName(hwmonPath) != amdgpuChipName {
			continue
		}

		devices = append(devices, &HwMonDevice{
			Identifier: findCardIdentifier(hwmonPath),
			HwMonPath:  hwmonPath,
			TempInputs: findTempInputs(hwmonPath),
		})
	}

	slices.SortFunc(devices, func(a, b *HwMonDevice) int {
		if a.Identifier < b.Identifier {
			return -1
		}
		if a.Identifier > b.Identifier {
			return 1
		}
		return 0
	})
	return devices
}

// GetDevice resolves the handle for a single configured card identifier.
func GetDevice(id string) (*HwMonDevice, error) {
	for _, device := range GetDevices() {
		if device.Identifier == id {
			return device, nil
		}
	}
	return nil, fmt.Errorf("no amdgpu card found for identifier '%s'", id)
}

// findCardIdentifier derives the drm card name (cardN) of a hwmon chip.
// Falls back to the hwmon directory name if the drm link is missing.
func findCardIdentifier(hwmonPath string) string {
	drmPath := filepath.Join(hwmonPath, "device", "drm")
	entries, err := os.ReadDir(drmPath)
	if err == nil {
		for _, entry := range entries {
			if cardRegex.MatchString(entry.Name()) {
				return entry.Name()
			}
		}
	}
	return filepath.Base(hwmonPath)
}

// findTempInputs maps the card's tempN_input attributes to channels.
// amdgpu labels its sensors "edge", "junction" and "mem"; when a label file
// is absent the kernel's fixed index order (temp1=edge, temp2=junction,
// temp3=mem) is assumed.
func findTempInputs(hwmonPath string) map[Channel]string {
	indexOrder := map[string]Channel{
		"temp1_input": ChannelEdge,
		"temp2_input": ChannelJunction,
		"temp3_input": ChannelMem,
	}

	inputs := map[Channel]string{}
	entries, err := os.ReadDir(hwmonPath)
	if err != nil {
		return inputs
	}

	for _, entry := range entries {
		if !tempInputRegex.MatchString(entry.Name()) {
			continue
		}

		inputPath := filepath.Join(hwmonPath, entry.Name())
		label := util.GetLabel(hwmonPath, entry.Name())
		switch Channel(label) {
		case ChannelEdge, ChannelJunction, ChannelMem:
			inputs[Channel(label)] = inputPath
		default:
			if channel, ok := indexOrder[entry.Name()]; ok {
				if _, taken := inputs[channel]; !taken {
					inputs[channel] = inputPath
				}
			}
		}
	}

	return inputs
}
