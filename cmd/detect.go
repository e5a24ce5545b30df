package cmd

import (
	"bytes"
	"strconv"

	"github.com/gpufand/gpufand/cmd/global"
	"github.com/gpufand/gpufand/internal/amdgpu"
	"github.com/gpufand/gpufand/internal/ui"
	"github.com/mgutz/ansi"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect amdgpu cards",
	Long:  `Detects all amdgpu cards and their sensors and prints them as a list`,
	Run: func(cmd *cobra.Command, args []string) {
		setupUi()

		devices := amdgpu.GetDevices()
		if len(devices) <= 0 {
			ui.Printfln("No amdgpu cards found.")
			return
		}

		tableConfig := &table.Config{
			ShowIndex:       false,
			Color:           !global.NoColor,
			AlternateColors: true,
			TitleColorCode:  ansi.ColorCode("white+buf"),
			AltColorCodes: []string{
				ansi.ColorCode("white"),
				ansi.ColorCode("white:236"),
			},
		}

		for _, device := range devices {
			ui.Printfln("> %s", device.Identifier)

			var sensorRows [][]string
			for _, channel := range amdgpu.Channels {
				value, err := device.Temperature(channel)
				if err != nil {
					continue
				}
				sensorRows = append(sensorRows, []string{
					"",
					string(channel),
					device.TempInputs[channel],
					strconv.Itoa(value) + "°C",
				})
			}

			sensorTable := table.Table{
				Headers: []string{"", "Channel", "Path", "Value"},
				Rows:    sensorRows,
			}

			fanRow := []string{
				"",
				currentPwmString(device),
				strconv.Itoa(device.PwmMin()),
				strconv.Itoa(device.PwmMax()),
				currentModeString(device),
			}
			fanTable := table.Table{
				Headers: []string{"", "Pwm", "Min", "Max", "Mode"},
				Rows:    [][]string{fanRow},
			}

			for _, t := range []table.Table{sensorTable, fanTable} {
				if len(t.Rows) <= 0 {
					continue
				}
				var buf bytes.Buffer
				if err := t.WriteTable(&buf, tableConfig); err != nil {
					ui.Fatal("Error printing table: %v", err)
				}
				ui.Printf("%s", buf.String())
			}
		}
	},
}

func currentPwmString(device *amdgpu.HwMonDevice) string {
	pwm, err := device.Pwm()
	if err != nil {
		return "N/A"
	}
	return strconv.Itoa(pwm)
}

func currentModeString(device *amdgpu.HwMonDevice) string {
	mode, err := device.GetMode()
	if err != nil {
		return "N/A"
	}
	switch mode {
	case amdgpu.ModeManual:
		return "manual"
	case amdgpu.ModeAuto:
		return "auto"
	default:
		return strconv.Itoa(int(mode))
	}
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
