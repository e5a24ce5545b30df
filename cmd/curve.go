package cmd

import (
	"bytes"
	"strconv"

	"github.com/gpufand/gpufand/cmd/global"
	"github.com/gpufand/gpufand/internal/amdgpu"
	"github.com/gpufand/gpufand/internal/configuration"
	"github.com/gpufand/gpufand/internal/curve"
	"github.com/gpufand/gpufand/internal/ui"
	"github.com/guptarohit/asciigraph"
	"github.com/mgutz/ansi"
	"github.com/spf13/cobra"
	"github.com/tomlazar/table"
)

var curveCmd = &cobra.Command{
	Use:   "curve",
	Short: "Print the configured fan curves",
	Long:  `Prints the fan curve of every configured card and a graph of the resulting pwm values`,
	Run: func(cmd *cobra.Command, args []string) {
		setupUi()

		configPath := configuration.DetectAndReadConfigFile()
		ui.Info("Using configuration file at: %s", configPath)
		configuration.LoadConfig()
		if err := configuration.Validate(); err != nil {
			ui.Fatal("Config Validation Error: %v", err)
		}

		for idx, cardConfig := range configuration.CurrentConfig.Cards {
			if idx > 0 {
				ui.Printfln("")
			}
			ui.Printfln("> %s", cardConfig.Id)

			fanCurve, err := curve.NewFanCurve(cardConfig.Points)
			if err != nil {
				ui.Error("Invalid curve: %v", err)
				continue
			}
			if err := fanCurve.Validate(amdgpu.MinPwmValue, amdgpu.MaxPwmValue); err != nil {
				ui.Error("Invalid curve: %v", err)
			}

			printCurvePoints(fanCurve)
			printCurveGraph(fanCurve)
		}
	},
}

func printCurvePoints(fanCurve *curve.FanCurve) {
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

	var rows [][]string
	for _, point := range fanCurve.Points() {
		rows = append(rows, []string{
			strconv.Itoa(point.Temperature) + "°C",
			strconv.Itoa(point.Speed),
		})
	}

	pointsTable := table.Table{
		Headers: []string{"Temperature", "Pwm"},
		Rows:    rows,
	}
	var buf bytes.Buffer
	if err := pointsTable.WriteTable(&buf, tableConfig); err != nil {
		ui.Fatal("Error printing table: %v", err)
	}
	ui.Printf("%s", buf.String())
}

func printCurveGraph(fanCurve *curve.FanCurve) {
	// pad the domain a little so the saturation plateaus are visible
	start := fanCurve.MinTemperature() - 5
	stop := fanCurve.MaxTemperature() + 5

	values := make([]float64, 0, stop-start+1)
	for temperature := start; temperature <= stop; temperature++ {
		values = append(values, float64(fanCurve.Interpolate(temperature)))
	}

	caption := "Temperature " + strconv.Itoa(start) + "°C - " + strconv.Itoa(stop) + "°C"
	graph := asciigraph.Plot(
		values,
		asciigraph.Height(15),
		asciigraph.Width(100),
		asciigraph.Caption(caption),
	)
	ui.Printfln("%s", graph)
}

func init() {
	rootCmd.AddCommand(curveCmd)
}
