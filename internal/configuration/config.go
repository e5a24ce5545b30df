package configuration

import (
	"os"
	"time"

	"github.com/gpufand/gpufand/internal/curve"
	"github.com/gpufand/gpufand/internal/ui"
	"github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type Configuration struct {
	// Interval is the time between two fan speed update cycles
	Interval time.Duration `json:"interval"`
	// Hysteresis is the minimum difference between the current pwm value
	// and a newly computed target before the target is actually written
	Hysteresis int `json:"hysteresis"`
	// PidFile is written on startup when non-empty
	PidFile string `json:"pidFile"`

	Cards []CardConfig `json:"cards"`

	Statistics StatisticsConfig `json:"statistics"`
	Api        ApiConfig        `json:"api"`
}

type CardConfig struct {
	// Id is the drm card identifier, e.g. "card0"
	Id string `json:"id"`
	// Points is the temperature -> speed calibration table of this card
	Points []curve.Point `json:"points"`
}

type StatisticsConfig struct {
	Enabled bool `json:"enabled"`
	Port    int  `json:"port"`
}

type ApiConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

var CurrentConfig Configuration

// InitConfig sets up the config file search path and default values.
func InitConfig(cfgFile string) {
	viper.SetConfigName("gpufand")

	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			ui.Error("Couldn't detect home directory: %v", err)
			os.Exit(1)
		}

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.AddConfigPath("/etc/gpufand/")
	}

	viper.AutomaticEnv() // read in environment variables that match

	setDefaultValues()
}

func setDefaultValues() {
	viper.SetDefault("interval", 3*time.Second)
	viper.SetDefault("hysteresis", 3)
	viper.SetDefault("pidfile", "")

	viper.SetDefault("statistics.enabled", false)
	viper.SetDefault("statistics.port", 9612)

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.host", "localhost")
	viper.SetDefault("api.port", 9613)

	viper.SetDefault("cards", []CardConfig{})
}

// DetectAndReadConfigFile reads the config file and returns its path.
func DetectAndReadConfigFile() string {
	if err := viper.ReadInConfig(); err != nil {
		// config file is required, so we fail here
		ui.Fatal("Error reading config file, %s", err)
	}
	// this is only populated _after_ ReadInConfig()
	return viper.ConfigFileUsed()
}

// LoadConfig unmarshals the configuration into CurrentConfig.
func LoadConfig() {
	err := viper.Unmarshal(
		&CurrentConfig,
		viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			curvePointsHookFunc(),
		)),
	)
	if err != nil {
		ui.Fatal("unable to decode into struct, %v", err)
	}
}
