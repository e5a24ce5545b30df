package configuration

import (
	"errors"
	"fmt"
)

// Validate performs the structural checks that do not need device access.
// Curve bounds and monotonicity are checked against the device's reported
// pwm range when the controller is activated.
func Validate() error {
	return validateConfig(&CurrentConfig)
}

func validateConfig(config *Configuration) error {
	if config.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if config.Hysteresis < 0 {
		return errors.New("hysteresis must not be negative")
	}

	return validateCards(config)
}

func validateCards(config *Configuration) error {
	if len(config.Cards) <= 0 {
		return errors.New("no cards configured, run 'gpufand detect' to list available cards")
	}

	seen := map[string]bool{}
	for _, cardConfig := range config.Cards {
		if len(cardConfig.Id) <= 0 {
			return errors.New("card with missing id in configuration")
		}
		if seen[cardConfig.Id] {
			return fmt.Errorf("card %s: duplicate configuration entry", cardConfig.Id)
		}
		seen[cardConfig.Id] = true

		if len(cardConfig.Points) < 2 {
			return fmt.Errorf("card %s: a curve needs at least two points", cardConfig.Id)
		}
	}

	return nil
}
