package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/gpufand/gpufand/internal/amdgpu"
	"github.com/gpufand/gpufand/internal/configuration"
	"github.com/gpufand/gpufand/internal/controller"
	"github.com/gpufand/gpufand/internal/curve"
	"github.com/gpufand/gpufand/internal/ui"
)

// DeviceResolver yields the DeviceHandle for a configured card identifier.
type DeviceResolver func(id string) (amdgpu.DeviceHandle, error)

// Supervisor owns one controller per configured card and runs the periodic
// tick loop. The controller set is fixed after Build.
type Supervisor struct {
	controllers map[string]*controller.Controller
	// order is the configuration order of the cards, ticks are deterministic
	order    []string
	interval time.Duration
}

// Build resolves a device and constructs and activates a controller for every
// configured card. Any single failure aborts the whole build; cards that were
// already switched to manual control are reverted before the error returns,
// so a misconfigured curve never leaves another card in manual mode.
func Build(config configuration.Configuration, resolve DeviceResolver) (*Supervisor, error) {
	s := &Supervisor{
		controllers: map[string]*controller.Controller{},
		interval:    config.Interval,
	}

	for _, cardConfig := range config.Cards {
		device, err := resolve(cardConfig.Id)
		if err != nil {
			s.Shutdown()
			return nil, err
		}

		fanCurve, err := curve.NewFanCurve(cardConfig.Points)
		if err != nil {
			s.Shutdown()
			return nil, fmt.Errorf("curve of %s: %w", cardConfig.Id, err)
		}

		c := controller.NewController(device, fanCurve, config.Hysteresis)
		if err := c.Activate(); err != nil {
			s.Shutdown()
			return nil, err
		}

		s.controllers[cardConfig.Id] = c
		s.order = append(s.order, cardConfig.Id)
		controller.ControllerMap.Set(cardConfig.Id, c)
	}

	return s, nil
}

// Run ticks every controller on the configured interval until the context is
// cancelled. It returns a non-nil error only on a fatal device write error.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.tickAll(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Supervisor) tickAll() error {
	for _, id := range s.order {
		if err := s.controllers[id].Tick(); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown reverts every controller to automatic fan control. Each card's
// hand-back is independent and best-effort, one failing device does not
// prevent the others from being reverted.
func (s *Supervisor) Shutdown() {
	for _, id := range s.order {
		if err := s.controllers[id].ToAutoMode(); err != nil {
			ui.Warning("Error reverting %s to automatic fan control: %v", id, err)
		}
	}
}

// Controllers returns the controllers in tick order.
func (s *Supervisor) Controllers() []*controller.Controller {
	result := make([]*controller.Controller, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.controllers[id])
	}
	return result
}
