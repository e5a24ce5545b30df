package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gpufand/gpufand/internal/amdgpu"
	"github.com/gpufand/gpufand/internal/api"
	"github.com/gpufand/gpufand/internal/configuration"
	"github.com/gpufand/gpufand/internal/statistics"
	"github.com/gpufand/gpufand/internal/supervisor"
	"github.com/gpufand/gpufand/internal/ui"
	"github.com/gpufand/gpufand/internal/util"
	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RunDaemon() {
	if os.Geteuid() != 0 {
		ui.Warning("gpufand is not running as root, writing fan speeds will most likely fail")
	}

	config := configuration.CurrentConfig

	if len(config.PidFile) > 0 {
		if err := util.WritePidFile(config.PidFile); err != nil {
			ui.Warning("Unable to write pid file %s: %v", config.PidFile, err)
		} else {
			defer func() {
				_ = os.Remove(config.PidFile)
			}()
		}
	}

	s, err := supervisor.Build(config, func(id string) (amdgpu.DeviceHandle, error) {
		return amdgpu.GetDevice(id)
	})
	if err != nil {
		ui.ErrorAndNotify("Startup Error", "%v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var g run.Group
	{
		// === fan controllers
		g.Add(func() error {
			return s.Run(ctx)
		}, func(err error) {
			cancel()
		})
	}
	{
		if config.Statistics.Enabled {
			// === prometheus exporter
			statistics.Register(statistics.NewControllerCollector(s.Controllers()))
			statistics.Register(statistics.NewDeviceCollector(configuredDevices(config)))

			port := config.Statistics.Port
			if port <= 0 || port >= 65535 {
				port = 9612
			}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}

			g.Add(func() error {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					ui.Error("Cannot start prometheus metrics endpoint (%s)", err.Error())
				}
				return nil
			}, func(err error) {
				ui.Info("Stopping statistics server...")
				timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer timeoutCancel()
				if err := server.Shutdown(timeoutCtx); err != nil {
					ui.Warning("Error stopping statistics server: %v", err)
				}
			})
		}
	}
	{
		if config.Api.Enabled {
			// === rest api
			restServer := api.CreateRestService()

			g.Add(func() error {
				addr := fmt.Sprintf("%s:%d", config.Api.Host, config.Api.Port)
				if err := restServer.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					ui.Error("Cannot start rest api endpoint (%s)", err.Error())
				}
				return nil
			}, func(err error) {
				ui.Info("Stopping rest api server...")
				timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer timeoutCancel()
				if err := restServer.Shutdown(timeoutCtx); err != nil {
					ui.Warning("Error stopping rest api server: %v", err)
				}
			})
		}
	}
	{
		// === signal handling
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGQUIT, syscall.SIGTERM)

		g.Add(func() error {
			select {
			case received := <-sig:
				ui.Info("Received %s signal, exiting...", received)
			case <-ctx.Done():
			}
			return nil
		}, func(err error) {
			signal.Stop(sig)
			cancel()
		})
	}

	err = g.Run()

	// hand every card back to the firmware, regardless of why the loop stopped
	s.Shutdown()

	if err != nil {
		ui.ErrorAndNotify("Fatal Error", "%v", err)
		os.Exit(1)
	}
	ui.Info("Done.")
	os.Exit(0)
}

func configuredDevices(config configuration.Configuration) []amdgpu.DeviceHandle {
	var devices []amdgpu.DeviceHandle
	for _, cardConfig := range config.Cards {
		device, err := amdgpu.GetDevice(cardConfig.Id)
		if err != nil {
			continue
		}
		devices = append(devices, device)
	}
	return devices
}
