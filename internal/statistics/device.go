package statistics

import (
	"github.com/gpufand/gpufand/internal/amdgpu"
	"github.com/prometheus/client_golang/prometheus"
)

const deviceSubsystem = "device"

type DeviceCollector struct {
	devices []amdgpu.DeviceHandle

	temperature *prometheus.Desc
	pwm         *prometheus.Desc
	pwmMin      *prometheus.Desc
	pwmMax      *prometheus.Desc
}

func NewDeviceCollector(devices []amdgpu.DeviceHandle) *DeviceCollector {
	return &DeviceCollector{
		devices: devices,
		temperature: prometheus.NewDesc(prometheus.BuildFQName(namespace, deviceSubsystem, "temperature_celsius"),
			"Temperature reading of a single channel of the card",
			[]string{"id", "channel"}, nil,
		),
		pwm: prometheus.NewDesc(prometheus.BuildFQName(namespace, deviceSubsystem, "pwm"),
			"The current pwm value applied by the card",
			[]string{"id"}, nil,
		),
		pwmMin: prometheus.NewDesc(prometheus.BuildFQName(namespace, deviceSubsystem, "pwm_min"),
			"The minimum pwm value reported by the card",
			[]string{"id"}, nil,
		),
		pwmMax: prometheus.NewDesc(prometheus.BuildFQName(namespace, deviceSubsystem, "pwm_max"),
			"The maximum pwm value reported by the card",
			[]string{"id"}, nil,
		),
	}
}

func (collector *DeviceCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.temperature
	ch <- collector.pwm
	ch <- collector.pwmMin
	ch <- collector.pwmMax
}

func (collector *DeviceCollector) Collect(metrics chan<- prometheus.Metric) {
	for _, device := range collector.devices {
		id := device.GetId()

		for _, channel := range amdgpu.Channels {
			value, err := device.Temperature(channel)
			if err != nil {
				continue
			}
			metrics <- prometheus.MustNewConstMetric(
				collector.temperature,
				prometheus.GaugeValue,
				float64(value),
				id, string(channel),
			)
		}

		if pwm, err := device.Pwm(); err == nil {
			metrics <- prometheus.MustNewConstMetric(
				collector.pwm,
				prometheus.GaugeValue,
				float64(pwm),
				id,
			)
		}

		metrics <- prometheus.MustNewConstMetric(
			collector.pwmMin,
			prometheus.GaugeValue,
			float64(device.PwmMin()),
			id,
		)
		metrics <- prometheus.MustNewConstMetric(
			collector.pwmMax,
			prometheus.GaugeValue,
			float64(device.PwmMax()),
			id,
		)
	}
}
