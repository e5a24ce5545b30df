package statistics

import (
	"github.com/gpufand/gpufand/internal/controller"
	"github.com/prometheus/client_golang/prometheus"
)

const controllerSubsystem = "controller"

type ControllerCollector struct {
	controllers []*controller.Controller

	temperature        *prometheus.Desc
	temperatureAvg     *prometheus.Desc
	lastSetPwm         *prometheus.Desc
	pwmWriteCount      *prometheus.Desc
	unexpectedPwmCount *prometheus.Desc
}

func NewControllerCollector(controllers []*controller.Controller) *ControllerCollector {
	return &ControllerCollector{
		controllers: controllers,
		temperature: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "temperature_celsius"),
			"Control temperature of the card, the maximum across its available channels",
			[]string{"id"}, nil,
		),
		temperatureAvg: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "temperature_avg_celsius"),
			"Moving average of the control temperature over the most recent ticks",
			[]string{"id"}, nil,
		),
		lastSetPwm: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "last_set_pwm"),
			"The last pwm value commanded by this controller",
			[]string{"id"}, nil,
		),
		pwmWriteCount: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "pwm_write_count"),
			"Counter for the number of pwm values written to the device",
			[]string{"id"}, nil,
		),
		unexpectedPwmCount: prometheus.NewDesc(prometheus.BuildFQName(namespace, controllerSubsystem, "unexpected_pwm_value_count"),
			"Counter for instances of a mismatch between the last commanded pwm value and the actual pwm value of the device",
			[]string{"id"}, nil,
		),
	}
}

func (collector *ControllerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- collector.temperature
	ch <- collector.temperatureAvg
	ch <- collector.lastSetPwm
	ch <- collector.pwmWriteCount
	ch <- collector.unexpectedPwmCount
}

func (collector *ControllerCollector) Collect(metrics chan<- prometheus.Metric) {
	for _, c := range collector.controllers {
		snapshot := c.Snapshot()

		metrics <- prometheus.MustNewConstMetric(
			collector.temperature,
			prometheus.GaugeValue,
			float64(snapshot.Temperature),
			snapshot.Id,
		)
		metrics <- prometheus.MustNewConstMetric(
			collector.temperatureAvg,
			prometheus.GaugeValue,
			snapshot.TemperatureAvg,
			snapshot.Id,
		)
		if snapshot.LastSetPwm != nil {
			metrics <- prometheus.MustNewConstMetric(
				collector.lastSetPwm,
				prometheus.GaugeValue,
				float64(*snapshot.LastSetPwm),
				snapshot.Id,
			)
		}
		metrics <- prometheus.MustNewConstMetric(
			collector.pwmWriteCount,
			prometheus.CounterValue,
			float64(snapshot.PwmWriteCount),
			snapshot.Id,
		)
		metrics <- prometheus.MustNewConstMetric(
			collector.unexpectedPwmCount,
			prometheus.CounterValue,
			float64(snapshot.UnexpectedPwmCount),
			snapshot.Id,
		)
	}
}
