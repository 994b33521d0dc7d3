/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package receiver

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "rc6d"
	MetricsSubsystem = "receiver"
)

// Datagram results used as the "result" label
const (
	ResultDecoded      = "decoded"
	ResultMalformed    = "malformed"
	ResultZeroInterval = "zero_interval"
)

// Metrics exposes receive loop counters to Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	datagrams       *prometheus.CounterVec
	transportErrors prometheus.Counter
	callbackPanics  prometheus.Counter
	frequency       prometheus.Gauge
}

func NewMetrics(registry prometheus.Registerer, receiverName string) *Metrics {
	factory := promauto.With(registry)
	labels := prometheus.Labels{"receiver": receiverName}

	return &Metrics{
		datagrams: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   MetricsSubsystem,
			Name:        "datagrams_total",
			Help:        "Datagrams read from the socket by result",
			ConstLabels: labels,
		}, []string{"result"}),

		transportErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   MetricsSubsystem,
			Name:        "transport_errors_total",
			Help:        "Failed socket reads",
			ConstLabels: labels,
		}),

		callbackPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   MetricsSubsystem,
			Name:        "callback_panics_total",
			Help:        "Consumer callbacks that panicked",
			ConstLabels: labels,
		}),

		frequency: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   MetricsNamespace,
			Subsystem:   MetricsSubsystem,
			Name:        "frequency_hertz",
			Help:        "Last measured datagram frequency",
			ConstLabels: labels,
		}),
	}
}

func (m *Metrics) datagram(result string) {
	if m == nil {
		return
	}
	m.datagrams.WithLabelValues(result).Inc()
}

func (m *Metrics) transportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

func (m *Metrics) callbackPanic() {
	if m == nil {
		return
	}
	m.callbackPanics.Inc()
}

func (m *Metrics) setFrequency(frequency float64) {
	if m == nil {
		return
	}
	m.frequency.Set(frequency)
}
