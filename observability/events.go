package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Tilt-github/aave-v4-sub006/native/events"
	"github.com/Tilt-github/aave-v4-sub006/native/spoke"
)

type eventMetrics struct {
	emitted *prometheus.CounterVec
}

var (
	eventMetricsOnce sync.Once
	eventRegistry    *eventMetrics
)

// Events returns the metrics registry tracking emitted ledger events.
func Events() *eventMetrics {
	eventMetricsOnce.Do(func() {
		eventRegistry = &eventMetrics{
			emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "events",
				Name:      "emitted_total",
				Help:      "Count of ledger events segmented by type.",
			}, []string{"type"}),
		}
		prometheus.MustRegister(eventRegistry.emitted)
	})
	return eventRegistry
}

// RecordEvent increments the event counter for the supplied event type.
func (m *eventMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	normalized := strings.TrimSpace(eventType)
	if normalized == "" {
		normalized = "unknown"
	}
	m.emitted.WithLabelValues(normalized).Inc()
}

// MetricsEmitter counts every event before forwarding it to the next emitter.
// Engines are wired with this in the service binaries so the change feed and
// the event counters stay in sync. Liquidations and bad-debt write-offs also
// feed the ledger counters, keyed by the reserve carried on the event.
type MetricsEmitter struct {
	Next events.Emitter
}

func (m *MetricsEmitter) Emit(evt events.Event) {
	Events().RecordEvent(evt.Type)
	switch evt.Type {
	case spoke.TypeLiquidated:
		Ledger().RecordLiquidation(evt.Attributes["collateral_reserve"])
	case spoke.TypeWrittenOff:
		Ledger().RecordWriteOff(evt.Attributes["reserve"])
	}
	if m.Next != nil {
		m.Next.Emit(evt)
	}
}
