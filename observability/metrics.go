// Package observability bundles the Prometheus collectors and event plumbing
// shared by the ledger service binaries.
package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics
)

// ModuleMetrics returns the lazily-initialised registry used to record HTTP
// module activity on the service surface.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total service requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total service errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for service handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// LedgerMetrics wraps collectors tracking asset-ledger and risk-engine health.
type LedgerMetrics struct {
	operations   *prometheus.CounterVec
	accrual      *prometheus.HistogramVec
	liquidity    *prometheus.GaugeVec
	deficit      *prometheus.GaugeVec
	liquidations *prometheus.CounterVec
	writtenOff   *prometheus.CounterVec
}

// Ledger exposes the metrics registry for ledger engine instrumentation.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Count of ledger operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			accrual: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ledger",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for ledger operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			liquidity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "ledger",
				Subsystem: "engine",
				Name:      "liquidity",
				Help:      "Pooled liquidity per asset in smallest units.",
			}, []string{"asset"}),
			deficit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "ledger",
				Subsystem: "engine",
				Name:      "deficit",
				Help:      "Written-off debt awaiting elimination per asset in smallest units.",
			}, []string{"asset"}),
			liquidations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "risk",
				Name:      "liquidations_total",
				Help:      "Count of executed liquidations segmented by collateral reserve.",
			}, []string{"reserve"}),
			writtenOff: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ledger",
				Subsystem: "risk",
				Name:      "written_off_total",
				Help:      "Count of bad-debt write-offs segmented by debt reserve.",
			}, []string{"reserve"}),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.accrual,
			ledgerRegistry.liquidity,
			ledgerRegistry.deficit,
			ledgerRegistry.liquidations,
			ledgerRegistry.writtenOff,
		)
	})
	return ledgerRegistry
}

// ObserveOperation records the execution of one ledger operation.
func (m *LedgerMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.accrual.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordBalances updates the liquidity and deficit gauges for an asset.
func (m *LedgerMetrics) RecordBalances(asset string, liquidity, deficit *big.Int) {
	if m == nil {
		return
	}
	label := labelAsset(asset)
	m.liquidity.WithLabelValues(label).Set(bigToFloat(liquidity))
	m.deficit.WithLabelValues(label).Set(bigToFloat(deficit))
}

// RecordLiquidation increments the liquidation counter for a collateral reserve.
func (m *LedgerMetrics) RecordLiquidation(reserve string) {
	if m == nil {
		return
	}
	m.liquidations.WithLabelValues(labelAsset(reserve)).Inc()
}

// RecordWriteOff increments the write-off counter for a debt reserve.
func (m *LedgerMetrics) RecordWriteOff(reserve string) {
	if m == nil {
		return
	}
	m.writtenOff.WithLabelValues(labelAsset(reserve)).Inc()
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
