// Package metrics exposes this server's Prometheus metrics: query
// volume and response codes from the query engine, per-source record
// counts and backoff state (SetSourceRecordCount, SetSourceBackoff), and
// host resource usage.
//
// Grounded directly on the teacher's internal/metrics/metrics.go
// (promauto gauges/counters/vecs, gopsutil host stats sampled on a
// ticker), generalized from cache/resolver metrics to this server's
// query-engine and source-supervisor domain.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/miekg/dns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	queriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "localns_queries_total",
		Help: "Total number of DNS queries answered",
	})
	queryTypes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localns_query_types_total",
		Help: "Total number of queries by record type",
	}, []string{"type"})
	responseCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "localns_response_codes_total",
		Help: "Total number of responses by rcode",
	}, []string{"rcode"})
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "localns_query_duration_seconds",
		Help:    "Query handling latency",
		Buckets: prometheus.DefBuckets,
	})

	sourceRecordCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "localns_source_records",
		Help: "Number of records currently published by a source",
	}, []string{"source"})
	sourceBackoff = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "localns_source_backoff_seconds",
		Help: "Current backoff interval for a source's poll loop",
	}, []string{"source"})

	cpuUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "localns_host_cpu_usage_percent",
		Help: "Current host CPU usage percentage",
	})
	memUsage = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "localns_host_memory_usage_percent",
		Help: "Current host memory usage percentage",
	})
	goroutineCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "localns_goroutine_count",
		Help: "Current number of goroutines",
	})
)

// RecordQuery records one answered query's type, rcode, and latency.
func RecordQuery(q dns.Question, rcode int, d time.Duration) {
	queriesTotal.Inc()
	queryTypes.WithLabelValues(dns.TypeToString[q.Qtype]).Inc()
	responseCodes.WithLabelValues(dns.RcodeToString[rcode]).Inc()
	queryDuration.Observe(d.Seconds())
}

// SetSourceRecordCount reports how many records a source currently holds.
func SetSourceRecordCount(source string, n int) {
	sourceRecordCount.WithLabelValues(source).Set(float64(n))
}

// SetSourceBackoff reports a source's current backoff interval.
func SetSourceBackoff(source string, d time.Duration) {
	sourceBackoff.WithLabelValues(source).Set(d.Seconds())
}

// StartHostSampler periodically samples host CPU/memory/goroutine usage
// until ctx is canceled, the same ticker-goroutine idiom the teacher uses
// for its own dashboard stats.
func StartHostSampler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sampleHost()
		}
	}
}

func sampleHost() {
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		cpuUsage.Set(percents[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		memUsage.Set(vm.UsedPercent)
	}
	goroutineCount.Set(float64(runtime.NumGoroutine()))
}
