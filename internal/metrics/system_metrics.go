package metrics

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// systemCollector gathers host and Go-runtime gauges on an interval.
type systemCollector struct {
	systemCPUUsage    *prometheus.GaugeVec
	systemMemoryUsage *prometheus.GaugeVec

	goGoroutines    prometheus.Gauge
	goHeapAlloc     prometheus.Gauge
	goHeapSys       prometheus.Gauge
	goGCPauseNs     prometheus.Histogram
	goGCCPUFraction prometheus.Gauge
}

var (
	systemOnce sync.Once
	system     *systemCollector
)

func systemMetricsEnabled() bool {
	return os.Getenv("ENABLE_SYSTEM_METRICS") == "true"
}

func initializeSystemMetrics() *systemCollector {
	systemOnce.Do(func() {
		system = &systemCollector{
			systemCPUUsage: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "system_cpu_usage_percent",
					Help: "Current CPU usage percentage",
				},
				[]string{"core"},
			),
			systemMemoryUsage: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "system_memory_usage_bytes",
					Help: "Current memory usage in bytes",
				},
				[]string{"type"},
			),
			goGoroutines: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "firecdc_goroutines",
					Help: "Number of goroutines that currently exist",
				},
			),
			goHeapAlloc: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "firecdc_heap_alloc_bytes",
					Help: "Heap memory usage in bytes",
				},
			),
			goHeapSys: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "firecdc_heap_sys_bytes",
					Help: "Heap memory reserved in bytes",
				},
			),
			goGCPauseNs: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "firecdc_gc_pause_nanoseconds",
					Help:    "GC pause time in nanoseconds",
					Buckets: prometheus.ExponentialBuckets(1000, 2, 20),
				},
			),
			goGCCPUFraction: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "firecdc_gc_cpu_fraction",
					Help: "Fraction of CPU time used by GC",
				},
			),
		}

		prometheus.MustRegister(
			system.systemCPUUsage,
			system.systemMemoryUsage,
			system.goGoroutines,
			system.goHeapAlloc,
			system.goHeapSys,
			system.goGCPauseNs,
			system.goGCCPUFraction,
		)
	})
	return system
}

// StartSystemMetrics starts the background collection loop. A no-op
// unless ENABLE_SYSTEM_METRICS=true.
func StartSystemMetrics(interval time.Duration) {
	if !systemMetricsEnabled() {
		return
	}
	sc := initializeSystemMetrics()

	log.Info().
		Dur("interval", interval).
		Msg("Starting system metrics collection")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			sc.collectSystemMetrics()
			sc.collectGoRuntimeMetrics()
		}
	}()
}

func (sc *systemCollector) collectSystemMetrics() {
	if cpuPercentages, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range cpuPercentages {
			sc.systemCPUUsage.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		sc.systemMemoryUsage.WithLabelValues("total").Set(float64(vmstat.Total))
		sc.systemMemoryUsage.WithLabelValues("available").Set(float64(vmstat.Available))
		sc.systemMemoryUsage.WithLabelValues("used").Set(float64(vmstat.Used))
		sc.systemMemoryUsage.WithLabelValues("free").Set(float64(vmstat.Free))
	}
}

func (sc *systemCollector) collectGoRuntimeMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sc.goGoroutines.Set(float64(runtime.NumGoroutine()))
	sc.goHeapAlloc.Set(float64(m.HeapAlloc))
	sc.goHeapSys.Set(float64(m.HeapSys))
	sc.goGCPauseNs.Observe(float64(m.PauseNs[(m.NumGC+255)%256]))
	sc.goGCCPUFraction.Set(m.GCCPUFraction)
}
