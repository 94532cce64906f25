package acmeflow

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/squadracorsepolito/acmeflow/stage"
)

func (p *Pipeline) runStats(ctx context.Context) {
	ticker := time.NewTicker(p.statsInterval)
	defer ticker.Stop()

	lastTicks := make(map[string]uint64)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for id, stats := range p.Stats() {
				ticks := stats.Ticks - lastTicks[id]
				lastTicks[id] = stats.Ticks

				if ticks == 0 {
					continue
				}

				ticksPerSec := float64(ticks) / p.statsInterval.Seconds()
				p.tel.LogInfo("stats", "component", id, "ticks_per_sec", ticksPerSec, "blocks", stats.Blocks)
			}
		}
	}
}

func (p *Pipeline) logStats() {
	stats := p.Stats()

	for _, id := range slices.Sorted(maps.Keys(stats)) {
		s := stats[id]

		waitedOn := ""
		waitedFor := time.Duration(0)
		for slot, d := range s.WaitTime {
			if slot != "" && d > waitedFor {
				waitedOn = slot
				waitedFor = d
			}
		}

		p.tel.LogInfo("component stats",
			"component", id,
			"ticks_per_sec", s.TicksPerSecond(),
			"blocks", s.Blocks,
			"process_time", s.ProcessTime,
			"mostly_waited_on", waitedOn,
			"waited_for", waitedFor,
		)
	}
}

// statsCollector exports the runtime statistics of the components.
type statsCollector struct {
	p *Pipeline

	ticks       *prometheus.Desc
	blocks      *prometheus.Desc
	ticksPerSec *prometheus.Desc
	processTime *prometheus.Desc
	waitTime    *prometheus.Desc
}

func newStatsCollector(p *Pipeline) *statsCollector {
	return &statsCollector{
		p: p,

		ticks: prometheus.NewDesc("acmeflow_component_ticks_total",
			"Ticks covered by the blocks processed by the component.", []string{"component"}, nil),
		blocks: prometheus.NewDesc("acmeflow_component_blocks_total",
			"Coherent blocks processed by the component.", []string{"component"}, nil),
		ticksPerSec: prometheus.NewDesc("acmeflow_component_ticks_per_second",
			"Average ticks processed per second since the component started.", []string{"component"}, nil),
		processTime: prometheus.NewDesc("acmeflow_component_process_seconds_total",
			"Time spent processing blocks.", []string{"component"}, nil),
		waitTime: prometheus.NewDesc("acmeflow_component_wait_seconds_total",
			"Time spent waiting for input, by least filled slot.", []string{"component", "slot"}, nil),
	}
}

func (sc *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sc.ticks
	ch <- sc.blocks
	ch <- sc.ticksPerSec
	ch <- sc.processTime
	ch <- sc.waitTime
}

func (sc *statsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, comp := range sc.p.components {
		id := comp.ID()
		stats := stage.BaseOf(comp).Stats()

		ch <- prometheus.MustNewConstMetric(sc.ticks, prometheus.CounterValue, float64(stats.Ticks), id)
		ch <- prometheus.MustNewConstMetric(sc.blocks, prometheus.CounterValue, float64(stats.Blocks), id)
		ch <- prometheus.MustNewConstMetric(sc.ticksPerSec, prometheus.GaugeValue, stats.TicksPerSecond(), id)
		ch <- prometheus.MustNewConstMetric(sc.processTime, prometheus.CounterValue, stats.ProcessTime.Seconds(), id)

		for slot, d := range stats.WaitTime {
			ch <- prometheus.MustNewConstMetric(sc.waitTime, prometheus.CounterValue, d.Seconds(), id, slot)
		}
	}
}
