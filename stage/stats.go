package stage

import (
	"maps"
	"sync"
	"time"
)

// Stats are the runtime statistics of a component.
type Stats struct {
	// ProcessTime is the time spent inside ProcessMessage.
	ProcessTime time.Duration
	// WaitTime is the time spent waiting for input, keyed by the slot
	// that was the least filled while waiting.
	WaitTime map[string]time.Duration
	// Ticks is the number of ticks covered by the processed blocks.
	Ticks uint64
	// Blocks is the number of processed blocks.
	Blocks int64
	// Elapsed is the wall time since the component started.
	Elapsed time.Duration
}

// TicksPerSecond is the throughput over the whole run.
func (s Stats) TicksPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Ticks) / s.Elapsed.Seconds()
}

type statsRecorder struct {
	mux *sync.Mutex

	startTime time.Time
	endTime   time.Time

	processTime time.Duration
	waitTime    map[string]time.Duration
	ticks       uint64
	blocks      int64
}

func newStatsRecorder() *statsRecorder {
	return &statsRecorder{
		mux:      &sync.Mutex{},
		waitTime: make(map[string]time.Duration),
	}
}

func (sr *statsRecorder) start() {
	sr.mux.Lock()
	defer sr.mux.Unlock()

	sr.startTime = time.Now()
}

func (sr *statsRecorder) stop() {
	sr.mux.Lock()
	defer sr.mux.Unlock()

	sr.endTime = time.Now()
}

func (sr *statsRecorder) addWait(slot string, d time.Duration) {
	sr.mux.Lock()
	defer sr.mux.Unlock()

	sr.waitTime[slot] += d
}

func (sr *statsRecorder) addBlock(d time.Duration, ticks uint64) {
	sr.mux.Lock()
	defer sr.mux.Unlock()

	sr.processTime += d
	sr.ticks += ticks
	sr.blocks++
}

func (sr *statsRecorder) snapshot() Stats {
	sr.mux.Lock()
	defer sr.mux.Unlock()

	elapsed := time.Duration(0)
	if !sr.startTime.IsZero() {
		end := sr.endTime
		if end.IsZero() {
			end = time.Now()
		}
		elapsed = end.Sub(sr.startTime)
	}

	return Stats{
		ProcessTime: sr.processTime,
		WaitTime:    maps.Clone(sr.waitTime),
		Ticks:       sr.ticks,
		Blocks:      sr.blocks,
		Elapsed:     elapsed,
	}
}
