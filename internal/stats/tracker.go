// Package stats keeps running counters for the extraction pipeline and
// persists them after every call.
package stats

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pogoda1/parsik/internal/atomicfile"
)

// DefaultMilestones are the event counts at which a baseline is frozen.
var DefaultMilestones = []int{10, 50, 100}

// Milestone is a frozen copy of the averages at a given event count.
type Milestone struct {
	AverageLatencySeconds float64   `json:"averageLatencySeconds"`
	EscalationRatePercent float64   `json:"escalationRatePercent"`
	CapturedAt            time.Time `json:"capturedAt"`
}

// Snapshot is the whole persisted state.
type Snapshot struct {
	TotalEvents           int                   `json:"totalEvents"`
	EscalatedEvents       int                   `json:"escalatedEvents"`
	AverageLatencySeconds float64               `json:"averageLatencySeconds"`
	EscalationRatePercent float64               `json:"escalationRatePercent"`
	Milestones            map[string]*Milestone `json:"milestones"`
	UpdatedAt             time.Time             `json:"updatedAt"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	path       string
	milestones []int
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	total      int
	escalated  int
	latencySum time.Duration
	captured   map[string]*Milestone
	updatedAt  time.Time

	eventsTotal      prometheus.Counter
	escalationsTotal prometheus.Counter
	latency          prometheus.Histogram
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMilestones overrides DefaultMilestones.
func WithMilestones(counts ...int) Option {
	return func(t *Tracker) { t.milestones = counts }
}

func withClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// Open returns a tracker persisting to path, resuming from the snapshot
// already there. An empty path keeps the tracker in memory.
func Open(path string, logger *slog.Logger, opts ...Option) (*Tracker, error) {
	t := &Tracker{
		path:       path,
		milestones: DefaultMilestones,
		logger:     logger,
		now:        time.Now,
		captured:   make(map[string]*Milestone),
		eventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parsik",
			Name:      "events_processed_total",
			Help:      "Input texts run through the extraction pipeline",
		}),
		escalationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parsik",
			Name:      "escalations_total",
			Help:      "Pipeline runs that needed the strong model",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "parsik",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of one pipeline run including escalation",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}
	for _, opt := range opts {
		opt(t)
	}

	if path == "" {
		return t, nil
	}
	var snap Snapshot
	found, err := atomicfile.ReadJSON(path, &snap)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	if found {
		t.total = snap.TotalEvents
		t.escalated = snap.EscalatedEvents
		t.latencySum = time.Duration(snap.AverageLatencySeconds * float64(snap.TotalEvents) * float64(time.Second))
		t.updatedAt = snap.UpdatedAt
		for k, m := range snap.Milestones {
			if m != nil {
				t.captured[k] = m
			}
		}
		logger.Info("stats resumed", "total_events", t.total, "path", path)
	}
	return t, nil
}

// Collectors returns the Prometheus collectors fed by RecordCall.
func (t *Tracker) Collectors() []prometheus.Collector {
	return []prometheus.Collector{t.eventsTotal, t.escalationsTotal, t.latency}
}

// RecordCall counts one finished pipeline run and rewrites the snapshot file.
// A failed write is logged; counters stay updated in memory.
func (t *Tracker) RecordCall(latency time.Duration, escalated bool) {
	t.eventsTotal.Inc()
	t.latency.Observe(latency.Seconds())
	if escalated {
		t.escalationsTotal.Inc()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	t.latencySum += latency
	if escalated {
		t.escalated++
	}
	t.updatedAt = t.now().UTC()

	key := strconv.Itoa(t.total)
	for _, m := range t.milestones {
		if m != t.total {
			continue
		}
		if _, done := t.captured[key]; !done {
			t.captured[key] = &Milestone{
				AverageLatencySeconds: t.avgLocked(),
				EscalationRatePercent: t.rateLocked(),
				CapturedAt:            t.updatedAt,
			}
			t.logger.Info("stats milestone reached", "events", t.total)
		}
	}

	if t.path == "" {
		return
	}
	if err := atomicfile.WriteJSON(t.path, t.snapshotLocked()); err != nil {
		t.logger.Error("failed to persist stats", "path", t.path, "error", err)
	}
}

// Snapshot returns a consistent copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	ms := make(map[string]*Milestone, len(t.captured))
	for k, m := range t.captured {
		cp := *m
		ms[k] = &cp
	}
	return Snapshot{
		TotalEvents:           t.total,
		EscalatedEvents:       t.escalated,
		AverageLatencySeconds: t.avgLocked(),
		EscalationRatePercent: t.rateLocked(),
		Milestones:            ms,
		UpdatedAt:             t.updatedAt,
	}
}

func (t *Tracker) avgLocked() float64 {
	if t.total == 0 {
		return 0
	}
	return t.latencySum.Seconds() / float64(t.total)
}

func (t *Tracker) rateLocked() float64 {
	if t.total == 0 {
		return 0
	}
	return float64(t.escalated) / float64(t.total) * 100
}
