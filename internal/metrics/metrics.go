// Package metrics counts visitor notifications with Prometheus counters.
package metrics

import (
	"github.com/TFMV/fsvisitor/internal/visitor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "fsvisitor"

// Stats is a point-in-time view of the collected counters.
type Stats struct {
	WalksStarted  int64            `json:"walks_started"`
	WalksFinished int64            `json:"walks_finished"`
	WalksStopped  int64            `json:"walks_stopped"`
	Entries       map[string]int64 `json:"entries"`  // keyed by notification, e.g. "FileFound"
	Excluded      map[string]int64 `json:"excluded"` // keyed by notification
	FilesFound    int64            `json:"files_found"`
	DirsFound     int64            `json:"dirs_found"`
	FilesFiltered int64            `json:"files_filtered"`
	DirsFiltered  int64            `json:"dirs_filtered"`
}

// Collector records notifications of the visitors it observes.
type Collector struct {
	gatherer prometheus.Gatherer

	walksStarted  prometheus.Counter
	walksFinished prometheus.Counter
	walksStopped  prometheus.Counter
	entries       *prometheus.CounterVec
	excluded      *prometheus.CounterVec
}

// NewCollector registers the counters on reg. Pass a fresh
// prometheus.NewRegistry() to keep separate collectors apart.
func NewCollector(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		gatherer: reg,
		walksStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "walks_started_total",
			Help:      "Number of searches that fired Start",
		}),
		walksFinished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "walks_finished_total",
			Help:      "Number of searches that fired Finish",
		}),
		walksStopped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "walks_stopped_total",
			Help:      "Number of searches stopped by a listener",
		}),
		entries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_total",
			Help:      "Entry notifications fired",
		}, []string{"event", "kind"}),
		excluded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_excluded_total",
			Help:      "Entry notifications on which a listener set ExcludeEntry",
		}, []string{"event", "kind"}),
	}
}

// Observe subscribes the collector to every notification of v. Attach it
// after the listeners that steer the walk so their decisions are counted.
func (c *Collector) Observe(v *visitor.Visitor) {
	v.Subscribe(visitor.AllEvents, c.record)
}

func (c *Collector) record(ev *visitor.Event) {
	switch ev.Type {
	case visitor.Start:
		c.walksStarted.Inc()
		return
	case visitor.Finish:
		c.walksFinished.Inc()
		return
	}

	labels := prometheus.Labels{"event": ev.Type.String(), "kind": ev.Kind.String()}
	c.entries.With(labels).Inc()
	if ev.ExcludeEntry {
		c.excluded.With(labels).Inc()
	}
	if ev.StopSearch {
		c.walksStopped.Inc()
	}
}

// Snapshot gathers the current counter values.
func (c *Collector) Snapshot() (Stats, error) {
	families, err := c.gatherer.Gather()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		Entries:  make(map[string]int64),
		Excluded: make(map[string]int64),
	}
	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_walks_started_total":
			stats.WalksStarted = counterValue(mf.GetMetric())
		case namespace + "_walks_finished_total":
			stats.WalksFinished = counterValue(mf.GetMetric())
		case namespace + "_walks_stopped_total":
			stats.WalksStopped = counterValue(mf.GetMetric())
		case namespace + "_entries_total":
			for _, m := range mf.GetMetric() {
				stats.Entries[labelValue(m, "event")] += int64(m.GetCounter().GetValue())
			}
		case namespace + "_entries_excluded_total":
			for _, m := range mf.GetMetric() {
				stats.Excluded[labelValue(m, "event")] += int64(m.GetCounter().GetValue())
			}
		}
	}

	stats.FilesFound = stats.Entries[visitor.FileFound.String()]
	stats.DirsFound = stats.Entries[visitor.DirectoryFound.String()]
	stats.FilesFiltered = stats.Entries[visitor.FilteredFileFound.String()]
	stats.DirsFiltered = stats.Entries[visitor.FilteredDirectoryFound.String()]
	return stats, nil
}

func counterValue(metrics []*dto.Metric) int64 {
	var total float64
	for _, m := range metrics {
		total += m.GetCounter().GetValue()
	}
	return int64(total)
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
