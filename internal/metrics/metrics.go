// Package metrics exposes prometheus counters for the membership core.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/waffice/backend/internal/models"
)

// Outcome labels.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Recorder counts operations. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registerOnce sync.Once
	registry     prometheus.Registerer

	operations *prometheus.CounterVec
	history    *prometheus.CounterVec
	replays    *prometheus.CounterVec
}

// NewRecorder registers the counters on registry. A nil registry uses
// prometheus.DefaultRegisterer.
func NewRecorder(registry prometheus.Registerer) *Recorder {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	r := &Recorder{registry: registry}
	r.init()
	return r
}

func (r *Recorder) init() {
	r.registerOnce.Do(func() {
		factory := promauto.With(r.registry)
		r.operations = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waffice_operations_total",
			Help: "Mutating operations by name and outcome",
		}, []string{"operation", "outcome"})
		r.history = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waffice_history_records_total",
			Help: "History records committed, by action",
		}, []string{"action"})
		r.replays = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "waffice_idempotent_replays_total",
			Help: "Calls answered from an existing row instead of creating one",
		}, []string{"operation"})
	})
}

// Operation records the outcome of one call. Caller-facing rejections
// (AppErrors) and store failures are told apart by the caller.
func (r *Recorder) Operation(name, outcome string) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(name, outcome).Inc()
}

// History records committed history actions.
func (r *Recorder) History(actions ...models.HistoryAction) {
	if r == nil {
		return
	}
	for _, a := range actions {
		r.history.WithLabelValues(string(a)).Inc()
	}
}

// Replay records an idempotent hit.
func (r *Recorder) Replay(name string) {
	if r == nil {
		return
	}
	r.replays.WithLabelValues(name).Inc()
}
