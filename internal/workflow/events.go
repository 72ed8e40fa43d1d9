package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/newsdesk/newsdesk/internal/platform/httpx"
)

// Action enumerates transition kinds.
type Action string

const (
	// ActionSubmit marks a submit action.
	ActionSubmit Action = "SUBMIT"
	// ActionApprove marks an approve action.
	ActionApprove Action = "APPROVE"
	// ActionReject marks a reject action.
	ActionReject Action = "REJECT"
	// ActionArchive marks an archive action.
	ActionArchive Action = "ARCHIVE"
)

func (a Action) verb() string {
	switch a {
	case ActionSubmit:
		return "submit"
	case ActionApprove:
		return "approve"
	case ActionReject:
		return "reject"
	case ActionArchive:
		return "archive"
	}
	return string(a)
}

// Event describes one successful transition.
type Event struct {
	Module  string
	RefID   uuid.UUID
	ActorID uuid.UUID
	Action  Action
	From    Status
	To      Status
	Note    string
	At      time.Time
}

// Recorder persists transition history.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Metrics counts transitions by module, action and outcome.
type Metrics struct {
	transitions *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the transition counter against registerer. A nil
// registerer uses the default Prometheus registerer once per process.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "newsdesk_workflow_transitions_total",
		Help: "Workflow transition attempts partitioned by module, action and outcome.",
	}, []string{"module", "action", "outcome"})
	registerer.MustRegister(transitions)
	return &Metrics{transitions: transitions}
}

func (m *Metrics) observe(module string, action Action, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(module, string(action), outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, httpx.ErrNotFound):
		return "not_found"
	case errors.Is(err, httpx.ErrForbidden):
		return "forbidden"
	case errors.Is(err, httpx.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, httpx.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
