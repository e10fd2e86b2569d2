package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"repairdesk/internal/ports"
)

const namespace = "repairdesk"

// Collectors implements ports.Metrics on Prometheus counters.
type Collectors struct {
	transitions   *prometheus.CounterVec
	approvals     *prometheus.CounterVec
	verifications *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	autosaves     *prometheus.CounterVec
}

var _ ports.Metrics = (*Collectors)(nil)

// New registers the collectors on reg. Collectors already registered by an
// earlier call are reused.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Incident status transitions, partitioned by source and target status.",
		}, []string{"from", "to"}),
		approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_requests_resolved_total",
			Help:      "Resolved change requests, partitioned by kind and outcome.",
		}, []string{"kind", "outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recurrence_verifications_total",
			Help:      "Recorded recurrence verifications, partitioned by whether re-entry was granted.",
		}, []string{"approved"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_conflicts_total",
			Help:      "Writes rejected because the record changed concurrently.",
		}, []string{"operation"}),
		autosaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_autosaves_total",
			Help:      "Diagnostic draft auto-save attempts, partitioned by outcome.",
		}, []string{"outcome"}),
	}

	var err error
	if c.transitions, err = register(reg, c.transitions); err != nil {
		return nil, err
	}
	if c.approvals, err = register(reg, c.approvals); err != nil {
		return nil, err
	}
	if c.verifications, err = register(reg, c.verifications); err != nil {
		return nil, err
	}
	if c.conflicts, err = register(reg, c.conflicts); err != nil {
		return nil, err
	}
	if c.autosaves, err = register(reg, c.autosaves); err != nil {
		return nil, err
	}
	return c, nil
}

func register(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func (c *Collectors) StatusTransition(from string, to string) {
	c.transitions.WithLabelValues(from, to).Inc()
}

func (c *Collectors) ChangeRequestResolved(kind string, outcome string) {
	c.approvals.WithLabelValues(kind, outcome).Inc()
}

func (c *Collectors) RecurrenceVerified(approved bool) {
	c.verifications.WithLabelValues(strconv.FormatBool(approved)).Inc()
}

func (c *Collectors) Conflict(operation string) {
	c.conflicts.WithLabelValues(operation).Inc()
}

func (c *Collectors) AutosaveRun(failed bool) {
	outcome := "success"
	if failed {
		outcome = "error"
	}
	c.autosaves.WithLabelValues(outcome).Inc()
}
