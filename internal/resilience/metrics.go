package resilience

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Breaker collectors carry the guarded dependency as the target label.
var (
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "breaker_state",
		Help: "Breaker position per target (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})

	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_transition_total",
		Help: "Breaker state changes per target.",
	}, []string{"target", "from", "to"})

	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_open_total",
		Help: "Times a breaker tripped open per target.",
	}, []string{"target"})
)

// MustRegisterMetrics registers the breaker collectors on reg, or on the
// default registerer when reg is nil. Re-registration is tolerated.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{BreakerState, BreakerTransitions, BreakerOpenedTotal} {
		var dup prometheus.AlreadyRegisteredError
		if err := reg.Register(c); err != nil && !errors.As(err, &dup) {
			panic(err)
		}
	}
}

func targetLabel(target string) string {
	if target == "" {
		return "default"
	}
	return target
}

func setStateGauge(target string, s State) {
	BreakerState.WithLabelValues(targetLabel(target)).Set(float64(s))
}

func observeTransition(t Transition) {
	target := targetLabel(t.Target)
	setStateGauge(target, t.To)
	BreakerTransitions.WithLabelValues(target, t.From.String(), t.To.String()).Inc()
	if t.To == Open {
		BreakerOpenedTotal.WithLabelValues(target).Inc()
	}
}
