package metrics

import "github.com/prometheus/client_golang/prometheus"

// ModerationMetrics counts review moderation outcomes.
type ModerationMetrics struct {
	actions *prometheus.CounterVec
}

func NewModerationMetrics(reg prometheus.Registerer) *ModerationMetrics {
	if reg == nil {
		return &ModerationMetrics{}
	}
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reviews",
		Name:      "moderation_actions_total",
		Help:      "Review moderation actions by action and outcome.",
	}, []string{"action", "outcome"})
	reg.MustRegister(actions)
	return &ModerationMetrics{actions: actions}
}

// Record counts one action. outcome is "ok" when err is nil, else "error".
func (m *ModerationMetrics) Record(action string, err error) {
	if m == nil || m.actions == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.actions.WithLabelValues(normalizeLabel(action), outcome).Inc()
}
