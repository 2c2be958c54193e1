package jobs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operator-facing counters for the background jobs. The jobs have no
// user-visible failure surface, so these plus the logs are the only way
// to see a tick going wrong.
var (
	ticksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "budget_job_ticks_total",
		Help: "Completed job ticks, by job.",
	}, []string{"job"})

	tickFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "budget_job_tick_failures_total",
		Help: "Job ticks aborted and rolled back, by job.",
	}, []string{"job"})

	goalsAccrued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "budget_goals_accrued_total",
		Help: "Goal accrual updates written by the reconciler.",
	})

	goalsRolled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "budget_goals_rolled_total",
		Help: "Expired goals rolled forward into their next cycle.",
	})

	envelopesConverted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "budget_envelopes_converted_total",
		Help: "Envelopes created from expired goals.",
	})

	sessionsPruned = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "budget_sessions_pruned_total",
		Help: "Expired sessions deleted by the housekeeping job.",
	})
)

func init() {
	prometheus.MustRegister(
		ticksTotal,
		tickFailures,
		goalsAccrued,
		goalsRolled,
		envelopesConverted,
		sessionsPruned,
	)
}
