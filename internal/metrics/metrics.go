package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickmeet_calls_started_total",
		Help: "Number of calls started (room allocated for the caller).",
	})

	CallsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickmeet_calls_accepted_total",
		Help: "Number of incoming calls accepted by the callee.",
	})

	CallsDeclined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickmeet_calls_declined_total",
		Help: "Number of incoming calls declined by the callee.",
	})

	StaleInvitesCleared = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickmeet_stale_invites_cleared_total",
		Help: "Number of stale invitations cleared by a reader.",
	})

	SignalWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickmeet_signal_write_failures_total",
		Help: "Number of failed invitation writes to a callee record.",
	})
)
