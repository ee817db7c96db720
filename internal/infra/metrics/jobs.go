package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(pollsTotal, remoteErrorsTotal, attemptsTotal, watchdogCancelsTotal, storeFailuresTotal)
}

var pollsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "finetune_polls_total",
		Help: "Total number of monitoring poll iterations.",
	},
)

var remoteErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finetune_remote_errors_total",
		Help: "Remote API call failures, labeled by classification.",
	},
	[]string{"kind"}, // 'transient', 'permanent'
)

var attemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finetune_attempts_total",
		Help: "Finished attempts, labeled by outcome.",
	},
	[]string{"outcome"}, // 'succeeded', 'failed', 'cancelled', 'killed', 'create_error'
)

var watchdogCancelsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "finetune_watchdog_cancels_total",
		Help: "Jobs cancelled by the idle watchdog.",
	},
)

var storeFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "finetune_store_failures_total",
		Help: "Best-effort local state writes that failed, by artifact.",
	},
	[]string{"artifact"}, // 'snapshot', 'audit'
)

// Recorder satisfies the orchestrator's metrics seam on the package counters.
type Recorder struct{}

func (Recorder) Poll()                        { IncPoll() }
func (Recorder) RemoteError(kind string)      { IncRemoteError(kind) }
func (Recorder) Attempt(outcome string)       { IncAttempt(outcome) }
func (Recorder) WatchdogCancel()              { IncWatchdogCancel() }
func (Recorder) StoreFailure(artifact string) { IncStoreFailure(artifact) }

func IncPoll() { pollsTotal.Inc() }

func IncRemoteError(kind string) { remoteErrorsTotal.WithLabelValues(norm(kind)).Inc() }

func IncAttempt(outcome string) { attemptsTotal.WithLabelValues(norm(outcome)).Inc() }

func IncWatchdogCancel() { watchdogCancelsTotal.Inc() }

func IncStoreFailure(artifact string) { storeFailuresTotal.WithLabelValues(norm(artifact)).Inc() }
