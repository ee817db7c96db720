package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(buildInfo)
}

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "finetune_build_info",
		Help: "Constant gauge carrying the binary's version and commit labels.",
	},
	[]string{"version", "commit"},
)

// SetBuildInfo publishes the ldflags-provided build identity.
func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit).Set(1)
}
