package obs

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	buildInfoOnce  sync.Once
	buildInfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "CardioAI API build information.",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// InitBuildInfo registers the build_info gauge and pins it to 1 with the
// release labels. Safe to call more than once; only the first registers.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() {
		prometheus.MustRegister(buildInfoGauge)
	})
	buildInfoGauge.WithLabelValues(version, commit, runtime.Version()).Set(1)
}
