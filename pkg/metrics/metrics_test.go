package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("ranking"),
				WithHistogramBuckets([]float64{1, 10, 100}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then metrics are registered under the configured names", func() {
				So(manager, ShouldNotBeNil)
				manager.fallbackRanks.Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(strings.Join(names, ","), ShouldContainSubstring, "test_ranking_fallback_ranks_total")
			})
		})

		Convey("When empty options are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "ladder")
				So(manager.subsystem, ShouldEqual, "leaderboard")
				So(manager.histogramBuckets, ShouldResemble, latencyBuckets)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording submissions", func() {
			before := value(globalManager.submissions.WithLabelValues("accepted"))
			RecordSubmission("accepted")

			Convey("Then the outcome counter increases", func() {
				So(value(globalManager.submissions.WithLabelValues("accepted")), ShouldEqual, before+1)
			})
		})

		Convey("When recording a trim", func() {
			before := value(globalManager.trimEvicted)
			RecordTrim("ok", 7)
			RecordTrim("noop", 0)

			Convey("Then evicted members are added", func() {
				So(value(globalManager.trimEvicted), ShouldEqual, before+7)
			})
		})

		Convey("When updating gauges", func() {
			UpdateRankSetSize(1100)
			UpdateQueueSize(3)
			UpdateWorkerCount(4)

			Convey("Then gauges report the last value", func() {
				So(value(globalManager.rankSetSize), ShouldEqual, 1100)
				So(value(globalManager.queueSize), ShouldEqual, 3)
				So(value(globalManager.workerCount), ShouldEqual, 4)
			})
		})

		Convey("When recording the remaining helpers", func() {
			So(func() {
				RecordSubmitLatency(1.5)
				RecordAdmission("admitted")
				RecordFallbackRank()
				RecordRankSetOpLatency("apply", 0.4)
				RecordPageCache("hit")
				RecordLedgerQueryLatency("page", 3)
				UpdateQueueCapacity(100)
				RecordQueueRejected()
				RecordPersisted(2)
				RecordPersistFailure("retry")
				RecordBootstrap(1000, 12)
				RecordHTTPRequest("leaderboard", "GET", "200")
				RecordHTTPRequestDuration("leaderboard", "GET", "200", 4)
				RecordErrorByComponent("ranking", "unavailable")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(10)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}

func value(m prometheus.Metric) float64 {
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return -1
	}
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	return 0
}
