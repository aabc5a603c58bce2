package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created with defaults", func() {
				So(manager, ShouldNotBeNil)
				So(manager.Enabled(), ShouldBeTrue)
				So(manager.RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test_ns"),
				WithSubsystem("test_sub"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(false),
				WithRefreshInterval(5*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.checksTotal.Inc()

			Convey("Then metric names and labels follow the options", func() {
				So(manager.Enabled(), ShouldBeFalse)
				So(manager.RefreshInterval(), ShouldEqual, 5*time.Second)

				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_ns_test_sub_checks_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When zero-value options are passed", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace(""),
				WithSubsystem(""),
				WithHistogramBuckets(nil),
				WithRefreshInterval(-time.Second),
				WithCustomLabels(nil),
				WithPrometheusRegistry(registry),
			)

			Convey("Then defaults are kept", func() {
				So(manager.namespace, ShouldEqual, "mapcheck")
				So(manager.subsystem, ShouldEqual, "diagnostics")
				So(len(manager.histogramBuckets), ShouldBeGreaterThan, 0)
				So(manager.refreshInterval, ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		SetEnabled(true)

		Convey("When recording diagnostics", func() {
			before := testutil.ToFloat64(globalManager.diagnosticsByType.WithLabelValues("proguard_missing_mapping"))
			RecordDiagnostic("proguard_missing_mapping")
			RecordDiagnostic("proguard_missing_mapping")

			Convey("Then the labelled counter grows", func() {
				after := testutil.ToFloat64(globalManager.diagnosticsByType.WithLabelValues("proguard_missing_mapping"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording lookups and checks", func() {
			before := testutil.ToFloat64(globalManager.lookupOutcomes.WithLabelValues("failed"))
			RecordLookup("failed", 12)
			RecordCheck(30)
			RecordCheckSkipped("already_reported")

			Convey("Then the outcome counter grows", func() {
				So(testutil.ToFloat64(globalManager.lookupOutcomes.WithLabelValues("failed"))-before, ShouldEqual, 1)
			})
		})

		Convey("When recording is disabled", func() {
			SetEnabled(false)
			defer SetEnabled(true)
			before := testutil.ToFloat64(globalManager.errorsCaptured.WithLabelValues("checker"))
			RecordErrorCaptured("checker")

			Convey("Then counters do not move", func() {
				So(testutil.ToFloat64(globalManager.errorsCaptured.WithLabelValues("checker")), ShouldEqual, before)
			})
		})

		Convey("When updating gauges", func() {
			So(func() {
				UpdateQueueSize(10)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.1)
				UpdateWorkerCount(4)
				UpdateResultsStored(3)
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(12)
				RecordSystemGCPauseTime(0.4)
			}, ShouldNotPanic)

			Convey("Then gauges hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
			})
		})

		Convey("When recording the remaining counters", func() {
			So(func() {
				RecordAnalyticsEvent("issue_error_banner.viewed", "native_missing_dsym")
				RecordDebugFileStored()
				RecordDebugFileDeleted()
				RecordStoreQueryLatency(2)
				RecordStaleResult()
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError("full")
				RecordWorkerProcessingLatency(5)
				RecordWorkerError()
				RecordInFlightDuplicate()
				RecordHTTPRequest("diagnose", "POST", "200")
				RecordHTTPRequestDuration("diagnose", "POST", "200", 3)
				RecordErrorByEndpoint("diagnose", "POST", "client_error")
			}, ShouldNotPanic)
		})
	})
}

func TestRegistryExposition(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		SetEnabled(true)
		RecordCheck(1)

		Convey("Then it exposes mapcheck metrics only", func() {
			families, err := GetRegistry().Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
			for _, f := range families {
				So(strings.HasPrefix(f.GetName(), "mapcheck_diagnostics_"), ShouldBeTrue)
			}
		})
	})
}
