package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRefreshInterval(10*time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording routing metrics", func() {
			Convey("Then it should record assignment outcomes", func() {
				So(func() {
					RecordContactAssigned()
					RecordContactUnassigned()
					RecordAssignConflictRetry()
					RecordAssignmentLatency(12.5)
				}, ShouldNotPanic)
			})

			Convey("Then it should record lead resolution", func() {
				So(func() {
					RecordLeadCreated()
					RecordLeadResolved()
					RecordSourceNotFound()
				}, ShouldNotPanic)
			})
		})

		Convey("When updating reporting gauges", func() {
			Convey("Then it should update totals and loads", func() {
				So(func() {
					UpdateContactTotals(10, 7, 3)
					UpdateOperatorCount(4)
					UpdateOperatorActiveLoad("1", 2)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording store metrics", func() {
			Convey("Then it should record latencies", func() {
				So(func() {
					RecordStoreQueryLatency(1.2)
					RecordStoreUpdateLatency(3.4)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording HTTP metrics", func() {
			Convey("Then it should record requests and durations", func() {
				So(func() {
					RecordHTTPRequest("/contacts", "POST", "200")
					RecordHTTPRequestDuration("/contacts", "POST", "200", 0.05)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording error metrics", func() {
			Convey("Then it should record by component, type and endpoint", func() {
				So(func() {
					RecordErrorByComponent("api", "bad_request")
					RecordErrorByType("bad_request", "warning")
					RecordErrorByEndpoint("/contacts", "POST", "not_found")
					RecordErrorLatency("api", "bad_request", 2.0)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording system metrics", func() {
			Convey("Then it should update memory, goroutines and GC pause", func() {
				So(func() {
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(42)
					RecordSystemGCPauseTime(0.8)
				}, ShouldNotPanic)
			})
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the package registry", t, func() {
		registry := GetRegistry()

		Convey("Then it should be non-nil and gatherable", func() {
			So(registry, ShouldNotBeNil)
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
