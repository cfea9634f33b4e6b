package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "helpboard"

	metricLabelRoute     = "route"
	metricLabelStatus    = "status"
	metricLabelType      = "type"
	metricLabelCategory  = "category"
	metricLabelTransport = "transport"
)

var (
	// ServiceRequestCounter count the number of requests for each route
	ServiceRequestCounter = newCounterVec(
		"service_request_count",
		"Count of requests for each route",
		metricLabelRoute, metricLabelStatus,
	)
	// ServiceRequestDuration observe the duration of requests for each route
	ServiceRequestDuration = newSummaryVec(
		"service_request_duration_seconds",
		"Seconds to decode requests, execute the route and encode its responses",
		metricLabelRoute, metricLabelStatus,
	)
	// PostsCreatedCounter count the number of created posts
	PostsCreatedCounter = newCounterVec(
		"posts_created_count",
		"Number of posts created",
		metricLabelType, metricLabelCategory,
	)
	// PostsResolvedCounter count the number of resolved posts
	PostsResolvedCounter = newCounterVec(
		"posts_resolved_count",
		"Number of posts marked as resolved",
	)
	// UpdatesCompletedCounter count the number of successful snapshot reloads
	UpdatesCompletedCounter = newCounterVec(
		"updates_completed_count",
		"Number of updates that were successfully completed",
	)
	// UpdatesFailedCounter count the number of reloads that had an error
	UpdatesFailedCounter = newCounterVec(
		"updates_failed_count",
		"Number of updates that failed due to an error",
	)
	// UpdateDuration observe the duration of each repo.update() call
	UpdateDuration = newSummaryVec(
		"update_duration_seconds",
		"Duration in seconds for each repo.update() call",
	)
	// HistoryPersistFailedCounter count the number of failed attempts to persist the feed history
	HistoryPersistFailedCounter = newCounterVec(
		"history_persist_failed_count",
		"Number of failures to store the feed history",
	)
	// FeedSubscribersGauge keep track of the currently open feed subscriptions
	FeedSubscribersGauge = newGaugeVec(
		"feed_subscribers_total",
		"Number of currently open feed subscriptions",
		metricLabelTransport,
	)
	// FeedSnapshotsCounter count the snapshots pushed to subscribers
	FeedSnapshotsCounter = newCounterVec(
		"feed_snapshots_count",
		"Number of snapshots delivered to feed subscribers",
		metricLabelTransport,
	)
	// BusChangesCounter count changes received from other instances
	BusChangesCounter = newCounterVec(
		"bus_changes_count",
		"Number of post changes received from other instances",
	)
	// SignInCounter count anonymous sign ins
	SignInCounter = newCounterVec(
		"sign_in_count",
		"Number of anonymous sign ins",
	)
	// NewsletterCounter count newsletter subscriptions
	NewsletterCounter = newCounterVec(
		"newsletter_subscription_count",
		"Number of newsletter subscriptions",
	)
)

func newSummaryVec(name, help string, labels ...string) *prometheus.SummaryVec {
	vec := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newCounterVec(name, help string, labels ...string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}

func newGaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	vec := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	prometheus.MustRegister(vec)
	return vec
}
