package httpx

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	postsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitsocial",
		Name:      "posts_created_total",
		Help:      "Total number of posts created.",
	})

	messagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitsocial",
		Name:      "chat_messages_sent_total",
		Help:      "Total number of chat messages sent.",
	})

	uploadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitsocial",
		Name:      "uploads_total",
		Help:      "Total number of completed image uploads.",
	})

	uploadBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitsocial",
		Name:      "upload_bytes_total",
		Help:      "Total bytes transferred to the object store.",
	})

	liveSubscriptions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fitsocial",
		Name:      "live_subscriptions",
		Help:      "Currently open websocket live subscriptions.",
	})
)

func init() {
	registry.MustRegister(postsCreated, messagesSent, uploadsTotal, uploadBytes, liveSubscriptions)
}

func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
