package monitoring

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders persisted, by provider and initial status",
		},
		[]string{"provider", "status"},
	)

	paymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Inbound gateway callbacks, by processing result",
		},
		[]string{"result"},
	)

	orderNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_notifications_total",
			Help: "Order confirmation notifications, by outcome",
		},
		[]string{"status"},
	)

	gatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "Duration of outbound payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"op", "status"},
	)
)

func TrackOrderCreated(provider, status string) {
	ordersCreated.WithLabelValues(provider, status).Inc()
}

func TrackCallback(result string) {
	paymentCallbacks.WithLabelValues(result).Inc()
}

func TrackNotification(status string) {
	orderNotifications.WithLabelValues(status).Inc()
}

func TrackGatewayRequest(op string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	gatewayRequestDuration.WithLabelValues(op, result).Observe(duration.Seconds())
}

// Serve exposes the default registry on its own port.
func Serve(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Printf("metrics server stopped: %v", err)
	}
}
