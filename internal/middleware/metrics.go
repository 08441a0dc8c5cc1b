package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposed by gameplay and infrastructure code.
var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impostor_redis_errors_total",
		Help: "Total number of Redis command errors",
	}, []string{"command"})

	// ActiveWebSockets tracks currently open gameplay websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "impostor_websocket_connections",
		Help: "Currently open websocket connections",
	})

	// RoomConnections tracks open websocket connections per room.
	RoomConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "impostor_room_connections",
		Help: "Currently open websocket connections per room",
	}, []string{"room"})

	// RoundsStarted counts started rounds by game mode.
	RoundsStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impostor_rounds_started_total",
		Help: "Total number of rounds started, by game mode",
	}, []string{"mode"})

	// RoomsReaped counts idle rooms deleted by the reaper.
	RoomsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "impostor_rooms_reaped_total",
		Help: "Total number of idle rooms deleted",
	})

	// WebhookFailures counts dropped payment webhooks by reason.
	WebhookFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "impostor_payment_webhook_failures_total",
		Help: "Total number of payment webhooks that could not be applied",
	}, []string{"reason"})
)

// InitMetrics creates the Prometheus HTTP middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware wraps the fiberprometheus middleware as a fiber.Handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
