package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )

    // RoutePlans counts computed plans by winning depot and priority
    RoutePlans = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "route_plans_total", Help: "Route plans computed, by winning depot and priority."},
        []string{"winner", "priority"},
    )
    // RoutePlanDuration covers network synthesis plus depot evaluation
    RoutePlanDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "route_plan_duration_seconds", Help: "Time to synthesize a network and plan a route.", Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1}},
    )
    // UnreachableDepots counts depots that could not reach the destination
    UnreachableDepots = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "route_plan_unreachable_depots_total", Help: "Depots with no path to the destination."},
    )
    // RequestReminders counts stall reminders emitted by request status
    RequestReminders = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "request_reminders_total", Help: "Stall reminders emitted, by request status."},
        []string{"status"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(WebhookDeliveries)
        Registry.MustRegister(WebhookLatency)
        Registry.MustRegister(RoutePlans)
        Registry.MustRegister(RoutePlanDuration)
        Registry.MustRegister(UnreachableDepots)
        Registry.MustRegister(RequestReminders)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
