package api

import (
    "log"
    "net/http"
    "strings"
    "sync"

    "supplyroute/internal/auth"
    "supplyroute/internal/config"
    "supplyroute/internal/network"
    "supplyroute/internal/store"
    "supplyroute/internal/webhooks"
)

type Server struct {
    Cfg    config.Config
    Store  store.Store
    Pub    *webhooks.Publisher
    Auth   *auth.Verifier
    Broker EventBroker
    Limits *TenantLimiter

    unitsOnce sync.Once
    units     *network.UnitIndex
    unitGraph *network.Graph
}

// NewServer creates a Server. If DatabaseURL is unset, uses in-memory store.
func NewServer(cfg config.Config) (*Server, error) {
    var s store.Store
    if strings.TrimSpace(cfg.DatabaseURL) == "" {
        s = store.NewMemory()
    } else {
        sp, err := store.NewPostgres(cfg.DatabaseURL)
        if err != nil {
            return nil, err
        }
        if cfg.DBMigrate {
            if err := sp.MigrateDir(cfg.MigrationDir); err != nil { return nil, err }
        }
        s = sp
    }
    // Broker selection
    var broker EventBroker = NewBroker()
    if cfg.RedisURL != "" {
        if rb, err := NewRedisBroker(cfg.RedisURL); err == nil {
            broker = rb
        } else {
            log.Printf("redis broker unavailable, using in-memory: %v", err)
        }
    }
    return &Server{
        Cfg: cfg,
        Store: s,
        Pub: webhooks.NewPublisher(s),
        Auth: auth.NewVerifier(cfg.Auth),
        Broker: broker,
        Limits: NewTenantLimiter(cfg.Rate.RPS, cfg.Rate.Burst),
    }, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store, s.Cfg.Webhooks.MaxAttempts)
}

// Routes registers every API endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
    mux := http.NewServeMux()

    // Planning
    mux.HandleFunc("/v1/plan", s.rateLimited(s.PlanHandler))
    mux.HandleFunc("/v1/network", s.rateLimited(s.NetworkHandler))
    mux.HandleFunc("/v1/units/nearest", s.NearestUnitHandler)

    // Supply requests; /v1/requests/{id}[/approve|reject|assign|deliver|plan|events/stream|ws]
    mux.HandleFunc("/v1/requests", s.RequestsHandler)
    mux.HandleFunc("/v1/requests/", s.RequestByIDHandler)

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", s.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", s.SubscriptionByIDHandler)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/plan-metrics", s.PlanMetricsHandler)

    // Health
    mux.HandleFunc("/healthz", s.HealthHandler)
    mux.HandleFunc("/readyz", s.ReadyHandler)
    mux.HandleFunc("/debug/info", s.DebugJSON)
    return mux
}
