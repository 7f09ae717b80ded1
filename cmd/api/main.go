package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os/signal"
    "syscall"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/rs/cors"

    "supplyroute/internal/api"
    "supplyroute/internal/config"
    "supplyroute/internal/metrics"
    "supplyroute/internal/model"
    "supplyroute/internal/reminders"
    "supplyroute/internal/webhooks"
)

func main() {
    cfg, err := config.Load()
    if err != nil {
        log.Fatalf("failed to load config: %v", err)
    }
    srvDeps, err := api.NewServer(cfg)
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }

    metrics.RegisterDefault()
    mux := srvDeps.Routes()
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    var handler http.Handler = api.MetricsMiddleware(mux)
    if len(cfg.AllowOrigins) > 0 {
        handler = cors.New(cors.Options{
            AllowedOrigins: cfg.AllowOrigins,
            AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
            AllowedHeaders: []string{"Authorization", "Content-Type", "X-Tenant-Id", "X-Role", "X-User-Name"},
        }).Handler(handler)
    }

    srv := &http.Server{
        Addr:              cfg.Addr(),
        Handler:           logMiddleware(handler),
        ReadHeaderTimeout: 5 * time.Second,
    }

    // Start webhook worker
    worker := srvDeps.NewWebhookWorker()
    worker.Start()
    defer close(worker.Stop)

    // Start stall reminders; reminded requests also reach live streams
    rem := reminders.NewWorker(srvDeps.Store, srvDeps.Pub, cfg.Reminders.After, cfg.Reminders.Interval)
    rem.OnStall = func(r model.SupplyRequest) {
        srvDeps.Broker.Publish(r.ID, api.SSEEvent{Type: webhooks.EventRequestStalled, Data: map[string]any{"id": r.ID, "status": r.Status, "lastReminderAt": r.LastReminderAt}})
    }
    rem.Start()
    defer close(rem.Stop)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()
    go func() {
        <-ctx.Done()
        shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        if err := srv.Shutdown(shutdown); err != nil { log.Printf("shutdown: %v", err) }
    }()

    log.Printf("API listening on %s", cfg.Addr())
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        next.ServeHTTP(w, r)
        dur := time.Since(start)
        log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
    })
}
