package api

import (
    "context"
    "net/http"
    "strings"
    "time"

    "supplyroute/internal/auth"
    "supplyroute/internal/buildinfo"
    "supplyroute/internal/model"
    "supplyroute/internal/opt"
)

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        p, ok := s.require(w, r, auth.RoleManager)
        if !ok { return }
        var req model.SubscriptionRequest
        if err := decodeJSON(r, &req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        req.TenantID = p.Tenant
        if err := validateSubscription(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid subscription", err.Error(), r.URL.Path)
            return
        }
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        p, ok := s.require(w, r, auth.RoleManager)
        if !ok { return }
        cursor := r.URL.Query().Get("cursor")
        items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, queryLimit(r))
        if err != nil { writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path); return }
        writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// Subscription delete (manager)
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodDelete { w.WriteHeader(405); return }
    p, ok := s.require(w, r, auth.RoleManager)
    if !ok { return }
    id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
    if id == "" || strings.Contains(id, "/") { writeProblem(w, 404, "Not Found", "", r.URL.Path); return }
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil { writeStoreError(w, r, err); return }
    w.WriteHeader(204)
}

// Admin: webhook deliveries list
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    p, ok := s.require(w, r, auth.RoleManager)
    if !ok { return }
    status := r.URL.Query().Get("status")
    cursor := r.URL.Query().Get("cursor")
    items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, queryLimit(r))
    if err != nil { writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// Admin: per-destination planning stats for the caller's tenant
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(405); return }
    p, ok := s.require(w, r, auth.RoleManager)
    if !ok { return }
    writeJSON(w, 200, map[string]any{"items": opt.GetPlanStats(p.Tenant)})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    // Check DB and Redis connectivity when configured
    type pinger interface{ Ping(ctx context.Context) error }
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    for name, dep := range map[string]any{"store": s.Store, "broker": s.Broker} {
        if pg, ok := dep.(pinger); ok {
            if err := pg.Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", name+": "+err.Error(), r.URL.Path); return }
        }
    }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

// DebugJSON serves build info and the non-secret parts of the config.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    c := s.Cfg
    writeJSON(w, 200, map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "port": c.Port,
            "authMode": c.Auth.Mode,
            "allowOrigins": c.AllowOrigins,
            "rateRps": c.Rate.RPS,
            "rateBurst": c.Rate.Burst,
            "webhookMaxAttempts": c.Webhooks.MaxAttempts,
            "reminderAfter": c.Reminders.After.String(),
            "reminderInterval": c.Reminders.Interval.String(),
            "hasDatabaseUrl": c.DatabaseURL != "",
            "hasRedisUrl": c.RedisURL != "",
        },
    })
}
