package api

import (
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"
    "time"

    "supplyroute/internal/auth"
    "supplyroute/internal/model"
    "supplyroute/internal/store"
    "supplyroute/internal/webhooks"
)

// RequestsHandler handles POST/GET /v1/requests
func (s *Server) RequestsHandler(w http.ResponseWriter, r *http.Request) {
    switch r.Method {
    case http.MethodPost:
        pr, ok := s.require(w, r, auth.RoleRequester, auth.RoleManager)
        if !ok { return }
        var in model.RequestIn
        if err := decodeJSON(r, &in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
            return
        }
        if err := validateRequestIn(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "Invalid supply request", err.Error(), r.URL.Path)
            return
        }
        if in.Requester == "" { in.Requester = pr.Name }
        req, err := s.Store.CreateRequest(r.Context(), pr.Tenant, in)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "Create request failed", err.Error(), r.URL.Path)
            return
        }
        s.Pub.Emit(r.Context(), pr.Tenant, webhooks.EventRequestCreated, req)
        writeJSON(w, http.StatusCreated, req)
    case http.MethodGet:
        pr, ok := s.require(w, r)
        if !ok { return }
        status := r.URL.Query().Get("status")
        cursor := r.URL.Query().Get("cursor")
        items, next, err := s.Store.ListRequests(r.Context(), pr.Tenant, status, cursor, queryLimit(r))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "List requests failed", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        w.WriteHeader(http.StatusMethodNotAllowed)
    }
}

// action describes a status change reachable through POST /v1/requests/{id}/{name}.
type action struct {
    status string
    event  string
    roles  []string
}

var actions = map[string]action{
    "approve": {model.StatusApproved, webhooks.EventRequestApproved, []string{auth.RoleManager}},
    "reject":  {model.StatusRejected, webhooks.EventRequestRejected, []string{auth.RoleManager}},
    "assign":  {model.StatusInProgress, webhooks.EventRequestAssigned, []string{auth.RoleDriver, auth.RoleManager}},
    "deliver": {model.StatusDelivered, webhooks.EventRequestDelivered, []string{auth.RoleDriver, auth.RoleManager}},
}

// RequestByIDHandler handles GET /v1/requests/{id} and its sub-resources.
func (s *Server) RequestByIDHandler(w http.ResponseWriter, r *http.Request) {
    path := r.URL.Path
    rest := strings.Trim(strings.TrimPrefix(path, "/v1/requests/"), "/")
    if rest == "" {
        writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    switch {
    case len(parts) == 1:
        if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
        pr, ok := s.require(w, r)
        if !ok { return }
        req, err := s.Store.GetRequest(r.Context(), pr.Tenant, id)
        if err != nil { writeStoreError(w, r, err); return }
        writeJSON(w, http.StatusOK, req)
    case len(parts) == 3 && parts[1] == "events" && parts[2] == "stream":
        s.requestEventStream(w, r, id)
    case len(parts) == 2 && parts[1] == "ws":
        s.RequestWSHandler(w, r, id)
    case len(parts) == 2 && parts[1] == "plan":
        s.planForRequest(w, r, id)
    case len(parts) == 2:
        act, known := actions[parts[1]]
        if !known { writeProblem(w, http.StatusNotFound, "Not Found", "unknown action "+parts[1], path); return }
        if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
        pr, ok := s.require(w, r, act.roles...)
        if !ok { return }
        who := actor(pr)
        if parts[1] == "assign" && pr.Is(auth.RoleManager) && r.ContentLength != 0 {
            var body struct{ Driver *model.Person `json:"driver"` }
            if err := decodeJSON(r, &body); err != nil {
                writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), path)
                return
            }
            if body.Driver != nil { who = body.Driver }
        }
        req, err := s.Store.TransitionRequest(r.Context(), pr.Tenant, id, model.Transition{Status: act.status, Actor: who})
        if err != nil { writeStoreError(w, r, err); return }
        s.notify(r, pr.Tenant, act.event, req)
        writeJSON(w, http.StatusOK, req)
    default:
        writeProblem(w, http.StatusNotFound, "Not Found", "", path)
    }
}

// planForRequest handles POST /v1/requests/{id}/plan
func (s *Server) planForRequest(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    pr, ok := s.require(w, r, auth.RoleManager, auth.RoleRequester)
    if !ok { return }
    if !s.Limits.Allow(pr.Tenant) {
        writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "planning rate limit exceeded", r.URL.Path)
        return
    }
    req, err := s.Store.GetRequest(r.Context(), pr.Tenant, id)
    if err != nil { writeStoreError(w, r, err); return }
    out, err := s.computePlan(pr.Tenant, req.Destination, req.Priority)
    if err != nil { writeProblem(w, http.StatusInternalServerError, "Plan failed", err.Error(), r.URL.Path); return }
    req, err = s.Store.AttachPlan(r.Context(), pr.Tenant, id, out)
    if err != nil { writeStoreError(w, r, err); return }
    s.notify(r, pr.Tenant, webhooks.EventPlanComputed, req)
    writeJSON(w, http.StatusOK, req)
}

// notify emits a webhook event and pushes it to live request streams.
func (s *Server) notify(r *http.Request, tenant, event string, req model.SupplyRequest) {
    s.Pub.Emit(r.Context(), tenant, event, req)
    s.Broker.Publish(req.ID, requestEvent(event, req))
}

func requestEvent(event string, req model.SupplyRequest) SSEEvent {
    data := map[string]any{"id": req.ID, "status": req.Status, "updatedAt": req.UpdatedAt}
    if req.Plan != nil { data["depot"] = req.Plan.Depot; data["path"] = req.Plan.Path }
    if req.AssignedDriver != nil { data["driver"] = req.AssignedDriver.Name }
    return SSEEvent{Type: event, Data: data}
}

func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
    switch {
    case errors.Is(err, store.ErrNotFound):
        writeProblem(w, http.StatusNotFound, "Request not found", err.Error(), r.URL.Path)
    case errors.Is(err, store.ErrInvalidTransition):
        writeProblem(w, http.StatusConflict, "Invalid status transition", err.Error(), r.URL.Path)
    default:
        writeProblem(w, http.StatusInternalServerError, "Store error", err.Error(), r.URL.Path)
    }
}

// requestEventStream serves GET /v1/requests/{id}/events/stream as SSE.
func (s *Server) requestEventStream(w http.ResponseWriter, r *http.Request, id string) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    pr, ok := s.require(w, r)
    if !ok { return }
    if _, err := s.Store.GetRequest(r.Context(), pr.Tenant, id); err != nil { writeStoreError(w, r, err); return }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")
    ch := s.Broker.Subscribe(id)
    defer s.Broker.Unsubscribe(id, ch)
    heartbeat := func() {
        fmt.Fprintf(w, "event: heartbeat\n")
        fmt.Fprintf(w, "data: {\"requestId\":%q,\"ts\":%q}\n\n", id, time.Now().UTC().Format(time.RFC3339))
        flusher.Flush()
    }
    heartbeat()
    ticker := time.NewTicker(15 * time.Second)
    defer ticker.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case evt, open := <-ch:
            if !open { return }
            b, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", b)
            flusher.Flush()
        case <-ticker.C:
            heartbeat()
        }
    }
}
