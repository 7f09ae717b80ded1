package store

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/google/uuid"
    "supplyroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu       sync.Mutex
    requests map[string]*memRequest         // id -> request
    byTen    map[string][]string            // tenant -> request ids, creation order
    subs     map[string][]model.Subscription // tenant -> subscriptions
    // Webhooks queue state
    deliveries         map[string]*memDelivery // id -> delivery state
    deliveriesByTenant map[string][]string     // tenant -> delivery ids
    deliveryOrder      []string                // enqueue order across tenants
    dlq                []map[string]any        // dead-lettered deliveries
    now                func() time.Time
}

func NewMemory() *Memory {
    return &Memory{
        requests: map[string]*memRequest{},
        byTen: map[string][]string{},
        subs: map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
        dlq: []map[string]any{},
        now: func() time.Time { return time.Now().UTC() },
    }
}

// memRequest keeps parsed timestamps next to the API shape.
type memRequest struct {
    model.SupplyRequest
    updated  time.Time
    reminded time.Time
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) CreateRequest(ctx context.Context, tenantID string, in model.RequestIn) (model.SupplyRequest, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := m.now()
    kind := in.Type
    if kind == "" { kind = model.TypeResource }
    r := model.SupplyRequest{
        ID: NewRequestID(kind, now), TenantID: tenantID, Type: kind,
        Destination: in.Destination, Priority: in.Priority,
        Item: in.Item, Quantity: in.Quantity, Notes: in.Notes, Requester: in.Requester,
        Status: model.StatusPending,
        CreatedAt: now.Format(time.RFC3339), UpdatedAt: now.Format(time.RFC3339),
    }
    m.requests[r.ID] = &memRequest{SupplyRequest: r, updated: now}
    m.byTen[tenantID] = append(m.byTen[tenantID], r.ID)
    return r, nil
}

func (m *Memory) lookup(tenantID, id string) (*memRequest, error) {
    r, ok := m.requests[id]
    if !ok || r.TenantID != tenantID { return nil, ErrNotFound }
    return r, nil
}

func (m *Memory) GetRequest(ctx context.Context, tenantID, id string) (model.SupplyRequest, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, err := m.lookup(tenantID, id)
    if err != nil { return model.SupplyRequest{}, err }
    return r.SupplyRequest, nil
}

func (m *Memory) ListRequests(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.SupplyRequest, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.byTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.SupplyRequest{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        r := m.requests[ids[i]]
        if status == "" || r.Status == status { out = append(out, r.SupplyRequest) }
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) TransitionRequest(ctx context.Context, tenantID, id string, tr model.Transition) (model.SupplyRequest, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, err := m.lookup(tenantID, id)
    if err != nil { return model.SupplyRequest{}, err }
    if err := checkTransition(r.Status, tr.Status); err != nil { return model.SupplyRequest{}, err }
    now := m.now()
    r.Status = tr.Status
    switch tr.Status {
    case model.StatusApproved, model.StatusRejected:
        r.ApprovedBy = tr.Actor
    case model.StatusInProgress:
        r.AssignedDriver = tr.Actor
    }
    r.updated = now
    r.UpdatedAt = now.Format(time.RFC3339)
    return r.SupplyRequest, nil
}

func (m *Memory) AttachPlan(ctx context.Context, tenantID, id string, plan model.PlanOut) (model.SupplyRequest, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    r, err := m.lookup(tenantID, id)
    if err != nil { return model.SupplyRequest{}, err }
    p := plan
    r.Plan = &p
    now := m.now()
    r.updated = now
    r.UpdatedAt = now.Format(time.RFC3339)
    return r.SupplyRequest, nil
}

// ListStalledRequests returns open requests neither updated nor reminded since olderThan, oldest first.
func (m *Memory) ListStalledRequests(ctx context.Context, olderThan time.Time, limit int) ([]model.SupplyRequest, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var hits []*memRequest
    for _, r := range m.requests {
        if !Stalled(r.Status) || !r.updated.Before(olderThan) { continue }
        if !r.reminded.IsZero() && !r.reminded.Before(olderThan) { continue }
        hits = append(hits, r)
    }
    sort.Slice(hits, func(i, j int) bool {
        if !hits[i].updated.Equal(hits[j].updated) { return hits[i].updated.Before(hits[j].updated) }
        return hits[i].ID < hits[j].ID
    })
    out := []model.SupplyRequest{}
    for _, r := range hits {
        if limit > 0 && len(out) >= limit { break }
        out = append(out, r.SupplyRequest)
    }
    return out, nil
}

func (m *Memory) TouchReminder(ctx context.Context, tenantID, id string, at time.Time) error {
    m.mu.Lock(); defer m.mu.Unlock()
    r, err := m.lookup(tenantID, id)
    if err != nil { return err }
    r.reminded = at
    r.LastReminderAt = at.UTC().Format(time.RFC3339)
    return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.Events { if e == eventType || e == "*" { out = append(out, s); break } }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i := range list { if list[i].ID == cursor { start = i+1; break } }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(list) { end = len(list) }
    items := append([]model.Subscription(nil), list[start:end]...)
    next := ""
    if end < len(list) { next = list[end-1].ID }
    return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    arr := m.subs[tenantID]
    out := make([]model.Subscription, 0, len(arr))
    for _, s := range arr { if s.ID != id { out = append(out, s) } }
    if len(out) == len(arr) { return ErrNotFound }
    m.subs[tenantID] = out
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending, Attempts: 0}, NextAttemptAt: m.now()}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    m.deliveryOrder = append(m.deliveryOrder, id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := m.now()
    out := []WebhookDelivery{}
    for _, id := range m.deliveryOrder {
        d := m.deliveries[id]
        if d == nil { continue }
        if d.Due() && !d.NextAttemptAt.After(now) {
            out = append(out, d.WebhookDelivery)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = DeliveryDelivered
        now := m.now()
        d.DeliveredAt = &now
    } else {
        d.Status = DeliveryRetry
        d.LastError = lastError
        if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = m.now().Add(1 * time.Minute) }
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return ErrNotFound }
    d.Attempts++
    d.Status = DeliveryFailed
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    m.dlq = append(m.dlq, map[string]any{"id": id, "tenantId": d.TenantID, "eventType": d.EventType, "lastError": lastError, "responseCode": responseCode, "latencyMs": latencyMs})
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.deliveriesByTenant[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids { if id == cursor { start = i + 1; break } }
    }
    if limit <= 0 { limit = 100 }
    out := []map[string]any{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        d := m.deliveries[ids[i]]
        next = ids[i]
        if d == nil { continue }
        if status == "" || d.Status == status {
            item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
            if !d.NextAttemptAt.IsZero() { item["nextAttemptAt"] = d.NextAttemptAt }
            if d.LastError != "" { item["lastError"] = d.LastError }
            if d.ResponseCode != 0 { item["responseCode"] = d.ResponseCode }
            out = append(out, item)
        }
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}
