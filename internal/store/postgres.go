package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "supplyroute/internal/model"
)

type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil {
        return nil, err
    }
    if err := db.Ping(); err != nil {
        return nil, err
    }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

// MigrateDir applies every *.sql file in dir in lexical order. Files already
// recorded in schema_migrations are skipped.
func (p *Postgres) MigrateDir(dir string) error {
    ctx := context.Background()
    if _, err := p.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (name text PRIMARY KEY, applied_at timestamptz NOT NULL DEFAULT now())`); err != nil {
        return err
    }
    files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
    if err != nil { return err }
    sort.Strings(files)
    for _, f := range files {
        name := filepath.Base(f)
        var seen string
        err := p.db.QueryRowContext(ctx, `SELECT name FROM schema_migrations WHERE name=$1`, name).Scan(&seen)
        if err == nil { continue }
        if !errors.Is(err, sql.ErrNoRows) { return err }
        body, err := os.ReadFile(f)
        if err != nil { return err }
        tx, err := p.db.BeginTx(ctx, nil)
        if err != nil { return err }
        if _, err := tx.ExecContext(ctx, string(body)); err != nil {
            _ = tx.Rollback()
            return fmt.Errorf("migrate %s: %w", name, err)
        }
        if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
            _ = tx.Rollback()
            return err
        }
        if err := tx.Commit(); err != nil { return err }
    }
    return nil
}

const requestCols = `id, tenant_id, type, destination, priority, COALESCE(item,''), COALESCE(quantity,0), COALESCE(notes,''), COALESCE(requester,''), status, approved_by, assigned_driver, plan, created_at, updated_at, last_reminder_at`

type rowScanner interface{ Scan(dest ...any) error }

func scanRequest(row rowScanner) (model.SupplyRequest, error) {
    var r model.SupplyRequest
    var approved, driver, plan []byte
    var created, updated time.Time
    var reminded sql.NullTime
    if err := row.Scan(&r.ID, &r.TenantID, &r.Type, &r.Destination, &r.Priority, &r.Item, &r.Quantity, &r.Notes, &r.Requester, &r.Status, &approved, &driver, &plan, &created, &updated, &reminded); err != nil {
        return model.SupplyRequest{}, err
    }
    if len(approved) > 0 { r.ApprovedBy = &model.Person{}; _ = json.Unmarshal(approved, r.ApprovedBy) }
    if len(driver) > 0 { r.AssignedDriver = &model.Person{}; _ = json.Unmarshal(driver, r.AssignedDriver) }
    if len(plan) > 0 { r.Plan = &model.PlanOut{}; _ = json.Unmarshal(plan, r.Plan) }
    r.CreatedAt = created.UTC().Format(time.RFC3339)
    r.UpdatedAt = updated.UTC().Format(time.RFC3339)
    if reminded.Valid { r.LastReminderAt = reminded.Time.UTC().Format(time.RFC3339) }
    return r, nil
}

func (p *Postgres) CreateRequest(ctx context.Context, tenantID string, in model.RequestIn) (model.SupplyRequest, error) {
    kind := in.Type
    if kind == "" { kind = model.TypeResource }
    id := NewRequestID(kind, time.Now().UTC())
    row := p.db.QueryRowContext(ctx, `INSERT INTO supply_requests (id, tenant_id, type, destination, priority, item, quantity, notes, requester, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING `+requestCols,
        id, tenantID, kind, in.Destination, in.Priority, nullIfEmpty(in.Item), in.Quantity, nullIfEmpty(in.Notes), nullIfEmpty(in.Requester), model.StatusPending)
    return scanRequest(row)
}

func (p *Postgres) GetRequest(ctx context.Context, tenantID, id string) (model.SupplyRequest, error) {
    r, err := scanRequest(p.db.QueryRowContext(ctx, `SELECT `+requestCols+` FROM supply_requests WHERE tenant_id=$1 AND id=$2`, tenantID, id))
    if errors.Is(err, sql.ErrNoRows) { return model.SupplyRequest{}, ErrNotFound }
    return r, err
}

func (p *Postgres) ListRequests(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.SupplyRequest, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    q := `SELECT ` + requestCols + ` FROM supply_requests WHERE tenant_id=$1 AND ($2 = '' OR status=$2) AND ($3 = '' OR id > $3) ORDER BY id LIMIT $4`
    rows, err := p.db.QueryContext(ctx, q, tenantID, status, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.SupplyRequest{}
    var last string
    for rows.Next() {
        r, err := scanRequest(rows)
        if err != nil { return nil, "", err }
        out = append(out, r)
        last = r.ID
    }
    if err := rows.Err(); err != nil { return nil, "", err }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) TransitionRequest(ctx context.Context, tenantID, id string, tr model.Transition) (model.SupplyRequest, error) {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return model.SupplyRequest{}, err }
    defer func(){ _ = tx.Rollback() }()

    var cur string
    err = tx.QueryRowContext(ctx, `SELECT status FROM supply_requests WHERE tenant_id=$1 AND id=$2 FOR UPDATE`, tenantID, id).Scan(&cur)
    if errors.Is(err, sql.ErrNoRows) { return model.SupplyRequest{}, ErrNotFound }
    if err != nil { return model.SupplyRequest{}, err }
    if err := checkTransition(cur, tr.Status); err != nil { return model.SupplyRequest{}, err }

    col := ""
    switch tr.Status {
    case model.StatusApproved, model.StatusRejected:
        col = "approved_by"
    case model.StatusInProgress:
        col = "assigned_driver"
    }
    var row *sql.Row
    if col != "" {
        actor, _ := json.Marshal(tr.Actor)
        row = tx.QueryRowContext(ctx, `UPDATE supply_requests SET status=$3, `+col+`=$4, updated_at=now() WHERE tenant_id=$1 AND id=$2 RETURNING `+requestCols, tenantID, id, tr.Status, actor)
    } else {
        row = tx.QueryRowContext(ctx, `UPDATE supply_requests SET status=$3, updated_at=now() WHERE tenant_id=$1 AND id=$2 RETURNING `+requestCols, tenantID, id, tr.Status)
    }
    r, err := scanRequest(row)
    if err != nil { return model.SupplyRequest{}, err }
    return r, tx.Commit()
}

func (p *Postgres) AttachPlan(ctx context.Context, tenantID, id string, plan model.PlanOut) (model.SupplyRequest, error) {
    body, err := json.Marshal(plan)
    if err != nil { return model.SupplyRequest{}, err }
    r, err := scanRequest(p.db.QueryRowContext(ctx, `UPDATE supply_requests SET plan=$3, updated_at=now() WHERE tenant_id=$1 AND id=$2 RETURNING `+requestCols, tenantID, id, body))
    if errors.Is(err, sql.ErrNoRows) { return model.SupplyRequest{}, ErrNotFound }
    return r, err
}

func (p *Postgres) ListStalledRequests(ctx context.Context, olderThan time.Time, limit int) ([]model.SupplyRequest, error) {
    if limit <= 0 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT `+requestCols+` FROM supply_requests
        WHERE status = ANY($1) AND updated_at < $2 AND (last_reminder_at IS NULL OR last_reminder_at < $2)
        ORDER BY updated_at, id LIMIT $3`,
        []string{model.StatusPending, model.StatusApproved, model.StatusInProgress}, olderThan, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.SupplyRequest{}
    for rows.Next() {
        r, err := scanRequest(rows)
        if err != nil { return nil, err }
        out = append(out, r)
    }
    return out, rows.Err()
}

func (p *Postgres) TouchReminder(ctx context.Context, tenantID, id string, at time.Time) error {
    res, err := p.db.ExecContext(ctx, `UPDATE supply_requests SET last_reminder_at=$3 WHERE tenant_id=$1 AND id=$2`, tenantID, id, at)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.Events)
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    match, _ := json.Marshal([]string{eventType})
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND (events @> $2::jsonb OR events @> '["*"]'::jsonb)`, tenantID, string(match))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var events []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(events, &s.Events)
        out = append(out, s)
    }
    return out, rows.Err()
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND ($2 = '' OR id::text > $2) ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.Events)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id::text=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Webhook deliveries
func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dk := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dk)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if !success {
        if nextAttemptAt == nil { t := time.Now().Add(1 * time.Minute); nextAttemptAt = &t }
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`, id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
        return err
    }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
    if err != nil { return err }
    // move to DLQ
    _, err = p.db.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, payload, attempts, last_error)
        SELECT gen_random_uuid(), tenant_id, id, event_type, url, payload, attempts, $2 FROM webhook_deliveries WHERE id=$1`, id, nullIfEmpty(lastError))
    return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url, COALESCE(response_code,0)
        FROM webhook_deliveries WHERE tenant_id=$1 AND ($2 = '' OR status=$2) AND ($3 = '' OR id::text > $3) ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts, code int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url, &code); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        if code != 0 { m["responseCode"] = code }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

// computeDedupKey prefers the event id and falls back to a payload hash.
func computeDedupKey(payload []byte) string {
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && strings.TrimSpace(v) != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }
