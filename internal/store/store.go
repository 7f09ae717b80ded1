package store

import (
    "context"
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/google/uuid"
    "supplyroute/internal/model"
)

// Store is the persistence interface used by the API server and workers.
type Store interface {
    // Supply requests
    CreateRequest(ctx context.Context, tenantID string, in model.RequestIn) (model.SupplyRequest, error)
    GetRequest(ctx context.Context, tenantID, id string) (model.SupplyRequest, error)
    ListRequests(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.SupplyRequest, string, error)
    TransitionRequest(ctx context.Context, tenantID, id string, tr model.Transition) (model.SupplyRequest, error)
    AttachPlan(ctx context.Context, tenantID, id string, plan model.PlanOut) (model.SupplyRequest, error)

    // Stall reminders
    ListStalledRequests(ctx context.Context, olderThan time.Time, limit int) ([]model.SupplyRequest, error)
    TouchReminder(ctx context.Context, tenantID, id string, at time.Time) error

    // Subscriptions
    CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
    GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
    ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
    DeleteSubscription(ctx context.Context, tenantID, id string) error

    // Webhook deliveries
    EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
    FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
    MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
    FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
    ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
}

var (
    ErrNotFound          = errors.New("not found")
    ErrInvalidTransition = errors.New("invalid status transition")
)

// transitions lists the statuses reachable from each status.
var transitions = map[string][]string{
    model.StatusPending:    {model.StatusApproved, model.StatusRejected},
    model.StatusApproved:   {model.StatusInProgress, model.StatusRejected},
    model.StatusInProgress: {model.StatusDelivered},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to string) bool {
    for _, s := range transitions[from] {
        if s == to { return true }
    }
    return false
}

func checkTransition(from, to string) error {
    if !CanTransition(from, to) {
        return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
    }
    return nil
}

// Stalled reports whether a request in this status is subject to reminders.
func Stalled(status string) bool {
    return status == model.StatusPending || status == model.StatusApproved || status == model.StatusInProgress
}

// NewRequestID returns R-<year>-<8 hex> for resource requests and S-... for services.
func NewRequestID(kind string, now time.Time) string {
    prefix := "R"
    if kind == model.TypeService { prefix = "S" }
    return fmt.Sprintf("%s-%d-%s", prefix, now.Year(), strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
