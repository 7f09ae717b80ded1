package store

// Webhook delivery states.
const (
    DeliveryPending   = "pending"
    DeliveryRetry     = "retry"
    DeliveryDelivered = "delivered"
    DeliveryFailed    = "failed"
)

// WebhookDelivery is one queued POST of an event to a subscriber.
type WebhookDelivery struct {
    ID             string
    TenantID       string
    SubscriptionID string
    EventType      string
    URL            string
    Secret         string
    Payload        []byte
    Status         string
    Attempts       int
}

// Due reports whether the delivery is still waiting to be sent.
func (d WebhookDelivery) Due() bool { return d.Status == DeliveryPending || d.Status == DeliveryRetry }
