package model

// API and storage types for the planning service.

type PlanRequest struct {
    TenantID    string `json:"tenantId,omitempty"`
    Destination *int   `json:"destination"`
    Priority    int    `json:"priority"`
}

// DepotMetrics reports one candidate depot. Composite is nil when the depot
// cannot reach the destination.
type DepotMetrics struct {
    Depot     int      `json:"depot"`
    Name      string   `json:"name"`
    Reachable bool     `json:"reachable"`
    Path      []int    `json:"path"`
    Composite *float64 `json:"composite"`
    TimeRoad  float64  `json:"timeRoad"`
    CostRoad  float64  `json:"costRoad"`
    TimeAir   float64  `json:"timeAir"`
    CostAir   float64  `json:"costAir"`
}

type EdgeLabel struct {
    From int    `json:"from"`
    To   int    `json:"to"`
    Mode string `json:"mode"` // Road, Air
}

type PlanOut struct {
    Destination     int            `json:"destination"`
    DestinationNode int            `json:"destinationNode"`
    Priority        int            `json:"priority"`
    Depot           int            `json:"depot"`
    DepotName       string         `json:"depotName"`
    Path            []int          `json:"path"`
    PathNames       []string       `json:"pathNames"`
    Depots          []DepotMetrics `json:"depots"`
    EdgeModeLabels  []EdgeLabel    `json:"edgeModeLabels"`
    ComputedAt      string         `json:"computedAt"`
}

// Supply request lifecycle
const (
    StatusPending    = "Pending"
    StatusApproved   = "Approved"
    StatusRejected   = "Rejected"
    StatusInProgress = "In Progress"
    StatusDelivered  = "Delivered"
)

const (
    TypeResource = "resource"
    TypeService  = "service"
)

type RequestIn struct {
    TenantID    string `json:"tenantId,omitempty"`
    Type        string `json:"type"` // resource, service
    Destination int    `json:"destination"`
    Priority    int    `json:"priority"`
    Item        string `json:"item,omitempty"`
    Quantity    int    `json:"quantity,omitempty"`
    Notes       string `json:"notes,omitempty"`
    Requester   string `json:"requester,omitempty"`
}

type Person struct {
    Name  string `json:"name,omitempty"`
    Email string `json:"email,omitempty"`
}

type SupplyRequest struct {
    ID             string   `json:"id"`
    TenantID       string   `json:"tenantId"`
    Type           string   `json:"type"`
    Destination    int      `json:"destination"`
    Priority       int      `json:"priority"`
    Item           string   `json:"item,omitempty"`
    Quantity       int      `json:"quantity,omitempty"`
    Notes          string   `json:"notes,omitempty"`
    Requester      string   `json:"requester,omitempty"`
    Status         string   `json:"status"`
    ApprovedBy     *Person  `json:"approvedBy,omitempty"`
    AssignedDriver *Person  `json:"assignedDriver,omitempty"`
    Plan           *PlanOut `json:"plan,omitempty"`
    CreatedAt      string   `json:"createdAt"`
    UpdatedAt      string   `json:"updatedAt"`
    LastReminderAt string   `json:"lastReminderAt,omitempty"`
}

// Transition moves a request to a new status on behalf of actor.
type Transition struct {
    Status string  `json:"status"`
    Actor  *Person `json:"actor,omitempty"`
}

type SubscriptionRequest struct {
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret"`
}

type Subscription struct {
    ID       string   `json:"id"`
    TenantID string   `json:"tenantId"`
    URL      string   `json:"url"`
    Events   []string `json:"events"`
    Secret   string   `json:"secret,omitempty"`
}

// NetworkOut is the renderable form of a synthesized network.
type NetworkOut struct {
    Destination int              `json:"destination"`
    Nodes       []NodeOut        `json:"nodes"`
    Connections []ConnectionOut  `json:"connections"`
}

type NodeOut struct {
    ID   int     `json:"id"`
    Kind string  `json:"kind"`
    Name string  `json:"name"`
    X    float64 `json:"x"`
    Y    float64 `json:"y"`
}

type ConnectionOut struct {
    A        int     `json:"a"`
    B        int     `json:"b"`
    TimeRoad float64 `json:"timeRoad"`
    CostRoad float64 `json:"costRoad"`
    TimeAir  float64 `json:"timeAir"`
    CostAir  float64 `json:"costAir"`
}
