package opt

import (
    "math"
    "sort"
    "sync"
    "time"
)

// PlanStats aggregates planning outcomes for one tenant/destination/priority.
type PlanStats struct {
    Destination   int       `json:"destination"`
    Priority      Priority  `json:"priority"`
    Plans         int       `json:"plans"`
    Unreachable   int       `json:"unreachable"`
    LastDepot     int       `json:"lastDepot"`
    LastComposite *float64  `json:"lastComposite,omitempty"`
    UpdatedAt     time.Time `json:"updatedAt"`
}

type key struct{
    Tenant string
    Destination int
    Priority Priority
}

var (
    mu sync.Mutex
    store = map[key]PlanStats{}
)

// RecordPlan folds a result into the tenant's in-memory stats.
func RecordPlan(tenant string, r PlanResult) {
    k := key{Tenant: tenant, Destination: r.Destination, Priority: r.Priority}
    mu.Lock()
    defer mu.Unlock()
    st := store[k]
    st.Destination, st.Priority = r.Destination, r.Priority
    st.Plans++
    st.LastDepot = r.Depot
    st.LastComposite = nil
    if w := r.Winner(); !math.IsInf(w.Composite, 1) {
        c := w.Composite
        st.LastComposite = &c
    } else {
        st.Unreachable++
    }
    st.UpdatedAt = time.Now().UTC()
    store[k] = st
}

// GetPlanStats lists a tenant's stats ordered by destination then priority.
func GetPlanStats(tenant string) []PlanStats {
    mu.Lock()
    out := []PlanStats{}
    for k, v := range store {
        if k.Tenant == tenant { out = append(out, v) }
    }
    mu.Unlock()
    sort.Slice(out, func(i, j int) bool {
        if out[i].Destination != out[j].Destination { return out[i].Destination < out[j].Destination }
        return out[i].Priority < out[j].Priority
    })
    return out
}
