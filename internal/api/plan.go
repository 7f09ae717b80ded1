package api

import (
    "errors"
    "math"
    "net/http"
    "strconv"
    "time"

    "github.com/paulmach/orb"
    "github.com/paulmach/orb/planar"

    "supplyroute/internal/auth"
    "supplyroute/internal/metrics"
    "supplyroute/internal/model"
    "supplyroute/internal/network"
    "supplyroute/internal/opt"
    "supplyroute/internal/webhooks"
)

// computePlan synthesizes the network for destination, plans on it and
// records the outcome in metrics and per-tenant stats.
func (s *Server) computePlan(tenant string, destination, priority int) (model.PlanOut, error) {
    start := time.Now()
    g, err := network.Synthesize(destination)
    if err != nil { return model.PlanOut{}, err }
    res, err := opt.Plan(g, destination, opt.Priority(priority))
    if err != nil { return model.PlanOut{}, err }
    metrics.RoutePlanDuration.Observe(time.Since(start).Seconds())

    out := toPlanOut(g, res)
    metrics.RoutePlans.WithLabelValues(out.DepotName, strconv.Itoa(priority)).Inc()
    for _, d := range res.Depots {
        if !d.Reachable() { metrics.UnreachableDepots.Inc() }
    }
    opt.RecordPlan(tenant, res)
    return out, nil
}

func toPlanOut(g *network.Graph, res opt.PlanResult) model.PlanOut {
    out := model.PlanOut{
        Destination:     res.Destination,
        DestinationNode: network.MobileNode(res.Destination),
        Priority:        int(res.Priority),
        Depot:           res.Depot,
        DepotName:       g.Nodes[res.Depot].Name,
        Path:            append([]int{}, res.Path...),
        PathNames:       []string{},
        Depots:          make([]model.DepotMetrics, 0, len(res.Depots)),
        EdgeModeLabels:  []model.EdgeLabel{},
        ComputedAt:      time.Now().UTC().Format(time.RFC3339),
    }
    for _, id := range res.Path {
        out.PathNames = append(out.PathNames, g.Nodes[id].Name)
    }
    for _, d := range res.Depots {
        dm := model.DepotMetrics{
            Depot: d.Depot, Name: g.Nodes[d.Depot].Name, Reachable: d.Reachable(),
            Path: append([]int{}, d.Path...),
            TimeRoad: d.Metrics.TimeRoad, CostRoad: d.Metrics.CostRoad,
            TimeAir: d.Metrics.TimeAir, CostAir: d.Metrics.CostAir,
        }
        if !math.IsInf(d.Composite, 1) {
            c := d.Composite
            dm.Composite = &c
        }
        out.Depots = append(out.Depots, dm)
    }
    for _, l := range res.Labels {
        out.EdgeModeLabels = append(out.EdgeModeLabels, model.EdgeLabel{From: l.From, To: l.To, Mode: l.Mode.String()})
    }
    return out
}

// PlanHandler handles POST /v1/plan
func (s *Server) PlanHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { w.WriteHeader(http.StatusMethodNotAllowed); return }
    pr, ok := s.require(w, r)
    if !ok { return }
    var req model.PlanRequest
    if err := decodeJSON(r, &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validatePlanRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid plan request", err.Error(), r.URL.Path)
        return
    }
    out, err := s.computePlan(pr.Tenant, *req.Destination, req.Priority)
    if err != nil {
        status := http.StatusInternalServerError
        if errors.Is(err, network.ErrInvalidDestination) { status = http.StatusBadRequest }
        writeProblem(w, status, "Plan failed", err.Error(), r.URL.Path)
        return
    }
    s.Pub.Emit(r.Context(), pr.Tenant, webhooks.EventPlanComputed, out)
    writeJSON(w, http.StatusOK, out)
}

// NetworkHandler handles GET /v1/network?destination=N
func (s *Server) NetworkHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if _, ok := s.require(w, r); !ok { return }
    dest, err := strconv.Atoi(r.URL.Query().Get("destination"))
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid destination", "destination must be an integer", r.URL.Path)
        return
    }
    g, err := network.Synthesize(dest)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid destination", err.Error(), r.URL.Path)
        return
    }
    out := model.NetworkOut{Destination: dest, Nodes: []model.NodeOut{}, Connections: []model.ConnectionOut{}}
    for _, n := range g.Nodes {
        out.Nodes = append(out.Nodes, model.NodeOut{ID: n.ID, Kind: n.Kind.String(), Name: n.Name, X: n.Pos.X(), Y: n.Pos.Y()})
    }
    for _, c := range g.Connections() {
        out.Connections = append(out.Connections, model.ConnectionOut{
            A: c.A, B: c.B,
            TimeRoad: c.Weights.TimeRoad, CostRoad: c.Weights.CostRoad,
            TimeAir: c.Weights.TimeAir, CostAir: c.Weights.CostAir,
        })
    }
    writeJSON(w, http.StatusOK, out)
}

// unitIndex builds the mobile-unit index once; unit positions do not depend
// on the destination.
func (s *Server) unitIndex() (*network.UnitIndex, *network.Graph) {
    s.unitsOnce.Do(func() {
        g, err := network.DefaultConfig().Synthesize(0)
        if err != nil { return }
        s.unitGraph = g
        s.units = network.NewUnitIndex(g)
    })
    return s.units, s.unitGraph
}

// NearestUnitHandler handles GET /v1/units/nearest?x=&y=
func (s *Server) NearestUnitHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { w.WriteHeader(http.StatusMethodNotAllowed); return }
    if _, ok := s.require(w, r, auth.RoleManager, auth.RoleRequester, auth.RoleDriver); !ok { return }
    x, errX := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
    y, errY := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
    if errX != nil || errY != nil || math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
        writeProblem(w, http.StatusBadRequest, "Invalid coordinates", "x and y must be finite numbers", r.URL.Path)
        return
    }
    ix, _ := s.unitIndex()
    if ix == nil { writeProblem(w, http.StatusInternalServerError, "Index unavailable", "", r.URL.Path); return }
    p := orb.Point{x, y}
    n, found := ix.Nearest(p)
    if !found { writeProblem(w, http.StatusNotFound, "No mobile units", "", r.URL.Path); return }
    writeJSON(w, http.StatusOK, map[string]any{
        "destination": network.MobileIndex(n.ID),
        "node":        n.ID,
        "name":        n.Name,
        "x":           n.Pos.X(),
        "y":           n.Pos.Y(),
        "distance":    planar.Distance(p, n.Pos),
    })
}
