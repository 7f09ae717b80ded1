package api

import (
    "bufio"
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/gorilla/websocket"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "supplyroute/internal/config"
    "supplyroute/internal/model"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    cfg := config.Default()
    cfg.Rate.RPS, cfg.Rate.Burst = 1000, 1000
    s, err := NewServer(cfg)
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

// call performs a request against the full mux as tenant/role.
func call(t *testing.T, h http.Handler, method, path, body, tenant, role string) *httptest.ResponseRecorder {
    t.Helper()
    var rd *bytes.Reader
    if body != "" { rd = bytes.NewReader([]byte(body)) } else { rd = bytes.NewReader(nil) }
    req := httptest.NewRequest(method, path, rd)
    req.Header.Set("Content-Type", "application/json")
    if tenant != "" { req.Header.Set("X-Tenant-Id", tenant) }
    if role != "" { req.Header.Set("X-Role", role) }
    rr := httptest.NewRecorder()
    h.ServeHTTP(rr, req)
    return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
    t.Helper()
    var v T
    if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil { t.Fatalf("decode %q: %v", rr.Body.String(), err) }
    return v
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.DebugJSON(rr, httptest.NewRequest(http.MethodGet, "/debug/info", nil))
    if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"authMode":"dev"`) { t.Fatalf("debug: %d %s", rr.Code, rr.Body.String()) }
}

func TestPlanEndpoint(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    rr := call(t, h, http.MethodPost, "/v1/plan", `{"destination":10,"priority":1}`, "t_plan", "requester")
    require.Equal(t, 200, rr.Code, rr.Body.String())
    out := decode[model.PlanOut](t, rr)

    assert.Equal(t, 10, out.Destination)
    assert.Equal(t, 13, out.DestinationNode)
    require.Len(t, out.Depots, 3)
    require.NotEmpty(t, out.Path)
    assert.Equal(t, out.Depot, out.Path[0])
    assert.Equal(t, 13, out.Path[len(out.Path)-1])
    assert.Len(t, out.PathNames, len(out.Path))
    require.Len(t, out.EdgeModeLabels, len(out.Path)-1)
    for _, l := range out.EdgeModeLabels { assert.Equal(t, "Air", l.Mode) }
    for _, d := range out.Depots {
        assert.Equal(t, d.Reachable, d.Composite != nil, "depot %d", d.Depot)
    }

    // same request, same answer
    again := decode[model.PlanOut](t, call(t, h, http.MethodPost, "/v1/plan", `{"destination":10,"priority":1}`, "t_plan", "requester"))
    assert.Equal(t, out.Path, again.Path)
    assert.Equal(t, out.Depots, again.Depots)

    stats := call(t, h, http.MethodGet, "/v1/admin/plan-metrics", "", "t_plan", "manager")
    require.Equal(t, 200, stats.Code)
    assert.Contains(t, stats.Body.String(), `"plans":2`)
}

func TestPlanRejectsBadInput(t *testing.T) {
    h := newTestServer(t).Routes()
    for _, body := range []string{
        `{"destination":15,"priority":1}`,
        `{"destination":-1,"priority":0}`,
        `{"priority":1}`,
        `{"destination":3,"priority":2}`,
        `{"destination":3,"priority":0,"extra":true}`,
        `not json`,
    } {
        rr := call(t, h, http.MethodPost, "/v1/plan", body, "t1", "requester")
        assert.Equal(t, http.StatusBadRequest, rr.Code, body)
        assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
    }
    rr := call(t, h, http.MethodGet, "/v1/plan", "", "t1", "requester")
    assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestNetworkAndNearest(t *testing.T) {
    h := newTestServer(t).Routes()
    rr := call(t, h, http.MethodGet, "/v1/network?destination=4", "", "t1", "manager")
    require.Equal(t, 200, rr.Code)
    nw := decode[model.NetworkOut](t, rr)
    assert.Len(t, nw.Nodes, 18)
    assert.NotEmpty(t, nw.Connections)
    assert.Equal(t, "depot", nw.Nodes[0].Kind)
    assert.Equal(t, "mobile", nw.Nodes[3].Kind)

    rr = call(t, h, http.MethodGet, "/v1/network?destination=x", "", "t1", "manager")
    assert.Equal(t, 400, rr.Code)

    // nearest unit to an existing unit's coordinates is that unit
    u := nw.Nodes[7]
    rr = call(t, h, http.MethodGet, "/v1/units/nearest?x="+ftoa(u.X)+"&y="+ftoa(u.Y), "", "t1", "requester")
    require.Equal(t, 200, rr.Code, rr.Body.String())
    got := decode[map[string]any](t, rr)
    assert.EqualValues(t, 4, got["destination"])
    assert.InDelta(t, 0, got["distance"].(float64), 1e-6)

    rr = call(t, h, http.MethodGet, "/v1/units/nearest?x=abc&y=1", "", "t1", "requester")
    assert.Equal(t, 400, rr.Code)
}

func ftoa(f float64) string { b, _ := json.Marshal(f); return string(b) }

func TestRequestLifecycle(t *testing.T) {
    s := newTestServer(t)
    h := s.Routes()
    rr := call(t, h, http.MethodPost, "/v1/requests", `{"destination":10,"priority":1,"item":"medical kit","quantity":2}`, "t_req", "requester")
    require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
    req := decode[model.SupplyRequest](t, rr)
    assert.Equal(t, model.StatusPending, req.Status)
    base := "/v1/requests/" + req.ID

    assert.Equal(t, http.StatusForbidden, call(t, h, http.MethodPost, base+"/approve", "", "t_req", "requester").Code)
    assert.Equal(t, http.StatusNotFound, call(t, h, http.MethodGet, base, "", "t_other", "manager").Code)
    assert.Equal(t, http.StatusConflict, call(t, h, http.MethodPost, base+"/deliver", "", "t_req", "driver").Code)

    rr = call(t, h, http.MethodPost, base+"/plan", "", "t_req", "manager")
    require.Equal(t, 200, rr.Code, rr.Body.String())
    planned := decode[model.SupplyRequest](t, rr)
    require.NotNil(t, planned.Plan)
    assert.Equal(t, 10, planned.Plan.Destination)

    rr = call(t, h, http.MethodPost, base+"/approve", "", "t_req", "manager")
    require.Equal(t, 200, rr.Code)
    assert.Equal(t, model.StatusApproved, decode[model.SupplyRequest](t, rr).Status)

    rr = call(t, h, http.MethodPost, base+"/assign", "", "t_req", "driver")
    require.Equal(t, 200, rr.Code)
    assigned := decode[model.SupplyRequest](t, rr)
    assert.Equal(t, model.StatusInProgress, assigned.Status)
    require.NotNil(t, assigned.AssignedDriver)

    rr = call(t, h, http.MethodPost, base+"/deliver", "", "t_req", "driver")
    require.Equal(t, 200, rr.Code)
    assert.Equal(t, model.StatusDelivered, decode[model.SupplyRequest](t, rr).Status)

    rr = call(t, h, http.MethodGet, "/v1/requests?status=Delivered", "", "t_req", "manager")
    require.Equal(t, 200, rr.Code)
    list := decode[struct{ Items []model.SupplyRequest `json:"items"` }](t, rr)
    require.Len(t, list.Items, 1)
    assert.Equal(t, req.ID, list.Items[0].ID)

    assert.Equal(t, http.StatusNotFound, call(t, h, http.MethodPost, base+"/teleport", "", "t_req", "manager").Code)
    assert.Equal(t, http.StatusBadRequest, call(t, h, http.MethodPost, "/v1/requests", `{"destination":99,"item":"x"}`, "t_req", "requester").Code)
}

func TestManagerAssignsNamedDriver(t *testing.T) {
    h := newTestServer(t).Routes()
    req := decode[model.SupplyRequest](t, call(t, h, http.MethodPost, "/v1/requests", `{"destination":1,"item":"water"}`, "t1", "requester"))
    require.Equal(t, 200, call(t, h, http.MethodPost, "/v1/requests/"+req.ID+"/approve", "", "t1", "manager").Code)
    rr := call(t, h, http.MethodPost, "/v1/requests/"+req.ID+"/assign", `{"driver":{"name":"Sam Ortiz"}}`, "t1", "manager")
    require.Equal(t, 200, rr.Code, rr.Body.String())
    got := decode[model.SupplyRequest](t, rr)
    require.NotNil(t, got.AssignedDriver)
    assert.Equal(t, "Sam Ortiz", got.AssignedDriver.Name)
}

func TestWebhookEnqueuedOnRequestEvents(t *testing.T) {
    h := newTestServer(t).Routes()
    rr := call(t, h, http.MethodPost, "/v1/subscriptions", `{"url":"http://hooks.example/in","events":["request.created","request.approved"],"secret":"s"}`, "t_wh", "manager")
    require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
    assert.Equal(t, http.StatusForbidden, call(t, h, http.MethodPost, "/v1/subscriptions", `{"url":"http://x","events":["*"]}`, "t_wh", "driver").Code)
    assert.Equal(t, http.StatusBadRequest, call(t, h, http.MethodPost, "/v1/subscriptions", `{"url":"ftp://x","events":["*"]}`, "t_wh", "manager").Code)

    req := decode[model.SupplyRequest](t, call(t, h, http.MethodPost, "/v1/requests", `{"destination":2,"item":"fuel"}`, "t_wh", "requester"))
    require.Equal(t, 200, call(t, h, http.MethodPost, "/v1/requests/"+req.ID+"/approve", "", "t_wh", "manager").Code)

    rr = call(t, h, http.MethodGet, "/v1/admin/webhook-deliveries", "", "t_wh", "manager")
    require.Equal(t, 200, rr.Code)
    out := decode[struct{ Items []map[string]any `json:"items"` }](t, rr)
    require.Len(t, out.Items, 2)
    assert.Equal(t, "request.created", out.Items[0]["eventType"])
    assert.Equal(t, "request.approved", out.Items[1]["eventType"])

    sub := decode[struct{ Items []model.Subscription `json:"items"` }](t, call(t, h, http.MethodGet, "/v1/subscriptions", "", "t_wh", "manager"))
    require.Len(t, sub.Items, 1)
    assert.Equal(t, http.StatusNoContent, call(t, h, http.MethodDelete, "/v1/subscriptions/"+sub.Items[0].ID, "", "t_wh", "manager").Code)
    assert.Equal(t, http.StatusNotFound, call(t, h, http.MethodDelete, "/v1/subscriptions/"+sub.Items[0].ID, "", "t_wh", "manager").Code)
}

func TestPlanRateLimit(t *testing.T) {
    cfg := config.Default()
    cfg.Rate.RPS, cfg.Rate.Burst = 0.001, 1
    s, err := NewServer(cfg)
    require.NoError(t, err)
    h := s.Routes()
    assert.Equal(t, 200, call(t, h, http.MethodPost, "/v1/plan", `{"destination":1,"priority":0}`, "t_rl", "requester").Code)
    rr := call(t, h, http.MethodPost, "/v1/plan", `{"destination":1,"priority":0}`, "t_rl", "requester")
    assert.Equal(t, http.StatusTooManyRequests, rr.Code)
    // buckets are per tenant
    assert.Equal(t, 200, call(t, h, http.MethodPost, "/v1/plan", `{"destination":1,"priority":0}`, "t_other", "requester").Code)
}

func TestHMACModeRequiresToken(t *testing.T) {
    cfg := config.Default()
    cfg.Auth.Mode, cfg.Auth.HMACSecret = "hmac", "k"
    s, err := NewServer(cfg)
    require.NoError(t, err)
    rr := call(t, s.Routes(), http.MethodGet, "/v1/requests", "", "t1", "manager")
    assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequestEventStreamSSE(t *testing.T) {
    s := newTestServer(t)
    srv := httptest.NewServer(MetricsMiddleware(s.Routes()))
    defer srv.Close()
    h := s.Routes()
    req := decode[model.SupplyRequest](t, call(t, h, http.MethodPost, "/v1/requests", `{"destination":5,"item":"tents"}`, "t_sse", "requester"))

    ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    hreq, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/requests/"+req.ID+"/events/stream", nil)
    hreq.Header.Set("X-Tenant-Id", "t_sse")
    resp, err := http.DefaultClient.Do(hreq)
    require.NoError(t, err)
    defer resp.Body.Close()
    require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

    rd := bufio.NewReader(resp.Body)
    line, err := rd.ReadString('\n')
    require.NoError(t, err)
    assert.Equal(t, "event: heartbeat\n", line)

    // subscription is live once the heartbeat arrives
    require.Equal(t, 200, call(t, h, http.MethodPost, "/v1/requests/"+req.ID+"/approve", "", "t_sse", "manager").Code)
    for {
        line, err = rd.ReadString('\n')
        require.NoError(t, err)
        if strings.HasPrefix(line, "event: request.approved") { break }
    }
    data, err := rd.ReadString('\n')
    require.NoError(t, err)
    assert.Contains(t, data, `"status":"Approved"`)
}

func TestRequestEventStreamWebSocket(t *testing.T) {
    s := newTestServer(t)
    srv := httptest.NewServer(MetricsMiddleware(s.Routes()))
    defer srv.Close()
    h := s.Routes()
    req := decode[model.SupplyRequest](t, call(t, h, http.MethodPost, "/v1/requests", `{"destination":6,"item":"food"}`, "t_ws", "requester"))

    hdr := http.Header{}
    hdr.Set("X-Tenant-Id", "t_ws")
    url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/requests/" + req.ID + "/ws"
    conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
    require.NoError(t, err)
    defer conn.Close()
    _ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

    var msg wsMessage
    require.NoError(t, conn.ReadJSON(&msg))
    assert.Equal(t, "connection_ack", msg.Type)

    require.NoError(t, conn.WriteJSON(wsMessage{Type: "ping"}))
    require.NoError(t, conn.ReadJSON(&msg))
    assert.Equal(t, "pong", msg.Type)

    require.Equal(t, 200, call(t, h, http.MethodPost, "/v1/requests/"+req.ID+"/reject", "", "t_ws", "manager").Code)
    require.NoError(t, conn.ReadJSON(&msg))
    assert.Equal(t, "request.rejected", msg.Type)
    assert.Equal(t, "Rejected", msg.Data["status"])
}

func TestRouteLabel(t *testing.T) {
    assert.Equal(t, "/v1/requests/{id}/approve", routeLabel("/v1/requests/R-2025-abcdef01/approve"))
    assert.Equal(t, "/v1/plan", routeLabel("/v1/plan"))
    assert.Equal(t, "/healthz", routeLabel("/healthz"))
}
