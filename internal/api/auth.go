// Package api implements HTTP handlers and helpers for the supply routing service.
package api

import (
    "net/http"
    "strings"

    "supplyroute/internal/auth"
    "supplyroute/internal/model"
)

// getPrincipal extracts tenant and role from a bearer token or, without one,
// from the dev headers X-Tenant-Id, X-Role and X-User-Name.
func (s *Server) getPrincipal(r *http.Request) (auth.Principal, bool) {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        pr, err := s.Auth.Verify(strings.TrimSpace(authz[len("Bearer "):]))
        return pr, err == nil
    }
    if s.Auth != nil && s.Auth.Mode != "dev" {
        return auth.Principal{}, false
    }
    pr := auth.Principal{
        Tenant: r.Header.Get("X-Tenant-Id"),
        Role:   strings.ToLower(r.Header.Get("X-Role")),
        Name:   r.Header.Get("X-User-Name"),
    }
    if pr.Tenant == "" { pr.Tenant = "t_demo" }
    if pr.Role == "" { pr.Role = auth.RoleManager }
    return pr, true
}

// require resolves the caller and checks it holds one of roles (any role when empty).
// It writes the problem response itself and reports whether to continue.
func (s *Server) require(w http.ResponseWriter, r *http.Request, roles ...string) (auth.Principal, bool) {
    pr, ok := s.getPrincipal(r)
    if !ok {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required", r.URL.Path)
        return pr, false
    }
    if len(roles) > 0 && !pr.Is(roles...) {
        writeProblem(w, http.StatusForbidden, "Forbidden", strings.Join(roles, " or ")+" required", r.URL.Path)
        return pr, false
    }
    return pr, true
}

func actor(pr auth.Principal) *model.Person {
    name := pr.Name
    if name == "" { name = pr.Role }
    return &model.Person{Name: name}
}
