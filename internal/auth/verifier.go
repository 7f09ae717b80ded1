// Package auth resolves bearer tokens into a tenant-scoped principal.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"supplyroute/internal/config"
)

// Roles recognised by the request workflow.
const (
	RoleManager   = "manager"
	RoleDriver    = "driver"
	RoleRequester = "requester"
)

var ErrUnauthorized = errors.New("unauthorized")

// Verifier validates tokens and extracts tenant/role claims.
// Supports modes: dev (tenant:role[:name], no verify) and hmac (HS256 JWT).
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	TenantClaim string
	RoleClaim   string
	NameClaim   string
	now         func() time.Time
}

type Principal struct {
	Tenant string
	Role   string
	Name   string
}

// Is reports whether the principal holds one of roles.
func (p Principal) Is(roles ...string) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

func NewVerifier(c config.AuthConfig) *Verifier {
	v := &Verifier{
		Mode:        c.Mode,
		HMACSecret:  []byte(c.HMACSecret),
		TenantClaim: c.TenantClaim,
		RoleClaim:   c.RoleClaim,
		NameClaim:   "name",
		now:         time.Now,
	}
	if v.Mode == "" {
		v.Mode = "dev"
	}
	if v.TenantClaim == "" {
		v.TenantClaim = "tenant"
	}
	if v.RoleClaim == "" {
		v.RoleClaim = "role"
	}
	return v
}

func (v *Verifier) Verify(token string) (Principal, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return Principal{}, ErrUnauthorized
	}
	if v.Mode == "dev" {
		parts := strings.SplitN(token, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return Principal{}, errors.New("invalid dev token; expected tenant:role")
		}
		p := Principal{Tenant: parts[0], Role: strings.ToLower(parts[1])}
		if len(parts) == 3 {
			p.Name = parts[2]
		}
		return p, nil
	}
	if v.Mode != "hmac" {
		return Principal{}, errors.New("unsupported auth mode")
	}
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, err
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, err
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, err
	}
	var hdr map[string]any
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, err
	}
	if alg, _ := hdr["alg"].(string); alg != "HS256" {
		return Principal{}, errors.New("unsupported alg for hmac")
	}
	mac := hmac.New(sha256.New, v.HMACSecret)
	mac.Write([]byte(segs[0] + "." + segs[1]))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Principal{}, errors.New("bad signature")
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, err
	}
	if exp, ok := claims["exp"].(float64); ok && v.now().Unix() >= int64(exp) {
		return Principal{}, errors.New("token expired")
	}
	tenant, _ := claims[v.TenantClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	name, _ := claims[v.NameClaim].(string)
	if tenant == "" {
		return Principal{}, errors.New("missing tenant claim")
	}
	if role == "" {
		role = RoleRequester
	}
	return Principal{Tenant: tenant, Role: strings.ToLower(role), Name: name}, nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
