package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

var ErrInvalidToken = errors.New("invalid or missing credentials")

// Caller is the authenticated identity behind a request.
type Caller struct {
	UID  string
	Role Role
}

func (c Caller) IsAdmin() bool { return c.Role == RoleAdmin }

// CanManage reports whether the caller may edit the schedule of doctorID.
func (c Caller) CanManage(doctorID string) bool {
	return c.IsAdmin() || (c.Role == RoleDoctor && c.UID == doctorID)
}

type callerKey struct{}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the caller stored by WithCaller. ok is false when the
// context carries no identity or the identity has no UID.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	if !ok || c.UID == "" {
		return Caller{}, false
	}
	return c, true
}

// Verifier turns request credentials into a Caller.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request) (Caller, error)
}

// HeaderVerifier trusts X-User-ID and X-User-Role. Only meant for local runs
// and load simulation behind a trusted network.
type HeaderVerifier struct{}

func (HeaderVerifier) Verify(_ context.Context, r *http.Request) (Caller, error) {
	uid := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if uid == "" {
		return Caller{}, ErrInvalidToken
	}
	role := Role(strings.ToLower(strings.TrimSpace(r.Header.Get("X-User-Role"))))
	if role == "" {
		role = RolePatient
	}
	if !role.Valid() {
		return Caller{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
	return Caller{UID: uid, Role: role}, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
