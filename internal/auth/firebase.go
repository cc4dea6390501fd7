package auth

import (
	"context"
	"fmt"
	"net/http"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// TokenVerifier is the subset of the Firebase Auth client used here.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// RoleLookup resolves a role for a UID when the token carries no role claim.
type RoleLookup func(ctx context.Context, uid string) (Role, error)

// FirebaseVerifier validates "Authorization: Bearer <id token>" headers
// against Firebase Authentication.
type FirebaseVerifier struct {
	tokens TokenVerifier
	lookup RoleLookup
}

func NewFirebaseVerifier(tokens TokenVerifier, lookup RoleLookup) *FirebaseVerifier {
	return &FirebaseVerifier{tokens: tokens, lookup: lookup}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, r *http.Request) (Caller, error) {
	raw := bearerToken(r)
	if raw == "" {
		return Caller{}, ErrInvalidToken
	}

	tok, err := v.tokens.VerifyIDToken(ctx, raw)
	if err != nil {
		return Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c := Caller{UID: tok.UID}
	if role, ok := tok.Claims["role"].(string); ok && role != "" {
		c.Role = Role(role)
		if !c.Role.Valid() {
			return Caller{}, fmt.Errorf("%w: unknown role claim %q", ErrInvalidToken, role)
		}
		return c, nil
	}

	c.Role = RolePatient
	if v.lookup != nil {
		role, err := v.lookup(ctx, tok.UID)
		if err != nil {
			return Caller{}, fmt.Errorf("resolve role for %s: %w", tok.UID, err)
		}
		if role != "" {
			c.Role = role
		}
	}
	return c, nil
}
