package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	tokens map[string]*firebaseauth.Token
}

func (f fakeTokens) VerifyIDToken(_ context.Context, idToken string) (*firebaseauth.Token, error) {
	tok, ok := f.tokens[idToken]
	if !ok {
		return nil, errors.New("token rejected")
	}
	return tok, nil
}

func TestFirebaseVerifierUsesRoleClaim(t *testing.T) {
	v := NewFirebaseVerifier(fakeTokens{tokens: map[string]*firebaseauth.Token{
		"good": {UID: "doc-1", Claims: map[string]interface{}{"role": "doctor"}},
	}}, nil)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer good")

	c, err := v.Verify(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, Caller{UID: "doc-1", Role: RoleDoctor}, c)
}

func TestFirebaseVerifierFallsBackToLookup(t *testing.T) {
	v := NewFirebaseVerifier(fakeTokens{tokens: map[string]*firebaseauth.Token{
		"good": {UID: "adm-1"},
	}}, func(_ context.Context, uid string) (Role, error) {
		assert.Equal(t, "adm-1", uid)
		return RoleAdmin, nil
	})

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "bearer good")

	c, err := v.Verify(context.Background(), r)
	require.NoError(t, err)
	assert.True(t, c.IsAdmin())
}

func TestFirebaseVerifierRejectsMissingAndBadTokens(t *testing.T) {
	v := NewFirebaseVerifier(fakeTokens{}, nil)

	r := httptest.NewRequest("GET", "/", nil)
	_, err := v.Verify(context.Background(), r)
	assert.ErrorIs(t, err, ErrInvalidToken)

	r.Header.Set("Authorization", "Bearer nope")
	_, err = v.Verify(context.Background(), r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHeaderVerifier(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	_, err := HeaderVerifier{}.Verify(context.Background(), r)
	assert.ErrorIs(t, err, ErrInvalidToken)

	r.Header.Set("X-User-ID", "pat-9")
	c, err := HeaderVerifier{}.Verify(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, RolePatient, c.Role)
	r.Header.Set("X-User-Role", " Doctor ")
	c, err = HeaderVerifier{}.Verify(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, RoleDoctor, c.Role)

	for _, role := range []string{"superuser", "nurse", "admins"} {
		r.Header.Set("X-User-Role", role)
		_, err = HeaderVerifier{}.Verify(context.Background(), r)
		assert.ErrorIs(t, err, ErrInvalidToken, role)
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RolePatient.Valid())
	assert.True(t, RoleDoctor.Valid())
	assert.True(t, RoleAdmin.Valid())
	assert.False(t, Role("").Valid())
	assert.False(t, Role("root").Valid())
}


func TestCallerContext(t *testing.T) {
	_, ok := CallerFrom(context.Background())
	assert.False(t, ok)

	ctx := WithCaller(context.Background(), Caller{UID: "doc-1", Role: RoleDoctor})
	c, ok := CallerFrom(ctx)
	require.True(t, ok)
	assert.True(t, c.CanManage("doc-1"))
	assert.False(t, c.CanManage("doc-2"))
}

func TestFirebaseVerifierRejectsUnknownRoleClaim(t *testing.T) {
	v := NewFirebaseVerifier(fakeTokens{tokens: map[string]*firebaseauth.Token{
		"odd": {UID: "u-1", Claims: map[string]interface{}{"role": "superuser"}},
	}}, nil)

	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("Authorization", "Bearer odd")

	_, err := v.Verify(context.Background(), r)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type fakeUserManager struct {
	created int
	err     error
	deleted []string
}

func (f *fakeUserManager) CreateUser(_ context.Context, _ *firebaseauth.UserToCreate) (*firebaseauth.UserRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created++
	return &firebaseauth.UserRecord{UserInfo: &firebaseauth.UserInfo{UID: "fb-uid"}}, nil
}

func (f *fakeUserManager) DeleteUser(_ context.Context, uid string) error {
	f.deleted = append(f.deleted, uid)
	return f.err
}

func TestFirebaseAccounts(t *testing.T) {
	users := &fakeUserManager{}
	acc := NewFirebaseAccounts(users)

	uid, err := acc.CreateAccount(context.Background(), NewAccount{Email: "lee@clinic.test", Password: "secret1", DisplayName: "Dr. Lee"})
	require.NoError(t, err)
	assert.Equal(t, "fb-uid", uid)
	assert.Equal(t, 1, users.created)

	require.NoError(t, acc.DeleteAccount(context.Background(), "fb-uid"))
	assert.Equal(t, []string{"fb-uid"}, users.deleted)

	users.err = errors.New("backend unavailable")
	_, err = acc.CreateAccount(context.Background(), NewAccount{Email: "x@clinic.test", Password: "secret1"})
	assert.ErrorContains(t, err, "backend unavailable")
	assert.NotErrorIs(t, err, ErrEmailTaken)
	assert.Error(t, acc.DeleteAccount(context.Background(), "fb-uid"))
}

func TestLocalAccounts(t *testing.T) {
	acc := LocalAccounts{Prefix: "doc-"}

	a, err := acc.CreateAccount(context.Background(), NewAccount{Email: "a@clinic.test"})
	require.NoError(t, err)
	b, err := acc.CreateAccount(context.Background(), NewAccount{Email: "a@clinic.test"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(a, "doc-"))
	assert.NotEqual(t, a, b)
	assert.NoError(t, acc.DeleteAccount(context.Background(), a))
}
