package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
)

func seedUser(t *testing.T, env *testEnv, u availability.User) {
	t.Helper()
	require.NoError(t, env.dir.UpdateUser(context.Background(), u))
}

func TestUserRoutesAreAdminOnly(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/users?role=patient", ""},
		{http.MethodPost, "/users/doctors", `{"email":"x@clinic.test","password":"secret1","fullName":"Dr. X","specialization":"GP"}`},
		{http.MethodDelete, "/users/doc-1", ""},
	} {
		rec := env.do(t, tc.method, tc.path, "", "", tc.body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)

		for _, role := range []auth.Role{auth.RolePatient, auth.RoleDoctor} {
			rec := env.do(t, tc.method, tc.path, "doc-1", role, tc.body)
			assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s as %s", tc.method, tc.path, role)
		}
	}

	_, err := env.dir.GetUser(context.Background(), "doc-1")
	assert.NoError(t, err)
}

func TestAdminListsUsersByRole(t *testing.T) {
	env := newTestEnv(t, 0)
	seedUser(t, env, availability.User{UID: "pat-2", FullName: "Bea", Role: auth.RolePatient, FCMToken: "device"})
	seedUser(t, env, availability.User{UID: "pat-1", FullName: "Al", Role: auth.RolePatient})

	rec := env.do(t, http.MethodGet, "/users?role=patient", "adm-1", auth.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "device")

	var list []UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "pat-1", list[0].UID)
	assert.False(t, list[0].PushEnabled)
	assert.Equal(t, "pat-2", list[1].UID)
	assert.True(t, list[1].PushEnabled)

	rec = env.do(t, http.MethodGet, "/users?role=admin", "adm-1", auth.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	for _, path := range []string{"/users", "/users?role=nurse"} {
		rec := env.do(t, http.MethodGet, path, "adm-1", auth.RoleAdmin, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "invalid_request", decodeError(t, rec))
	}
}

func TestAdminCreatesDoctor(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/users/doctors", "adm-1", auth.RoleAdmin,
		`{"email":"lee@clinic.test","password":"secret1","fullName":"Dr. Lee","specialization":" Cardiology "}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, strings.HasPrefix(created.UID, "doc-"))
	assert.Equal(t, auth.RoleDoctor, created.Role)
	assert.Equal(t, "lee@clinic.test", created.Email)
	require.NotNil(t, created.Specialization)
	assert.Equal(t, "Cardiology", *created.Specialization)
	assert.False(t, created.CreatedAt.IsZero())

	rec = env.do(t, http.MethodGet, "/doctors", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doctors []DoctorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doctors))
	assert.Len(t, doctors, 2)

	cases := map[string]string{
		"bad email":      `{"email":"lee","password":"secret1","fullName":"Dr. Lee","specialization":"GP"}`,
		"short password": `{"email":"lee@clinic.test","password":"123","fullName":"Dr. Lee","specialization":"GP"}`,
		"no name":        `{"email":"lee@clinic.test","password":"secret1","specialization":"GP"}`,
		"no speciality":  `{"email":"lee@clinic.test","password":"secret1","fullName":"Dr. Lee"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/users/doctors", "adm-1", auth.RoleAdmin, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decodeError(t, rec))
		})
	}
}

func TestAdminDeletesUser(t *testing.T) {
	env := newTestEnv(t, 0)
	env.addSlot(t, "2099-01-02", "9")

	rec := env.do(t, http.MethodDelete, "/users/doc-1", "adm-1", auth.RoleAdmin, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err := env.dir.GetUser(context.Background(), "doc-1")
	assert.ErrorIs(t, err, availability.ErrUserNotFound)

	rec = env.do(t, http.MethodGet, "/doctors/doc-1/slots", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/users/doc-1", "adm-1", auth.RoleAdmin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "user_not_found", decodeError(t, rec))

	seedUser(t, env, availability.User{UID: "adm-1", Role: auth.RoleAdmin})
	rec = env.do(t, http.MethodDelete, "/users/adm-1", "adm-1", auth.RoleAdmin, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, err = env.dir.GetUser(context.Background(), "adm-1")
	assert.NoError(t, err)
}

func TestProfileSelfService(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/users/me", "pat-9", auth.RolePatient, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// first write registers a patient even when the caller claims more
	rec = env.do(t, http.MethodPut, "/users/me", "pat-9", auth.RoleDoctor,
		`{"fullName":"Kim","email":"kim@mail.test","phone":"+48 600 000 000","dateOfBirth":"1990-04-01","specialization":"Surgery"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var me UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "pat-9", me.UID)
	assert.Equal(t, auth.RolePatient, me.Role)
	assert.Nil(t, me.Specialization)
	require.NotNil(t, me.Phone)
	assert.Equal(t, "+48 600 000 000", *me.Phone)

	rec = env.do(t, http.MethodPut, "/users/me", "pat-9", auth.RolePatient, `{"fullName":"Kim","email":"kim@mail.test","dateOfBirth":"01.04.1990"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/users/me", "pat-9", auth.RolePatient, `{"fullName":"Kim","email":"not-an-email"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// doctors keep their slots and may edit their specialization
	env.addSlot(t, "2099-01-02", "9")
	rec = env.do(t, http.MethodPut, "/users/me", "doc-1", auth.RoleDoctor,
		`{"fullName":"Dr. Ada L.","email":"ada@clinic.test","specialization":"Neurology","licenseNumber":"PWZ-1234"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := env.dir.GetUser(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Dr. Ada L.", doc.FullName)
	assert.Equal(t, auth.RoleDoctor, doc.Role)
	require.NotNil(t, doc.LicenseNumber)
	assert.Equal(t, "PWZ-1234", *doc.LicenseNumber)
	assert.Len(t, doc.Availability, 1)
}

func TestPushTokenUpdate(t *testing.T) {
	env := newTestEnv(t, 0)
	seedUser(t, env, availability.User{UID: "pat-1", FullName: "Al", Role: auth.RolePatient})

	rec := env.do(t, http.MethodPut, "/users/me/fcm-token", "pat-1", auth.RolePatient, `{"fcmToken":" device-1 "}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	u, err := env.dir.GetUser(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Equal(t, "device-1", u.FCMToken)
	assert.Equal(t, "Al", u.FullName)

	rec = env.do(t, http.MethodGet, "/users/me", "pat-1", auth.RolePatient, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "device-1")

	rec = env.do(t, http.MethodPut, "/users/me/fcm-token", "pat-1", auth.RolePatient, `{"fcmToken":""}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	u, err = env.dir.GetUser(context.Background(), "pat-1")
	require.NoError(t, err)
	assert.Empty(t, u.FCMToken)

	rec = env.do(t, http.MethodPut, "/users/me/fcm-token", "ghost", auth.RolePatient, `{"fcmToken":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
