package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/feed"
	"github.com/hackgods/clinic-availability/internal/metrics"
	"github.com/hackgods/clinic-availability/internal/users"
)

var testNow = time.Date(2026, 6, 15, 15, 0, 0, 0, time.UTC)

type testEnv struct {
	handler http.Handler
	mgr     *availability.Manager
	dir     *availability.MemoryDirectory
	ledger  *appointment.MemoryLedger
}

func newTestEnv(t *testing.T, ratePerMin int) *testEnv {
	t.Helper()

	dir := availability.NewMemoryDirectory()
	ledger := appointment.NewMemoryLedger()
	hub := feed.NewHub()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	require.NoError(t, dir.UpdateUser(context.Background(), availability.User{
		UID: "doc-1", FullName: "Dr. Ada", Role: auth.RoleDoctor,
	}))

	mgr := availability.NewManager(dir, ledger,
		availability.WithClock(func() time.Time { return testNow }),
		availability.WithFeed(hub),
		availability.WithMetrics(m),
	)

	handler := NewRouter(RouterConfig{
		Slots:        mgr,
		Directory:    dir,
		Appointments: appointment.NewService(ledger, hub, zap.NewNop()),
		Users:        users.NewService(dir, auth.LocalAccounts{Prefix: "doc-"}, hub, zap.NewNop()),
		Verifier:     auth.HeaderVerifier{},
		Metrics:      m,
		Gatherer:     reg,
		Checks: []Check{
			{Name: "store", Critical: true, Ping: func(context.Context) error { return nil }},
			{Name: "feed", Ping: func(context.Context) error { return errors.New("down") }},
		},
		Env:               "test",
		Version:           "v0",
		BookingRatePerMin: ratePerMin,
	})

	return &testEnv{handler: handler, mgr: mgr, dir: dir, ledger: ledger}
}

func (e *testEnv) do(t *testing.T, method, path, uid string, role auth.Role, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if uid != "" {
		req.Header.Set("X-User-ID", uid)
		req.Header.Set("X-User-Role", string(role))
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) addSlot(t *testing.T, date, start string) availability.Slot {
	t.Helper()
	s, err := e.mgr.AddSlot(context.Background(), "doc-1", availability.Slot{Date: date, StartTime: start, EndTime: "late"})
	require.NoError(t, err)
	return s
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/health/live", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = env.do(t, http.MethodGet, "/health/ready", "", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var ready ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ready))
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, map[string]string{"store": "ok", "feed": "down"}, ready.Dependencies)
}

func TestListDoctorsAndSlots(t *testing.T) {
	env := newTestEnv(t, 0)
	env.addSlot(t, "2099-01-01", "3pm")
	env.addSlot(t, "2000-01-01", "9")
	env.addSlot(t, "2099-01-01", "10")

	rec := env.do(t, http.MethodGet, "/doctors", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doctors []DoctorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doctors))
	require.Len(t, doctors, 1)
	assert.Equal(t, "doc-1", doctors[0].UID)

	rec = env.do(t, http.MethodGet, "/doctors/doc-1/slots", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var slots []SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &slots))
	require.Len(t, slots, 3)
	assert.Equal(t, availability.StatusExpired, slots[0].Status)
	assert.Equal(t, "10", slots[1].StartTime)
	assert.Equal(t, "3pm", slots[2].StartTime)
	assert.Equal(t, availability.StatusAvailable, slots[2].Status)

	rec = env.do(t, http.MethodGet, "/doctors/nobody/slots", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestSlotEditingRequiresOwner(t *testing.T) {
	env := newTestEnv(t, 0)
	body := `{"date":"2099-01-01","startTime":"14","endTime":"15"}`

	rec := env.do(t, http.MethodPost, "/doctors/doc-1/slots", "", "", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/doctors/doc-1/slots", "pat-1", auth.RolePatient, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/doctors/doc-1/slots", "doc-2", auth.RoleDoctor, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/doctors/doc-1/slots", "doc-1", auth.RoleDoctor, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Thursday", created.DayOfWeek)

	rec = env.do(t, http.MethodPost, "/doctors/doc-1/slots", "adm-1", auth.RoleAdmin, `{"startTime":"14"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec))

	rec = env.do(t, http.MethodPost, "/doctors/doc-1/slots", "doc-1", auth.RoleDoctor, `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateAndRemoveSlot(t *testing.T) {
	env := newTestEnv(t, 0)
	s := env.addSlot(t, "2099-01-01", "14")
	path := "/doctors/doc-1/slots/" + s.ID

	rec := env.do(t, http.MethodPut, path, "doc-1", auth.RoleDoctor, `{"date":"2099-01-02","startTime":"9","revision":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated SlotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, int64(2), updated.Revision)

	rec = env.do(t, http.MethodPut, path, "doc-1", auth.RoleDoctor, `{"date":"2099-01-03","startTime":"9","revision":1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "write_conflict", decodeError(t, rec))

	rec = env.do(t, http.MethodDelete, path, "doc-1", auth.RoleDoctor, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(t, http.MethodDelete, path, "doc-1", auth.RoleDoctor, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPut, path, "doc-1", auth.RoleDoctor, `{"date":"2099-01-03","startTime":"9","revision":2}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_changed", decodeError(t, rec))
}

func TestBookSlot(t *testing.T) {
	env := newTestEnv(t, 0)
	s := env.addSlot(t, "2099-01-01", "14")
	path := "/doctors/doc-1/slots/" + s.ID + "/book"

	rec := env.do(t, http.MethodPost, path, "", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "auth_required", decodeError(t, rec))

	rec = env.do(t, http.MethodPost, path, "doc-1", auth.RoleDoctor, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, path, "pat-1", auth.RolePatient, `{"consultationType":"in-person"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var appt appointment.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))
	assert.Equal(t, "pat-1", appt.PatientID)
	assert.Equal(t, appointment.ConsultationInPerson, appt.ConsultationType)

	rec = env.do(t, http.MethodPost, path, "pat-2", auth.RolePatient, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_already_taken", decodeError(t, rec))

	rec = env.do(t, http.MethodPost, "/doctors/doc-1/slots/missing/book", "pat-2", auth.RolePatient, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_changed", decodeError(t, rec))

	rec = env.do(t, http.MethodGet, "/metrics", "", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `clinic_bookings_total{result="ok"} 1`)
}

func TestBookLedgerOutageIsRetryable(t *testing.T) {
	env := newTestEnv(t, 0)
	s := env.addSlot(t, "2099-01-01", "14")
	env.ledger.FailBook = errors.New("ledger offline")

	rec := env.do(t, http.MethodPost, "/doctors/doc-1/slots/"+s.ID+"/book", "pat-1", auth.RolePatient, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "remote_unavailable", decodeError(t, rec))

	slots, err := env.mgr.ListSlots(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.False(t, slots[0].IsBooked)
}

func TestBookingIsRateLimited(t *testing.T) {
	env := newTestEnv(t, 1)
	s := env.addSlot(t, "2099-01-01", "14")
	path := "/doctors/doc-1/slots/" + s.ID + "/book"

	rec := env.do(t, http.MethodPost, path, "pat-1", auth.RolePatient, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, path, "pat-1", auth.RolePatient, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = env.do(t, http.MethodPost, path, "pat-2", auth.RolePatient, "")
	assert.Equal(t, http.StatusConflict, rec.Code, "other callers have their own bucket")
}

func TestAppointmentEndpoints(t *testing.T) {
	env := newTestEnv(t, 0)
	s := env.addSlot(t, "2099-01-01", "14")

	rec := env.do(t, http.MethodPost, "/doctors/doc-1/slots/"+s.ID+"/book", "pat-1", auth.RolePatient, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var appt appointment.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))
	path := "/appointments/" + appt.ID

	rec = env.do(t, http.MethodGet, "/appointments", "pat-1", auth.RolePatient, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []appointment.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = env.do(t, http.MethodGet, "/appointments", "pat-2", auth.RolePatient, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodGet, path, "pat-2", auth.RolePatient, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/appointments/nope", "adm-1", auth.RoleAdmin, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPatch, path+"/status", "pat-1", auth.RolePatient, `{"status":"completed"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPatch, path+"/notes", "pat-1", auth.RolePatient, `{"notes":"hi"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPatch, path+"/notes", "doc-1", auth.RoleDoctor, `{"notes":"  rest  "}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/documents", "doc-1", auth.RoleDoctor, `{"kind":"prescription","url":"not a url"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/documents", "doc-1", auth.RoleDoctor, `{"kind":"xray","url":"https://files.example/x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, path+"/documents", "doc-1", auth.RoleDoctor, `{"kind":"prescription","url":"https://files.example/rx.pdf"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPatch, path+"/status", "pat-1", auth.RolePatient, `{"status":"cancelled"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got appointment.Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, appointment.StatusCancelled, got.Status)
	require.NotNil(t, got.DoctorNotes)
	assert.Equal(t, "rest", *got.DoctorNotes)
	require.NotNil(t, got.PrescriptionURL)

	// cancelling in the ledger leaves the slot booked
	slots, err := env.mgr.ListSlots(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.True(t, slots[0].IsBooked)

	rec = env.do(t, http.MethodGet, "/appointments", "adm-1", auth.RoleAdmin, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestSlotStreamSendsUpdates(t *testing.T) {
	env := newTestEnv(t, 0)
	env.addSlot(t, "2099-01-01", "14")

	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/doctors/doc-1/slots/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := make(chan []SlotResponse, 4)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var slots []SlotResponse
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &slots) == nil {
				events <- slots
			}
		}
		close(events)
	}()

	next := func() []SlotResponse {
		select {
		case v := <-events:
			return v
		case <-time.After(2 * time.Second):
			t.Fatal("no stream event")
			return nil
		}
	}

	assert.Len(t, next(), 1)
	env.addSlot(t, "2099-01-01", "15")
	assert.Len(t, next(), 2)
}

func TestSlotRequestValidation(t *testing.T) {
	env := newTestEnv(t, 0)

	cases := map[string]string{
		"bad date":          `{"date":"01/02/2099","startTime":"14"}`,
		"bad start":         `{"date":"2099-01-02","startTime":"25pm"}`,
		"bad end":           `{"date":"2099-01-02","startTime":"9","endTime":"later"}`,
		"negative revision": `{"date":"2099-01-02","startTime":"9","revision":-1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/doctors/doc-1/slots", "doc-1", auth.RoleDoctor, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_request", decodeError(t, rec))
		})
	}

	rec := env.do(t, http.MethodPost, "/doctors/doc-1/slots", "doc-1", auth.RoleDoctor, `{"date":"2099-01-02","startTime":"3:30 PM","endTime":"4pm"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestUpdateSlotCannotBookThroughEdit(t *testing.T) {
	env := newTestEnv(t, 0)
	slot := env.addSlot(t, "2099-01-02", "9")

	body := fmt.Sprintf(`{"date":"2099-01-02","startTime":"9","isBooked":true,"revision":%d}`, slot.Revision)
	rec := env.do(t, http.MethodPut, "/doctors/doc-1/slots/"+slot.ID, "doc-1", auth.RoleDoctor, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec))

	slots, err := env.mgr.ListSlots(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.False(t, slots[0].IsBooked)
}
