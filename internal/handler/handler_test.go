package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/express-reservations/internal/clock"
	"github.com/iliyamo/express-reservations/internal/model"
	"github.com/iliyamo/express-reservations/internal/repository"
	"github.com/iliyamo/express-reservations/internal/service"
	"github.com/iliyamo/express-reservations/internal/tasks"
	"github.com/iliyamo/express-reservations/internal/ticket"
)

type countingDispatcher struct {
	mu sync.Mutex
	n  int
}

func (d *countingDispatcher) Dispatch(ctx context.Context, task tasks.PostPaymentTask) {
	d.mu.Lock()
	d.n++
	d.mu.Unlock()
}

type fixedStats struct{}

func (fixedStats) Stats() tasks.Stats { return tasks.Stats{Dispatched: 2, Delivered: 1, DeliveryFailed: 1} }

type api struct {
	e          *echo.Echo
	dispatcher *countingDispatcher
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := repository.NewMemoryReservationRepo(model.DefaultCategories())
	clk := clock.NewFixed(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	log := zap.NewNop()
	d := &countingDispatcher{}

	reservations := NewReservationHandler(service.NewReservationService(store, ticket.NewPDFRenderer(), clk, log), log)
	checkout := NewCheckoutHandler(service.NewCheckoutService(store, d, clk, log), log)
	availability := NewAvailabilityHandler(service.NewAvailabilityService(store), log)
	health := NewHealthHandler(fixedStats{}, clk)

	e := echo.New()
	e.GET("/", health.Root)
	e.GET("/healthz", health.Health)
	e.GET("/v1/availability", availability.Check)
	e.POST("/v1/reservations", reservations.Create)
	e.GET("/v1/reservations/:id", reservations.Get)
	e.GET("/v1/reservations/:id/ticket", reservations.Ticket)
	e.POST("/v1/checkout", checkout.Pay)
	return &api{e: e, dispatcher: d}
}

func (a *api) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func reservationBody(qty int) string {
	return `{"email":"guest@example.com","category":"basic","startDate":"2026-04-01","endDate":"2026-04-03","quantity":` +
		strconv.Itoa(qty) + `}`
}

func (a *api) createReservation(t *testing.T, qty int) string {
	t.Helper()
	rec := a.do(http.MethodPost, "/v1/reservations", reservationBody(qty))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]any)
	return data["id"].(string)
}

func checkoutBody(id, card string) string {
	return `{"reservationId":"` + id + `","cardNumber":"` + card + `","cardHolder":"Ana Perez","expiration":"12/29","cvv":"123"}`
}

func TestCreateReservation(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/reservations", reservationBody(15))
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Reservation created successfully", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "BASIC", data["category"])
	assert.Equal(t, "PENDING", data["status"])
	assert.Equal(t, 1500.0, data["total"])
	assert.Equal(t, "2026-04-01", data["startDate"])

	rec = a.do(http.MethodPost, "/v1/reservations", reservationBody(6))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INSUFFICIENT_CAPACITY", decode(t, rec)["code"])

	rec = a.do(http.MethodPost, "/v1/reservations", reservationBody(5))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestCreateReservation_Rejections(t *testing.T) {
	a := newAPI(t)

	cases := []struct {
		name string
		body string
		code string
	}{
		{"malformed", `{"email":`, codeInvalidBody},
		{"bad email", `{"email":"nope","category":"BASIC","startDate":"2026-04-01","endDate":"2026-04-02","quantity":1}`, codeValidation},
		{"zero quantity", `{"email":"a@b.io","category":"BASIC","startDate":"2026-04-01","endDate":"2026-04-02","quantity":0}`, "INVALID_QUANTITY"},
		{"reversed dates", `{"email":"a@b.io","category":"BASIC","startDate":"2026-04-02","endDate":"2026-04-01","quantity":1}`, "INVALID_DATE_RANGE"},
		{"unknown category", `{"email":"a@b.io","category":"GOLD","startDate":"2026-04-01","endDate":"2026-04-02","quantity":1}`, "INVALID_CATEGORY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(http.MethodPost, "/v1/reservations", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.code, decode(t, rec)["code"])
		})
	}
}

func TestAvailability(t *testing.T) {
	a := newAPI(t)
	a.createReservation(t, 4)

	rec := a.do(http.MethodGet, "/v1/availability?startDate=2026-04-02&endDate=2026-04-05", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, "BASIC", rows[0]["category"])
	assert.Equal(t, 4.0, rows[0]["reserved"])
	assert.Equal(t, 16.0, rows[0]["available"])

	rec = a.do(http.MethodGet, "/v1/availability?startDate=2026-04-03&endDate=2026-04-05", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Equal(t, 20.0, rows[0]["available"])

	for _, q := range []string{"", "?startDate=2026-04-02", "?startDate=2026-04-05&endDate=2026-04-02", "?startDate=x&endDate=y"} {
		rec = a.do(http.MethodGet, "/v1/availability"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, "INVALID_DATE_RANGE", decode(t, rec)["code"])
	}
}

func TestGetReservation(t *testing.T) {
	a := newAPI(t)
	id := a.createReservation(t, 2)

	rec := a.do(http.MethodGet, "/v1/reservations/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, id, body["id"])
	assert.Equal(t, "guest@example.com", body["email"])
	assert.Equal(t, 200.0, body["total"])
	assert.NotContains(t, body, "paidAt")

	rec = a.do(http.MethodGet, "/v1/reservations/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "RESERVATION_NOT_FOUND", decode(t, rec)["code"])
}

func TestTicket(t *testing.T) {
	a := newAPI(t)
	id := a.createReservation(t, 1)

	rec := a.do(http.MethodGet, "/v1/reservations/"+id+"/ticket", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="reservation-`+id+`.pdf"`, rec.Header().Get(echo.HeaderContentDisposition))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec = a.do(http.MethodGet, "/v1/reservations/missing/ticket", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout(t *testing.T) {
	a := newAPI(t)
	id := a.createReservation(t, 3)

	rec := a.do(http.MethodPost, "/v1/checkout", checkoutBody(id, "4242 4242 4242 4242"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Payment processed successfully", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, id, data["reservationId"])
	assert.Equal(t, "PAID", data["status"])
	assert.Equal(t, 300.0, data["totalPaid"])

	rec = a.do(http.MethodPost, "/v1/checkout", checkoutBody(id, "4242 4242 4242 4242"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_PAID", decode(t, rec)["code"])

	a.dispatcher.mu.Lock()
	defer a.dispatcher.mu.Unlock()
	assert.Equal(t, 1, a.dispatcher.n)
}

func TestCheckout_Rejections(t *testing.T) {
	a := newAPI(t)
	id := a.createReservation(t, 1)

	rec := a.do(http.MethodPost, "/v1/checkout", checkoutBody(id, "4242 4242 4242 4241"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CARD", decode(t, rec)["code"])

	rec = a.do(http.MethodPost, "/v1/checkout", checkoutBody("missing", "4242 4242 4242 4242"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	shapes := []string{
		`{"reservationId":"` + id + `","cardNumber":"4242424242424242","cardHolder":"","expiration":"12/29","cvv":"123"}`,
		`{"reservationId":"` + id + `","cardNumber":"4242424242424242","cardHolder":"A","expiration":"13/29","cvv":"123"}`,
		`{"reservationId":"` + id + `","cardNumber":"4242424242424242","cardHolder":"A","expiration":"12/29","cvv":"12"}`,
		`{"cardNumber":"4242424242424242","cardHolder":"A","expiration":"12/29","cvv":"123"}`,
	}
	for _, s := range shapes {
		rec = a.do(http.MethodPost, "/v1/checkout", s)
		assert.Equal(t, http.StatusBadRequest, rec.Code, s)
		assert.Equal(t, codeValidation, decode(t, rec)["code"])
	}
	assert.Zero(t, a.dispatcher.n)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 1.0, body["tasks"].(map[string]any)["delivery_failed"])

	rec = a.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "API is running!", decode(t, rec)["message"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(service.KindInvalidInput))
	assert.Equal(t, http.StatusNotFound, statusFor(service.KindNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(service.KindConflict))
	assert.Equal(t, http.StatusInternalServerError, statusFor(service.KindInternal))
}

type unreachableStore struct {
	*repository.MemoryReservationRepo
}

var errStoreDown = errors.New("connection refused")

func (unreachableStore) ListCategories(ctx context.Context) ([]model.Category, error) {
	return nil, errStoreDown
}

func TestInternalErrorsAreLoggedNotLeaked(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	store := unreachableStore{repository.NewMemoryReservationRepo(model.DefaultCategories())}
	h := NewAvailabilityHandler(service.NewAvailabilityService(store), zap.New(core))

	e := echo.New()
	e.GET("/v1/availability", h.Check)
	req := httptest.NewRequest(http.MethodGet, "/v1/availability?startDate=2026-04-01&endDate=2026-04-02", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "INTERNAL", body["code"])
	assert.NotContains(t, rec.Body.String(), "connection refused")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "request failed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/v1/availability", fields["path"])
	assert.Contains(t, fields["error"], "connection refused")
}
