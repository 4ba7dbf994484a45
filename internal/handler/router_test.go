package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sswpa/box-office/internal/gateway"
	"github.com/sswpa/box-office/internal/model"
	"github.com/sswpa/box-office/internal/repository"
	"github.com/sswpa/box-office/internal/service/domain"
	"github.com/sswpa/box-office/internal/service/workflow"
)

const testAdminSecret = "test-admin-secret"

// paymentStub is a minimal Square payments endpoint: approve by
// default, flip behavior per test, dedupe captures by idempotency key.
type paymentStub struct {
	declineCode string
	failStatus  int
	captures    map[string]string
}

func (s *paymentStub) handle(w http.ResponseWriter, r *http.Request) {
	if s.failStatus != 0 {
		w.WriteHeader(s.failStatus)
		return
	}
	var req struct {
		IdempotencyKey string `json:"idempotency_key"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	w.Header().Set("Content-Type", "application/json")
	if s.declineCode != "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(gin.H{
			"errors": []gin.H{{
				"category": "PAYMENT_METHOD_ERROR",
				"code":     s.declineCode,
			}},
		})
		return
	}
	id, ok := s.captures[req.IdempotencyKey]
	if !ok {
		id = "pay_" + req.IdempotencyKey
		s.captures[req.IdempotencyKey] = id
	}
	json.NewEncoder(w).Encode(gin.H{
		"payment": gin.H{"id": id, "status": "COMPLETED"},
	})
}

func newTestRouter(t *testing.T) (*gin.Engine, *paymentStub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Recital{},
		&model.TicketType{},
		&model.Order{},
		&model.OrderItem{},
	))

	stub := &paymentStub{captures: make(map[string]string)}
	srv := httptest.NewServer(http.HandlerFunc(stub.handle))
	t.Cleanup(srv.Close)

	log := zap.NewNop()
	recitalRepo := repository.NewRecitalRepoGorm(db)
	ttRepo := repository.NewTicketTypeRepoGorm(db)
	orderRepo := repository.NewOrderRepoGorm(db)

	recitals := domain.NewRecitalService(db, recitalRepo, nil, log)
	catalog := domain.NewCatalogService(db, ttRepo, recitals, nil, time.Hour, log)
	orders := domain.NewOrderService(db, orderRepo, ttRepo, time.Hour, log)
	payments := domain.NewPaymentService(
		gateway.NewSquareClient(srv.URL, gateway.NewStaticCredentials("test-token"), 5*time.Second),
		"USD", log)
	checkout := workflow.NewCheckoutWorkflow(recitals, orders, payments, nil, time.Hour, log)

	public := NewPublicHandler(recitals, catalog, orders, checkout)
	admin := NewAdminHandler(recitals, catalog, orders)
	return NewRouter(public, admin, testAdminSecret), stub
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set(adminSecretHeader, testAdminSecret)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// setUpRecitalOnSale drives the admin surface the way an operator
// would: create the recital, add a ticket type, put it on sale.
func setUpRecitalOnSale(t *testing.T, router *gin.Engine, slug string, totalAvailable *int) uint {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/admin/recitals", gin.H{
		"slug":      slug,
		"title":     "Evening Recital",
		"artist":    "Daniil Trifonov",
		"venue":     "Carnegie Music Hall",
		"starts_at": time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}, true)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	recitalID := uint(decodeBody(t, rec)["recital"].(map[string]any)["id"].(float64))

	payload := gin.H{"name": "General", "price_cents": 2500}
	if totalAvailable != nil {
		payload["total_available"] = *totalAvailable
	}
	rec = doRequest(t, router, http.MethodPost,
		fmt.Sprintf("/admin/recitals/%d/ticket-types", recitalID), payload, true)
	require.Equal(t, 201, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodPatch,
		fmt.Sprintf("/admin/recitals/%d/status", recitalID), gin.H{"status": "on_sale"}, true)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	return recitalID
}

func checkoutBody(slug string, ticketTypeID uint, qty int) gin.H {
	return gin.H{
		"recital_slug":  slug,
		"buyer":         gin.H{"name": "Clara Wieck", "email": "clara@example.org"},
		"items":         []gin.H{{"ticket_type_id": ticketTypeID, "quantity": qty}},
		"payment_token": "cnon:card-nonce-ok",
	}
}

func ticketTypeID(t *testing.T, router *gin.Engine, slug string) uint {
	t.Helper()
	rec := doRequest(t, router, http.MethodGet, "/recitals/"+slug+"/ticket-types", nil, false)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	types := decodeBody(t, rec)["ticket_types"].([]any)
	require.NotEmpty(t, types)
	return uint(types[0].(map[string]any)["id"].(float64))
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/health", nil, false)
	assert.Equal(t, 200, rec.Code)
}

func TestAdminSurfaceRequiresSecret(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/admin/recitals", nil, false)
	assert.Equal(t, 401, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/admin/recitals", nil, true)
	assert.Equal(t, 200, rec.Code)
}

func TestAdminSurfaceDisabledWithoutConfiguredSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/ping", RequireAdminSecret(""), func(c *gin.Context) { c.Status(200) })

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set(adminSecretHeader, "anything")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, 403, rec.Code)
}

func TestPublicListingsHideNonVisibleRecitals(t *testing.T) {
	router, _ := newTestRouter(t)
	recitalID := setUpRecitalOnSale(t, router, "spring-gala", nil)

	rec := doRequest(t, router, http.MethodGet, "/recitals", nil, false)
	require.Equal(t, 200, rec.Code)
	assert.Len(t, decodeBody(t, rec)["recitals"], 1)

	rec = doRequest(t, router, http.MethodPatch,
		fmt.Sprintf("/admin/recitals/%d/status", recitalID), gin.H{"status": "past"}, true)
	require.Equal(t, 200, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/recitals", nil, false)
	require.Equal(t, 200, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["recitals"])

	rec = doRequest(t, router, http.MethodGet, "/recitals/spring-gala/ticket-types", nil, false)
	assert.Equal(t, 404, rec.Code)
}

func TestCheckoutHappyPath(t *testing.T) {
	router, _ := newTestRouter(t)
	setUpRecitalOnSale(t, router, "happy-path", nil)
	ttID := ticketTypeID(t, router, "happy-path")

	rec := doRequest(t, router, http.MethodPost, "/checkout", checkoutBody("happy-path", ttID, 2), false)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	order := decodeBody(t, rec)["order"].(map[string]any)
	assert.Equal(t, "completed", order["payment_status"])
	assert.Equal(t, float64(5000), order["total_amount_cents"])
	reference := order["reference"].(string)

	rec = doRequest(t, router, http.MethodGet, "/orders/"+reference, nil, false)
	require.Equal(t, 200, rec.Code)
	fetched := decodeBody(t, rec)["order"].(map[string]any)
	assert.Equal(t, "completed", fetched["payment_status"])
	assert.Len(t, fetched["items"], 1)
}

func TestCheckoutDeclinedReturns402(t *testing.T) {
	router, stub := newTestRouter(t)
	setUpRecitalOnSale(t, router, "bad-card", nil)
	ttID := ticketTypeID(t, router, "bad-card")
	stub.declineCode = "CARD_DECLINED"

	rec := doRequest(t, router, http.MethodPost, "/checkout", checkoutBody("bad-card", ttID, 1), false)
	require.Equal(t, 402, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["retryable"])
	order := body["order"].(map[string]any)
	assert.Equal(t, "failed", order["payment_status"])
	assert.Equal(t, "CARD_DECLINED", order["failure_reason"])
}

func TestCheckoutOutageThenRetry(t *testing.T) {
	router, stub := newTestRouter(t)
	setUpRecitalOnSale(t, router, "flaky-gateway", nil)
	ttID := ticketTypeID(t, router, "flaky-gateway")

	stub.failStatus = http.StatusBadGateway
	rec := doRequest(t, router, http.MethodPost, "/checkout", checkoutBody("flaky-gateway", ttID, 1), false)
	require.Equal(t, 503, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["retryable"])
	reference := body["order"].(map[string]any)["reference"].(string)

	stub.failStatus = 0
	rec = doRequest(t, router, http.MethodPost, "/orders/"+reference+"/retry",
		gin.H{"payment_token": "cnon:card-nonce-ok"}, false)
	require.Equal(t, 201, rec.Code, rec.Body.String())
	order := decodeBody(t, rec)["order"].(map[string]any)
	assert.Equal(t, "completed", order["payment_status"])
	assert.Len(t, stub.captures, 1)
}

func TestCheckoutSoldOutReturns409(t *testing.T) {
	router, _ := newTestRouter(t)
	one := 1
	setUpRecitalOnSale(t, router, "tiny-hall", &one)
	ttID := ticketTypeID(t, router, "tiny-hall")

	rec := doRequest(t, router, http.MethodGet,
		fmt.Sprintf("/ticket-types/%d/availability", ttID), nil, false)
	require.Equal(t, 200, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["available"])
	assert.Equal(t, float64(1), body["remaining"])

	rec = doRequest(t, router, http.MethodPost, "/checkout", checkoutBody("tiny-hall", ttID, 1), false)
	require.Equal(t, 201, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet,
		fmt.Sprintf("/ticket-types/%d/availability", ttID), nil, false)
	require.Equal(t, 200, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, float64(0), body["remaining"])

	rec = doRequest(t, router, http.MethodPost, "/checkout", checkoutBody("tiny-hall", ttID, 1), false)
	assert.Equal(t, 409, rec.Code)
}

func TestCheckoutRejectsMalformedPayload(t *testing.T) {
	router, _ := newTestRouter(t)
	setUpRecitalOnSale(t, router, "strict-input", nil)
	ttID := ticketTypeID(t, router, "strict-input")

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing payment token", gin.H{
			"recital_slug": "strict-input",
			"buyer":        gin.H{"name": "A", "email": "a@example.org"},
			"items":        []gin.H{{"ticket_type_id": ttID, "quantity": 1}},
		}},
		{"bad email", gin.H{
			"recital_slug":  "strict-input",
			"buyer":         gin.H{"name": "A", "email": "not-an-email"},
			"items":         []gin.H{{"ticket_type_id": ttID, "quantity": 1}},
			"payment_token": "tok",
		}},
		{"no items", gin.H{
			"recital_slug":  "strict-input",
			"buyer":         gin.H{"name": "A", "email": "a@example.org"},
			"items":         []gin.H{},
			"payment_token": "tok",
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, "/checkout", c.body, false)
			assert.Equal(t, 400, rec.Code, rec.Body.String())
		})
	}
}

func TestAdminPartialTicketTypeUpdateKeepsOmittedFields(t *testing.T) {
	router, _ := newTestRouter(t)
	five := 5
	setUpRecitalOnSale(t, router, "partial-edit", &five)
	ttID := ticketTypeID(t, router, "partial-edit")

	// Deactivating must not touch price, cap, or per-order limit.
	rec := doRequest(t, router, http.MethodPatch, fmt.Sprintf("/admin/ticket-types/%d", ttID),
		gin.H{"active": false}, true)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	tt := decodeBody(t, rec)["ticket_types"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(2500), tt["price_cents"])
	assert.Equal(t, float64(5), tt["total_available"])
	assert.Equal(t, float64(10), tt["max_per_order"])
	assert.Equal(t, false, tt["active"])

	// An explicit zero lifts the cap to unlimited.
	rec = doRequest(t, router, http.MethodPatch, fmt.Sprintf("/admin/ticket-types/%d", ttID),
		gin.H{"total_available": 0, "active": true}, true)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	tt = decodeBody(t, rec)["ticket_types"].([]any)[0].(map[string]any)
	_, hasCap := tt["total_available"]
	assert.False(t, hasCap)
	assert.Equal(t, float64(2500), tt["price_cents"])

	rec = doRequest(t, router, http.MethodPatch, "/admin/ticket-types/424242",
		gin.H{"active": false}, true)
	assert.Equal(t, 404, rec.Code)
}

func TestAdminUpdateRecital(t *testing.T) {
	router, _ := newTestRouter(t)
	recitalID := setUpRecitalOnSale(t, router, "renamed-show", nil)

	rec := doRequest(t, router, http.MethodPut, fmt.Sprintf("/admin/recitals/%d", recitalID), gin.H{
		"title":     "An Evening of Chopin",
		"artist":    "Daniil Trifonov",
		"venue":     "Heinz Hall",
		"starts_at": time.Now().Add(45 * 24 * time.Hour).Format(time.RFC3339),
	}, true)
	require.Equal(t, 200, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/recitals/renamed-show/ticket-types", nil, false)
	require.Equal(t, 200, rec.Code)
	recital := decodeBody(t, rec)["recital"].(map[string]any)
	assert.Equal(t, "An Evening of Chopin", recital["title"])
	assert.Equal(t, "Heinz Hall", recital["venue"])
}

func TestAdminRefundFlow(t *testing.T) {
	router, _ := newTestRouter(t)
	setUpRecitalOnSale(t, router, "refund-me", nil)
	ttID := ticketTypeID(t, router, "refund-me")

	rec := doRequest(t, router, http.MethodPost, "/checkout", checkoutBody("refund-me", ttID, 1), false)
	require.Equal(t, 201, rec.Code)
	reference := decodeBody(t, rec)["order"].(map[string]any)["reference"].(string)

	rec = doRequest(t, router, http.MethodPost, "/admin/orders/"+reference+"/refund", nil, true)
	require.Equal(t, 200, rec.Code, rec.Body.String())
	assert.Equal(t, "refunded",
		decodeBody(t, rec)["order"].(map[string]any)["payment_status"])

	// Refunding twice is a conflict, not a second refund.
	rec = doRequest(t, router, http.MethodPost, "/admin/orders/"+reference+"/refund", nil, true)
	assert.Equal(t, 409, rec.Code)
}

func TestAdminPriceChangeBlockedAfterSale(t *testing.T) {
	router, _ := newTestRouter(t)
	setUpRecitalOnSale(t, router, "fixed-price", nil)
	ttID := ticketTypeID(t, router, "fixed-price")

	rec := doRequest(t, router, http.MethodPost, "/checkout", checkoutBody("fixed-price", ttID, 1), false)
	require.Equal(t, 201, rec.Code)

	rec = doRequest(t, router, http.MethodPatch, fmt.Sprintf("/admin/ticket-types/%d", ttID),
		gin.H{"name": "General", "price_cents": 9900}, true)
	assert.Equal(t, 409, rec.Code, rec.Body.String())
}
