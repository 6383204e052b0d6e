package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/revolutionai/storefront/internal/adminkey"
	"github.com/revolutionai/storefront/internal/catalog"
	"github.com/revolutionai/storefront/internal/checkout"
	"github.com/revolutionai/storefront/internal/clock"
	"github.com/revolutionai/storefront/internal/config"
	contactrepo "github.com/revolutionai/storefront/internal/contact/repository"
	contactservice "github.com/revolutionai/storefront/internal/contact/service"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	orderrepo "github.com/revolutionai/storefront/internal/order/repository"
	orderservice "github.com/revolutionai/storefront/internal/order/service"
	paymentdomain "github.com/revolutionai/storefront/internal/payment/domain"
	"github.com/revolutionai/storefront/internal/providers/pdf"
	"github.com/revolutionai/storefront/internal/testutil"
	"github.com/revolutionai/storefront/internal/validation"
	"go.uber.org/zap"
)

const testAdminKey = "sk_admin_test_key"

type fakeCheckout struct {
	got    checkout.Request
	result checkout.Result
	err    error
}

func (f *fakeCheckout) CreateOrder(_ context.Context, req checkout.Request) (checkout.Result, error) {
	f.got = req
	return f.result, f.err
}

type fakeWebhooks struct {
	method  string
	payload []byte
	err     error
}

func (f *fakeWebhooks) Reconcile(_ context.Context, method string, payload []byte, _ http.Header) error {
	f.method = method
	f.payload = payload
	return f.err
}

type testServer struct {
	srv      *Server
	router   *gin.Engine
	checkout *fakeCheckout
	webhooks *fakeWebhooks
	orders   orderdomain.Service
}

func newTestServer(t *testing.T, verifier *adminkey.Verifier) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	node := testutil.Node(t)
	clk := clock.NewFakeClock(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC))

	orders := orderservice.New(orderservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  orderrepo.Provide(),
		Clock: clk,
	})
	contact := contactservice.New(contactservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  contactrepo.Provide(),
		Clock: clk,
	})
	products, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	router := gin.New()
	router.Use(ErrorHandlingMiddleware())

	ts := &testServer{
		router:   router,
		checkout: &fakeCheckout{},
		webhooks: &fakeWebhooks{},
		orders:   orders,
	}
	cfg := config.Config{}
	cfg.Email.FromName = "Revolution AI"
	cfg.Email.FromEmail = "noreply@example.com"
	cfg.Sweeper.PendingTTL = 26 * time.Hour
	cfg.Sweeper.BatchSize = 50

	ts.srv = &Server{
		engine:   router,
		cfg:      cfg,
		log:      zap.NewNop(),
		catalog:  products,
		checkout: ts.checkout,
		webhooks: ts.webhooks,
		orders:   orders,
		contact:  contact,
		receipts: pdf.New(),
		adminKey: verifier,
	}
	ts.srv.registerStorefrontRoutes()
	ts.srv.registerWebhookRoutes()
	ts.srv.registerAdminRoutes()
	ts.srv.registerFallback()
	return ts
}

func (ts *testServer) do(method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	ts.router.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", resp.Body.String(), err)
	}
}

func (ts *testServer) createOrder(t *testing.T) orderdomain.Order {
	t.Helper()
	order, err := ts.orders.Create(context.Background(), orderdomain.NewOrder{
		ProductID:         "ai-email-assistant",
		ProductName:       "AI Email Assistant",
		ProductPrice:      "$9",
		AmountCents:       900,
		Currency:          "USD",
		CustomerFirstName: "Ada",
		CustomerLastName:  "Lovelace",
		CustomerEmail:     "ada@example.com",
		CustomerPhone:     "+441234567890",
		PaymentMethod:     "card",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestCreatePayment(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.checkout.result = checkout.Result{
		OrderID:       snowflake.ID(42),
		RedirectURL:   "https://pay.test/inv-1",
		PaymentMethod: paymentdomain.MethodCrypto,
		QRCode:        "qr",
	}

	body := `{"product":{"id":"ai-email-assistant","price":"$0"},"customer":{"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","phone":"+441234567890"},"paymentMethod":"cryptomus"}`
	resp := ts.do(http.MethodPost, "/payments/create", body, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var got createPaymentResponse
	decode(t, resp, &got)
	if got.OrderID != "42" || got.RedirectURL != "https://pay.test/inv-1" || got.PaymentMethod != "crypto" || got.QRCode != "qr" {
		t.Fatalf("unexpected response %+v", got)
	}
	if ts.checkout.got.ProductID != "ai-email-assistant" || ts.checkout.got.PaymentMethod != "cryptomus" || ts.checkout.got.Customer.Email != "ada@example.com" {
		t.Fatalf("unexpected checkout request %+v", ts.checkout.got)
	}

	resp = ts.do(http.MethodPost, "/api/payments/create", `{"productId":"ai-chatbot","customer":{},"paymentMethod":"card"}`, nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 on legacy path, got %d", resp.Code)
	}
	if ts.checkout.got.ProductID != "ai-chatbot" {
		t.Fatalf("expected productId fallback, got %q", ts.checkout.got.ProductID)
	}
}

func TestCreatePaymentErrors(t *testing.T) {
	fieldErrs := &validation.Errors{}
	fieldErrs.Add("email", "invalid", "Invalid email format")

	cases := []struct {
		name   string
		body   string
		err    error
		status int
		typ    string
	}{
		{name: "malformed body", body: `{`, status: http.StatusBadRequest, typ: "validation_error"},
		{name: "field errors", body: `{}`, err: fieldErrs, status: http.StatusBadRequest, typ: "validation_error"},
		{name: "not configured", body: `{}`, err: paymentdomain.ErrGatewayNotConfigured, status: http.StatusServiceUnavailable, typ: "service_unavailable"},
		{name: "gateway failure", body: `{}`, err: &paymentdomain.GatewayError{Provider: "stripe", Message: "card_declined"}, status: http.StatusBadGateway, typ: "payment_gateway_error"},
		{name: "unknown provider", body: `{}`, err: paymentdomain.ErrProviderNotFound, status: http.StatusNotFound, typ: "not_found"},
		{name: "storage", body: `{}`, err: errors.New("db down"), status: http.StatusInternalServerError, typ: "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.checkout.err = tc.err

			resp := ts.do(http.MethodPost, "/payments/create", tc.body, nil)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			var got errorResponse
			decode(t, resp, &got)
			if got.Error.Type != tc.typ {
				t.Fatalf("expected type %s, got %+v", tc.typ, got.Error)
			}
			if strings.Contains(resp.Body.String(), "card_declined") {
				t.Fatalf("backend detail leaked: %s", resp.Body.String())
			}
		})
	}
}

func TestCreatePaymentReportsFieldErrors(t *testing.T) {
	ts := newTestServer(t, nil)
	errs := &validation.Errors{}
	errs.Add("email", "invalid", "Invalid email format")
	errs.Add("phone", "required", "phone is required")
	ts.checkout.err = errs

	resp := ts.do(http.MethodPost, "/payments/create", `{}`, nil)
	var got errorResponse
	decode(t, resp, &got)
	if len(got.Error.Errors) != 2 || got.Error.Errors[0].Field != "email" || got.Error.Errors[1].Field != "phone" {
		t.Fatalf("unexpected field errors %+v", got.Error.Errors)
	}
}

func TestCardWebhook(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{name: "acknowledged", path: "/webhooks/card", status: http.StatusOK},
		{name: "legacy alias", path: "/api/webhooks/stripe", status: http.StatusOK},
		{name: "bad signature", path: "/webhooks/card", err: paymentdomain.ErrInvalidSignature, status: http.StatusUnauthorized},
		{name: "bad payload", path: "/webhooks/stripe", err: paymentdomain.ErrInvalidPayload, status: http.StatusBadRequest},
		{name: "storage", path: "/webhooks/card", err: errors.New("db down"), status: http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.webhooks.err = tc.err

			resp := ts.do(http.MethodPost, tc.path, `{"id":"evt_1"}`, map[string]string{"Stripe-Signature": "t=1,v1=abc"})
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if ts.webhooks.method != "card" || string(ts.webhooks.payload) != `{"id":"evt_1"}` {
				t.Fatalf("unexpected reconcile call %q %q", ts.webhooks.method, ts.webhooks.payload)
			}
			if tc.err == nil && strings.TrimSpace(resp.Body.String()) != `{"received":true}` {
				t.Fatalf("unexpected body %s", resp.Body.String())
			}
		})
	}
}

func TestCryptoWebhook(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		err    error
		status int
		body   string
	}{
		{name: "acknowledged", path: "/webhooks/crypto", status: http.StatusOK, body: `{"result":0}`},
		{name: "legacy alias", path: "/api/webhooks/cryptomus", status: http.StatusOK, body: `{"result":0}`},
		{name: "bad signature", path: "/webhooks/crypto", err: paymentdomain.ErrInvalidSignature, status: http.StatusUnauthorized, body: `{"result":1}`},
		{name: "bad payload", path: "/webhooks/cryptomus", err: paymentdomain.ErrInvalidPayload, status: http.StatusBadRequest, body: `{"result":1}`},
		{name: "storage", path: "/webhooks/crypto", err: errors.New("db down"), status: http.StatusInternalServerError, body: `{"result":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.webhooks.err = tc.err

			resp := ts.do(http.MethodPost, tc.path, `{"uuid":"inv-1","status":"paid"}`, map[string]string{"sign": "abc"})
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.Code)
			}
			if strings.TrimSpace(resp.Body.String()) != tc.body {
				t.Fatalf("expected %s, got %s", tc.body, resp.Body.String())
			}
			if ts.webhooks.method != "crypto" {
				t.Fatalf("expected crypto method, got %q", ts.webhooks.method)
			}
		})
	}
}

func TestProducts(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(http.MethodGet, "/products", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var list struct {
		Products   []productResponse `json:"products"`
		Categories []string          `json:"categories"`
	}
	decode(t, resp, &list)
	if len(list.Products) == 0 || len(list.Categories) == 0 {
		t.Fatalf("expected products and categories, got %+v", list)
	}

	resp = ts.do(http.MethodGet, "/products/ai-email-assistant", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var product productResponse
	decode(t, resp, &product)
	if product.ID != "ai-email-assistant" || product.AmountCents <= 0 {
		t.Fatalf("unexpected product %+v", product)
	}

	if resp := ts.do(http.MethodGet, "/products/nope", "", nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestOrderStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	order := ts.createOrder(t)

	resp := ts.do(http.MethodGet, "/orders/"+order.ID.String()+"/status", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var got orderStatusResponse
	decode(t, resp, &got)
	if got.OrderID != order.ID.String() || got.Status != orderdomain.StatusPending {
		t.Fatalf("unexpected status %+v", got)
	}
	if strings.Contains(resp.Body.String(), "ada@example.com") {
		t.Fatalf("public status must not expose customer details")
	}

	for _, path := range []string{"/orders/999/status", "/orders/not-an-id/status"} {
		if resp := ts.do(http.MethodGet, path, "", nil); resp.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, resp.Code)
		}
	}
}

func TestAdminRoutesDisabledWithoutKey(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.do(http.MethodGet, "/admin/orders", "", map[string]string{"Authorization": "Bearer " + testAdminKey})
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestAdminRoutes(t *testing.T) {
	hash, err := adminkey.Hash(testAdminKey)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	verifier, err := adminkey.NewVerifier(hash)
	if err != nil {
		t.Fatalf("verifier: %v", err)
	}
	ts := newTestServer(t, verifier)
	auth := map[string]string{"Authorization": "Bearer " + testAdminKey}
	order := ts.createOrder(t)

	if resp := ts.do(http.MethodGet, "/admin/orders", "", nil); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.Code)
	}
	if resp := ts.do(http.MethodGet, "/admin/orders", "", map[string]string{"Authorization": "Bearer wrong"}); resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", resp.Code)
	}

	resp := ts.do(http.MethodGet, "/admin/orders?status=pending", "", auth)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var list orderdomain.ListResponse
	decode(t, resp, &list)
	if len(list.Orders) != 1 || list.Orders[0].ID != order.ID {
		t.Fatalf("unexpected orders %+v", list.Orders)
	}

	if resp := ts.do(http.MethodGet, "/admin/orders?status=bogus", "", auth); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.Code)
	}

	resp = ts.do(http.MethodGet, "/admin/orders/"+order.ID.String()+"/receipt", "", auth)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for pending receipt, got %d", resp.Code)
	}

	if _, err := ts.orders.Transition(context.Background(), orderdomain.TransitionRequest{
		OrderID: order.ID,
		To:      orderdomain.StatusCompleted,
		Reason:  "paid",
		Source:  "test",
	}); err != nil {
		t.Fatalf("transition: %v", err)
	}

	resp = ts.do(http.MethodGet, "/admin/orders/"+order.ID.String(), "", auth)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var detail orderDetailResponse
	decode(t, resp, &detail)
	if detail.Order.Status != orderdomain.StatusCompleted || len(detail.History) != 2 {
		t.Fatalf("unexpected detail %+v", detail)
	}

	resp = ts.do(http.MethodGet, "/admin/orders/"+order.ID.String()+"/receipt", "", auth)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for receipt, got %d: %s", resp.Code, resp.Body.String())
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("receipt is not a pdf")
	}

	resp = ts.do(http.MethodPost, "/admin/orders/expire-stale", `{"older_than":"1h","limit":10}`, auth)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp := ts.do(http.MethodPost, "/admin/orders/expire-stale", `{"older_than":"soon"}`, auth); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad duration, got %d", resp.Code)
	}

	if resp := ts.do(http.MethodGet, "/admin/bookings", "", auth); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for bookings, got %d", resp.Code)
	}
}

func TestSubmitContact(t *testing.T) {
	ts := newTestServer(t, nil)

	body := `{"firstName":"Grace","lastName":"Hopper","email":"grace@example.com","company":"Navy","message":"We need an <b>AI</b> assistant for email."}`
	resp := ts.do(http.MethodPost, "/contact", body, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var got struct {
		Success   bool   `json:"success"`
		Reference string `json:"reference"`
	}
	decode(t, resp, &got)
	if !got.Success || got.Reference == "" {
		t.Fatalf("unexpected response %s", resp.Body.String())
	}

	resp = ts.do(http.MethodPost, "/api/contact", `{"firstName":"G","lastName":"Hopper","email":"nope","message":"short"}`, nil)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var verr errorResponse
	decode(t, resp, &verr)
	fields := map[string]bool{}
	for _, e := range verr.Error.Errors {
		fields[e.Field] = true
	}
	for _, f := range []string{"firstName", "email", "message"} {
		if !fields[f] {
			t.Fatalf("expected error for %s, got %+v", f, verr.Error.Errors)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.do(http.MethodGet, "/nope", "", nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}
