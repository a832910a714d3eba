package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bengkelpos/backend/internal/domain"
	"bengkelpos/backend/internal/service"
	"bengkelpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded(time.UTC)
	svc := service.New(repo, nil, time.Minute, time.UTC)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*")
}

func loginAs(t *testing.T, handler http.Handler, username, password string) string {
	t.Helper()

	payload, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	var resp domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func csrfToken(t *testing.T, handler http.Handler) string {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("csrf token fetch failed: %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode csrf response: %v", err)
	}
	return body["csrf_token"]
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleLogin_RateLimit(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	// The loginLimiter allows 5 attempts per minute.
	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "badpass",
	})

	var lastCode int
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		lastCode = rec.Code
	}

	if lastCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after 6 attempts, got %d", lastCode)
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleCheckout_FullFlow(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	payload, _ := json.Marshal(domain.CheckoutRequest{
		Type:          domain.TxTypeBengkel,
		MemberID:      "mbr-andi",
		PaymentMethod: "cash",
		PaymentAmount: 120000,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-oli-mesin", Qty: 2},
			{Kind: domain.ItemKindService, ID: "svc-cuci", Qty: 1},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	tx := resp.Transaction
	if tx.Subtotal != 115000 {
		t.Fatalf("expected subtotal 115000, got %d", tx.Subtotal)
	}
	if tx.PaymentStatus != domain.PaymentStatusPaid {
		t.Fatalf("expected paid, got %s", tx.PaymentStatus)
	}

	// The struk endpoint renders the stored transaction.
	receiptReq := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+tx.ID+"/receipt", nil)
	receiptReq.Header.Set("Authorization", "Bearer "+token)
	receiptRec := httptest.NewRecorder()
	handler.ServeHTTP(receiptRec, receiptReq)

	if receiptRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for receipt, got %d", receiptRec.Code)
	}
	if !bytes.Contains(receiptRec.Body.Bytes(), []byte(tx.InvoiceNumber)) {
		t.Fatalf("expected receipt to contain invoice number %s", tx.InvoiceNumber)
	}
}

func TestHandleCheckout_MissingCSRF(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "kasir", "kasir123")

	payload, _ := json.Marshal(domain.CheckoutRequest{
		Type:          domain.TxTypeKafe,
		PaymentMethod: "cash",
		PaymentAmount: 12500,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-kopi-susu", Qty: 1},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without CSRF token, got %d", rec.Code)
	}
}

func TestHandleReports_RequireAdminRole(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "kasir", "kasir123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales?period=today", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for kasir on reports, got %d", rec.Code)
	}
}

func TestHandleSalesReport_XLSXExport(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/sales?period=today&format=xlsx", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %s", got)
	}
	// xlsx files are zip archives.
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected zip magic in xlsx payload")
	}
}

func TestHandleStockIn_KasirForbidden(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	payload, _ := json.Marshal(domain.StockInRequest{ProductID: "prd-busi", Qty: 5})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stock/in", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for kasir stock-in, got %d", rec.Code)
	}
}

func TestHandleQueues_CreateAndTicket(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	payload, _ := json.Marshal(domain.QueueCreateRequest{MemberID: "mbr-andi"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/queues", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Queue domain.Queue `json:"queue"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Queue.TicketNumber != "Q001" {
		t.Fatalf("expected Q001, got %s", body.Queue.TicketNumber)
	}

	ticketReq := httptest.NewRequest(http.MethodGet, "/api/v1/queues/"+body.Queue.ID+"/ticket", nil)
	ticketReq.Header.Set("Authorization", "Bearer "+token)
	ticketRec := httptest.NewRecorder()
	handler.ServeHTTP(ticketRec, ticketReq)

	if ticketRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for ticket, got %d", ticketRec.Code)
	}
	if !bytes.Contains(ticketRec.Body.Bytes(), []byte("Q001")) {
		t.Fatalf("expected ticket to contain Q001")
	}
}

func TestHandleServicePrice_Resolution(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "kasir", "kasir123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/services/svc-cuci/price?vehicle_type=R4&vehicle_size=Sedang", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["price"] != float64(35000) {
		t.Fatalf("expected price 35000, got %v", body["price"])
	}
}

func TestHandleQuote_Endpoint(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	payload, _ := json.Marshal(domain.QuoteRequest{
		MemberID: "mbr-sari",
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindService, ID: "svc-cuci", Qty: 1},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/quote", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var quote domain.QuoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	// mbr-sari drives an R4/Sedang, so the wash resolves to its tier price.
	if quote.Subtotal != 35000 {
		t.Fatalf("expected subtotal 35000, got %d", quote.Subtotal)
	}
}

func TestHandleStockReconcile_GetOnly(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "admin", "admin123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stock/reconcile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	csrf := csrfToken(t, handler)
	post := httptest.NewRequest(http.MethodPost, "/api/v1/stock/reconcile", nil)
	post.Header.Set("Authorization", "Bearer "+token)
	post.Header.Set("X-CSRF-Token", csrf)
	postRec := httptest.NewRecorder()
	handler.ServeHTTP(postRec, post)

	if postRec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", postRec.Code)
	}
}

func TestHandleKwitansi_TerminTransaction(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "kasir", "kasir123")
	csrf := csrfToken(t, handler)

	payload, _ := json.Marshal(domain.CheckoutRequest{
		Type:          domain.TxTypeBengkel,
		PaymentMethod: "cash",
		PaymentAmount: 40000,
		Items: []domain.CheckoutItem{
			{Kind: domain.ItemKindProduct, ID: "prd-oli-mesin", Qty: 2},
		},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var resp domain.CheckoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Transaction.PaymentStatus != domain.PaymentStatusTermin {
		t.Fatalf("expected termin, got %s", resp.Transaction.PaymentStatus)
	}

	kwReq := httptest.NewRequest(http.MethodGet, "/api/v1/transactions/"+resp.Transaction.ID+"/kwitansi", nil)
	kwReq.Header.Set("Authorization", "Bearer "+token)
	kwRec := httptest.NewRecorder()
	handler.ServeHTTP(kwRec, kwReq)

	if kwRec.Code != http.StatusOK {
		t.Fatalf("expected 200 for kwitansi, got %d", kwRec.Code)
	}
	body := kwRec.Body.Bytes()
	if !bytes.Contains(body, []byte(resp.Transaction.InvoiceNumber)) {
		t.Fatalf("expected kwitansi to contain invoice %s", resp.Transaction.InvoiceNumber)
	}
	if !bytes.Contains(body, []byte("BELUM LUNAS")) {
		t.Fatalf("expected outstanding kwitansi to read BELUM LUNAS")
	}
	if !bytes.Contains(body, []byte("Pembayaran awal")) {
		t.Fatalf("expected kwitansi to list the initial installment")
	}
}

func TestHandleMemberCard(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "kasir", "kasir123")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/members/mbr-andi/card", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := rec.Body.Bytes()
	if !bytes.Contains(body, []byte("MBR-0001")) {
		t.Fatalf("expected card to contain member code MBR-0001")
	}
	if !bytes.Contains(body, []byte("Andi Wijaya")) {
		t.Fatalf("expected card to contain member name")
	}
}
