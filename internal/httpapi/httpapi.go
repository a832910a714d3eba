package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bengkelpos/backend/internal/domain"
	"bengkelpos/backend/internal/metrics"
	"bengkelpos/backend/internal/report"
	"bengkelpos/backend/internal/service"
	"bengkelpos/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("/api/v1/auth/kasir", a.requireAuth(a.handleKasirs, "admin"))

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts, "kasir", "admin"))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions, "kasir", "admin"))
	mux.HandleFunc("/api/v1/services", a.requireAuth(a.handleServices, "kasir", "admin"))
	mux.HandleFunc("/api/v1/services/", a.requireAuth(a.handleServiceActions, "kasir", "admin"))
	mux.HandleFunc("/api/v1/members", a.requireAuth(a.handleMembers, "kasir", "admin"))
	mux.HandleFunc("/api/v1/members/", a.requireAuth(a.handleMemberActions, "kasir", "admin"))

	mux.HandleFunc("/api/v1/checkout/quote", a.requireAuth(a.handleQuote, "kasir", "admin"))
	mux.HandleFunc("/api/v1/checkout", a.requireAuth(a.handleCheckout, "kasir", "admin"))
	mux.HandleFunc("/api/v1/transactions", a.requireAuth(a.handleTransactions, "kasir", "admin"))
	mux.HandleFunc("/api/v1/transactions/", a.requireAuth(a.handleTransactionActions, "kasir", "admin"))

	mux.HandleFunc("/api/v1/queues", a.requireAuth(a.handleQueues, "kasir", "admin"))
	mux.HandleFunc("/api/v1/queues/", a.requireAuth(a.handleQueueActions, "kasir", "admin"))

	mux.HandleFunc("/api/v1/stock/in", a.requireAuth(a.handleStockIn, "admin"))
	mux.HandleFunc("/api/v1/stock/adjustment", a.requireAuth(a.handleStockAdjustment, "admin"))
	mux.HandleFunc("/api/v1/stock/movements", a.requireAuth(a.handleStockMovements, "kasir", "admin"))
	mux.HandleFunc("/api/v1/stock/low", a.requireAuth(a.handleLowStock, "kasir", "admin"))
	mux.HandleFunc("/api/v1/stock/reconcile", a.requireAuth(a.handleStockReconcile, "admin"))

	mux.HandleFunc("/api/v1/loyalty/reward", a.requireAuth(a.handleLoyaltyReward, "kasir", "admin"))
	mux.HandleFunc("/api/v1/settings/", a.requireAuth(a.handleSettings, "kasir", "admin"))
	mux.HandleFunc("/api/v1/reminders", a.requireAuth(a.handleReminders, "kasir", "admin"))
	mux.HandleFunc("/api/v1/reminders/", a.requireAuth(a.handleReminderActions, "kasir", "admin"))

	mux.HandleFunc("/api/v1/reports/sales", a.requireAuth(a.handleSalesReport, "admin"))
	mux.HandleFunc("/api/v1/reports/top-items", a.requireAuth(a.handleTopItemsReport, "admin"))
	mux.HandleFunc("/api/v1/reports/stock-movements", a.requireAuth(a.handleMovementReport, "admin"))
	mux.HandleFunc("/api/v1/reports/members", a.requireAuth(a.handleMemberReport, "admin"))
	mux.HandleFunc("/api/v1/reports/commissions", a.requireAuth(a.handleCommissionReport, "admin"))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// statusFor maps repository sentinels to HTTP status codes. Permission
// failures surface as plain errors from the service, hence the string check.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrDuplicatePhone),
		errors.Is(err, store.ErrMilestoneClaimed),
		errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrInsufficientPoints):
		return http.StatusUnprocessableEntity
	}
	if strings.Contains(strings.ToLower(err.Error()), "admin role required") {
		return http.StatusForbidden
	}
	return http.StatusUnprocessableEntity
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation. Login is
// excluded because it is called without a prior CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	method := r.Method
	if method != http.MethodPost && method != http.MethodPut && method != http.MethodPatch && method != http.MethodDelete {
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleKasirs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		kasirs := a.auth.ListKasirs()
		writeJSON(w, http.StatusOK, map[string]any{"kasirs": kasirs})
	case http.MethodPost:
		var req domain.KasirCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		kasir, err := a.auth.CreateKasir(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"kasir": kasir})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		products, err := a.service.ListProducts(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"products": products})
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		product, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"product": product})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/v1/products/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), id)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPatch:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		updated, err := a.service.UpdateProduct(r.Context(), id, req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": updated})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleServices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		services, err := a.service.ListServices(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"services": services})
	case http.MethodPost:
		var req domain.ServiceCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		svc, err := a.service.CreateService(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"service": svc})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleServiceActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/services/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("service id required"))
		return
	}

	if id, ok := strings.CutSuffix(tail, "/tiers"); ok {
		a.handleServiceTiers(w, r, strings.Trim(id, "/"))
		return
	}
	if id, ok := strings.CutSuffix(tail, "/price"); ok {
		a.handleServicePrice(w, r, strings.Trim(id, "/"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		svc, tiers, err := a.service.GetService(r.Context(), tail)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"service": svc, "tiers": tiers})
	case http.MethodPatch:
		var req domain.ServiceUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		updated, err := a.service.UpdateService(r.Context(), tail, req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"service": updated})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleServiceTiers(w http.ResponseWriter, r *http.Request, serviceID string) {
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, errors.New("service id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		tiers, err := a.service.ListServiceTiers(r.Context(), serviceID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
	case http.MethodPut:
		var req struct {
			Tiers []domain.ServicePrice `json:"tiers"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := a.service.ReplaceServiceTiers(r.Context(), serviceID, req.Tiers); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		tiers, err := a.service.ListServiceTiers(r.Context(), serviceID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleServicePrice(w http.ResponseWriter, r *http.Request, serviceID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if serviceID == "" {
		writeError(w, http.StatusBadRequest, errors.New("service id required"))
		return
	}

	vehicleType := r.URL.Query().Get("vehicle_type")
	vehicleSize := r.URL.Query().Get("vehicle_size")
	price, err := a.service.ResolveServicePrice(r.Context(), serviceID, vehicleType, vehicleSize)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service_id":   serviceID,
		"vehicle_type": vehicleType,
		"vehicle_size": vehicleSize,
		"price":        price,
	})
}

func (a *API) handleMembers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if phone := strings.TrimSpace(r.URL.Query().Get("phone")); phone != "" {
			member, err := a.service.FindMemberByPhone(r.Context(), phone)
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"member": member})
			return
		}

		members, err := a.service.ListMembers(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": members})
	case http.MethodPost:
		var req domain.MemberCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		member, err := a.service.CreateMember(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"member": member})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleMemberActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/members/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("member id required"))
		return
	}

	if id, ok := strings.CutSuffix(tail, "/loyalty/claims"); ok {
		a.handleLoyaltyClaims(w, r, strings.Trim(id, "/"))
		return
	}
	if id, ok := strings.CutSuffix(tail, "/loyalty"); ok {
		a.handleLoyaltyStatus(w, r, strings.Trim(id, "/"))
		return
	}
	if id, ok := strings.CutSuffix(tail, "/card"); ok {
		a.handleMemberCard(w, r, strings.Trim(id, "/"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		member, err := a.service.GetMember(r.Context(), tail)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"member": member})
	case http.MethodPatch:
		var req domain.MemberUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		updated, err := a.service.UpdateMember(r.Context(), tail, req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"member": updated})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleLoyaltyStatus(w http.ResponseWriter, r *http.Request, memberID string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if memberID == "" {
		writeError(w, http.StatusBadRequest, errors.New("member id required"))
		return
	}

	status, err := a.service.LoyaltyStatus(r.Context(), memberID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleLoyaltyClaims(w http.ResponseWriter, r *http.Request, memberID string) {
	if memberID == "" {
		writeError(w, http.StatusBadRequest, errors.New("member id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		claims, err := a.service.ListLoyaltyClaims(r.Context(), memberID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"claims": claims})
	case http.MethodPost:
		claim, err := a.service.ClaimReward(r.Context(), memberID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"claim": claim})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.QuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	quote, err := a.service.Quote(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := a.service.Checkout(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.CheckoutResponse{Transaction: tx})
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	limit := parsePositiveLimit(q.Get("limit"), 100, 500)
	txs, err := a.service.ListTransactions(r.Context(), q.Get("period"), q.Get("from"), q.Get("to"), q.Get("type"), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txs})
}

func (a *API) handleTransactionActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/transactions/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	if id, ok := strings.CutSuffix(tail, "/payments"); ok {
		a.handleTransactionPayments(w, r, strings.Trim(id, "/"))
		return
	}
	if id, ok := strings.CutSuffix(tail, "/receipt"); ok {
		a.handleReceipt(w, r, strings.Trim(id, "/"))
		return
	}
	if id, ok := strings.CutSuffix(tail, "/kwitansi"); ok {
		a.handleKwitansi(w, r, strings.Trim(id, "/"))
		return
	}

	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	tx, err := a.service.GetTransaction(r.Context(), tail)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (a *API) handleTransactionPayments(w http.ResponseWriter, r *http.Request, transactionID string) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if transactionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	var req domain.PaymentCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tx, err := a.service.AddPayment(r.Context(), transactionID, req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction": tx})
}

func (a *API) handleQueues(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		day := time.Now()
		if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, errors.New("invalid date, want YYYY-MM-DD"))
				return
			}
			day = parsed
		}

		queues, err := a.service.ListQueues(r.Context(), day)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"queues": queues})
	case http.MethodPost:
		var req domain.QueueCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		queue, err := a.service.CreateQueue(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"queue": queue})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleQueueActions(w http.ResponseWriter, r *http.Request) {
	tail := pathTail(r.URL.Path, "/api/v1/queues/")
	if tail == "" {
		writeError(w, http.StatusBadRequest, errors.New("queue id required"))
		return
	}

	if id, ok := strings.CutSuffix(tail, "/ticket"); ok {
		a.handleQueueTicket(w, r, strings.Trim(id, "/"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		queue, err := a.service.GetQueue(r.Context(), tail)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"queue": queue})
	case http.MethodPatch:
		var req struct {
			Status string `json:"status"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		queue, err := a.service.UpdateQueueStatus(r.Context(), tail, req.Status)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"queue": queue})
	case http.MethodDelete:
		if err := a.service.DeleteQueue(r.Context(), tail); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleStockIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.StockInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	movement, err := a.service.StockIn(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
}

func (a *API) handleStockAdjustment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.StockAdjustmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	movement, err := a.service.StockAdjust(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"movement": movement})
}

func (a *API) handleStockMovements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	var from, to time.Time
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid from date, want YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid to date, want YYYY-MM-DD"))
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	limit := parsePositiveLimit(q.Get("limit"), 100, 500)
	movements, err := a.service.ListStockMovements(r.Context(), q.Get("product_id"), from, to, limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (a *API) handleLowStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	products, err := a.service.LowStockProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleStockReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	drifts, err := a.service.ReconcileStock(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drifts": drifts})
}

func (a *API) handleLoyaltyReward(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		reward, err := a.service.GetLoyaltyReward(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reward": reward})
	case http.MethodPut:
		var req domain.LoyaltyReward
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		if err := a.service.PutLoyaltyReward(r.Context(), req); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reward": req})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleSettings(w http.ResponseWriter, r *http.Request) {
	key := pathTail(r.URL.Path, "/api/v1/settings/")
	if key == "" {
		writeError(w, http.StatusBadRequest, errors.New("setting key required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		setting, err := a.service.GetSetting(r.Context(), key)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, setting)
	case http.MethodPut:
		var value json.RawMessage
		if err := decodeJSON(r, &value); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		setting, err := a.service.PutSetting(r.Context(), key, value)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, setting)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReminders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)
		reminders, err := a.service.ListReminders(r.Context(), r.URL.Query().Get("status"), limit)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reminders": reminders})
	case http.MethodPost:
		var req domain.ReminderCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		reminder, err := a.service.CreateReminder(r.Context(), req)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"reminder": reminder})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReminderActions(w http.ResponseWriter, r *http.Request) {
	id := pathTail(r.URL.Path, "/api/v1/reminders/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("reminder id required"))
		return
	}
	if r.Method != http.MethodPatch {
		writeMethodNotAllowed(w)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	reminder, err := a.service.UpdateReminderStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminder": reminder})
}

func (a *API) handleSalesReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	format := strings.ToLower(strings.TrimSpace(q.Get("format")))

	summary, err := a.service.SalesReport(r.Context(), q.Get("period"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"laporan-penjualan-%s.csv\"", summary.Period.Name))
		_, _ = w.Write([]byte(salesSummaryToCSV(summary)))
	case "xlsx":
		data, err := report.SalesXLSX(summary)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeXLSX(w, fmt.Sprintf("laporan-penjualan-%s.xlsx", summary.Period.Name), data)
	case "pdf":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(salesSummaryToPrintableHTML(summary)))
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func (a *API) handleTopItemsReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	limit := parsePositiveLimit(q.Get("limit"), 10, 100)
	period, items, err := a.service.TopItemsReport(r.Context(), q.Get("period"), q.Get("from"), q.Get("to"), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(q.Get("format")), "xlsx") {
		data, err := report.TopItemsXLSX(items)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeXLSX(w, fmt.Sprintf("barang-terlaris-%s.xlsx", period.Name), data)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"period": period, "items": items})
}

func (a *API) handleMovementReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	summary, err := a.service.StockMovementReport(r.Context(), q.Get("period"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(q.Get("format")), "xlsx") {
		data, err := report.MovementsXLSX(summary)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeXLSX(w, fmt.Sprintf("mutasi-stok-%s.xlsx", summary.Period.Name), data)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleMemberReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	limit := parsePositiveLimit(q.Get("limit"), 10, 100)
	summary, err := a.service.MemberReport(r.Context(), q.Get("period"), q.Get("from"), q.Get("to"), limit)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleCommissionReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	summary, err := a.service.CommissionReport(r.Context(), q.Get("period"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleQueueTicket(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("queue id required"))
		return
	}

	queue, err := a.service.GetQueue(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	profile := a.service.StoreProfile(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(queueTicketToPrintableHTML(profile, queue)))
}

func (a *API) handleReceipt(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	tx, err := a.service.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	profile := a.service.StoreProfile(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(receiptToPrintableHTML(profile, tx)))
}

func (a *API) handleKwitansi(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("transaction id required"))
		return
	}

	tx, err := a.service.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	profile := a.service.StoreProfile(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(kwitansiToPrintableHTML(profile, tx)))
}

func (a *API) handleMemberCard(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("member id required"))
		return
	}

	member, err := a.service.GetMember(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	profile := a.service.StoreProfile(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(memberCardToPrintableHTML(profile, member)))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Observe(time.Since(startedAt).Seconds())
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(startedAt))
	})
}

func writeXLSX(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(data)
}

func pathTail(path, prefix string) string {
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.Trim(strings.TrimPrefix(path, prefix), "/"))
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
