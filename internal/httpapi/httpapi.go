package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cabangpos/backend/internal/branch"
	"cabangpos/backend/internal/branchdb"
	"cabangpos/backend/internal/domain"
	"cabangpos/backend/internal/sales"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type API struct {
	engine        *sales.Engine
	router        *branchdb.Router
	provider      branch.Provider
	allowedOrigin string
	log           *zap.Logger
}

func New(engine *sales.Engine, router *branchdb.Router, provider branch.Provider, allowedOrigin string) *API {
	return &API{
		engine:        engine,
		router:        router,
		provider:      provider,
		allowedOrigin: allowedOrigin,
		log:           zap.L().Named("httpapi"),
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.cors)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/branches/{branchID}", func(r chi.Router) {
		r.Post("/sales", a.handleCreateSale)
		r.Get("/sales", a.handleListSales)
		r.Get("/sales/stats", a.handleSalesStats)
		r.Get("/sales/{saleID}", a.handleGetSale)
		r.Post("/sales/{saleID}/void", a.handleVoidSale)
		r.Post("/connection/invalidate", a.handleInvalidateConnection)
	})

	return r
}

func (a *API) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")

	var req domain.CreateSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := a.engine.Create(r.Context(), branchID, req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")
	saleID := chi.URLParam(r, "saleID")

	sale, err := a.engine.Get(r.Context(), branchID, saleID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sale)
}

func (a *API) handleVoidSale(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")
	saleID := chi.URLParam(r, "saleID")

	var req domain.VoidSaleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := a.engine.Void(r.Context(), branchID, saleID, req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")
	q := r.URL.Query()

	filter := domain.ListSalesFilter{
		CustomerID:    q.Get("customer_id"),
		CashierID:     q.Get("cashier_id"),
		InvoiceType:   q.Get("invoice_type"),
		PaymentMethod: q.Get("payment_method"),
		Search:        strings.TrimSpace(q.Get("q")),
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.From = &ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		filter.To = &ts
	}
	if raw := q.Get("voided"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("voided must be true or false"))
			return
		}
		filter.Voided = &v
	}

	page := domain.Pagination{
		Page:     parsePositiveInt(q.Get("page"), 1),
		PageSize: parsePositiveInt(q.Get("page_size"), 0),
	}

	res, err := a.engine.List(r.Context(), branchID, filter, page)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleSalesStats(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")
	q := r.URL.Query()

	now := time.Now().UTC()
	from := now.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)
	if raw := q.Get("from"); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		from = ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		to = ts
	}

	stats, err := a.engine.Stats(r.Context(), branchID, from, to)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleInvalidateConnection(w http.ResponseWriter, r *http.Request) {
	branchID := chi.URLParam(r, "branchID")
	if _, err := a.provider.GetConfig(r.Context(), branchID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	a.router.Invalidate(branchID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated", "branch_id": branchID})
}

// statusFor maps the error taxonomy onto HTTP statuses. Unclassified
// errors stay 500.
func statusFor(err error) int {
	var (
		ve   *domain.ValidationError
		nf   *domain.NotFoundError
		conf *domain.ConflictError
		conn *domain.ConnectionError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &conf):
		return http.StatusConflict
	case errors.As(err, &conn):
		if conn.Kind == domain.ConnTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseTimeParam(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, errors.New("time must be RFC3339 or YYYY-MM-DD")
	}
	return ts.UTC(), nil
}

func parsePositiveInt(raw string, fallback int) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return fallback
	}
	if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
		return parsed
	}
	return fallback
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic so driver errors and DSNs never leak
	msg := err.Error()
	if status >= 500 {
		zap.L().Error("request failed", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
		var connErr *domain.ConnectionError
		if errors.As(err, &connErr) {
			msg = "branch connection " + string(connErr.Kind)
		}
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
