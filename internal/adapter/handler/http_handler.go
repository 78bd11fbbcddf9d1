package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quangtdn/storeledger/internal/core/service"
	"github.com/quangtdn/storeledger/internal/gateway"
	"github.com/quangtdn/storeledger/internal/logging"
	"github.com/quangtdn/storeledger/internal/port"
)

type HTTPHandler struct {
	ledger   *service.Ledger
	transfer *service.TransferCoordinator
	query    *service.QueryService
	hub      *gateway.Hub
	validate *validator.Validate
}

func NewHTTPHandler(ledger *service.Ledger, transfer *service.TransferCoordinator, query *service.QueryService, hub *gateway.Hub) *HTTPHandler {
	return &HTTPHandler{
		ledger:   ledger,
		transfer: transfer,
		query:    query,
		hub:      hub,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Router assembles the full HTTP surface.
func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/stock/in", h.StockIn)
		r.Post("/stock/out", h.StockOut)
		r.Post("/stock/adjust", h.Adjust)
		r.Post("/stock/transfer", h.Transfer)

		r.Get("/inventory", h.ListInventory)
		r.Get("/inventory/store/{storeID}", h.ListInventoryByStore)
		r.Get("/inventory/low-stock", h.ListLowStock)
		r.Get("/inventory/movements", h.ListMovements)
	})

	if h.hub != nil {
		r.Get("/ws", h.hub.ServeWS)
	}
	r.Get("/health", h.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type MutationRequest struct {
	StoreID     string `json:"store_id" validate:"required"`
	ProductID   string `json:"product_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	ReferenceID string `json:"reference_id"`
	Notes       string `json:"notes"`
}

type AdjustRequest struct {
	StoreID   string `json:"store_id" validate:"required"`
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	Notes     string `json:"notes"`
}

type TransferRequest struct {
	FromStoreID string `json:"from_store_id" validate:"required"`
	ToStoreID   string `json:"to_store_id" validate:"required"`
	ProductID   string `json:"product_id" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	Notes       string `json:"notes"`
}

type MutationResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	StoreID   string `json:"store_id,omitempty"`
	ProductID string `json:"product_id,omitempty"`
	Quantity  int    `json:"quantity"`
}

type TransferResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	FromQuantity  int    `json:"from_quantity"`
	ToQuantity    int    `json:"to_quantity"`
}

func (h *HTTPHandler) StockIn(w http.ResponseWriter, r *http.Request) {
	var req MutationRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.ledger.StockIn(r.Context(), req.StoreID, req.ProductID, req.Quantity, req.ReferenceID, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{
		Success:   true,
		StoreID:   rec.StoreID,
		ProductID: rec.ProductID,
		Quantity:  rec.Quantity,
	})
}

func (h *HTTPHandler) StockOut(w http.ResponseWriter, r *http.Request) {
	var req MutationRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.ledger.StockOut(r.Context(), req.StoreID, req.ProductID, req.Quantity, req.ReferenceID, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{
		Success:   true,
		StoreID:   rec.StoreID,
		ProductID: rec.ProductID,
		Quantity:  rec.Quantity,
	})
}

func (h *HTTPHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.ledger.Adjust(r.Context(), req.StoreID, req.ProductID, req.Quantity, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MutationResponse{
		Success:   true,
		StoreID:   rec.StoreID,
		ProductID: rec.ProductID,
		Quantity:  rec.Quantity,
	})
}

func (h *HTTPHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.transfer.Transfer(r.Context(), req.FromStoreID, req.ToStoreID, req.ProductID, req.Quantity, req.Notes)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TransferResponse{
		Success:       true,
		CorrelationID: res.CorrelationID,
		FromQuantity:  res.From.Quantity,
		ToQuantity:    res.To.Quantity,
	})
}

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	views, err := h.query.ListAll(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) ListInventoryByStore(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	views, err := h.query.ListByStore(r.Context(), storeID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.ledger.LowStockThreshold()
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.badRequest(w, "threshold must be an integer")
			return
		}
		threshold = v
	}
	views, err := h.query.ListLowStock(r.Context(), threshold)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			h.badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = v
	}
	entries, err := h.query.ListMovements(r.Context(), r.URL.Query().Get("store_id"), r.URL.Query().Get("product_id"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// maxBodyBytes caps mutation request bodies, matching the websocket
// read limit.
const maxBodyBytes = 4 * 1024

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.badRequest(w, "invalid request body")
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return "invalid field " + f.Field() + ": failed " + f.Tag() + " check"
	}
	return "invalid request"
}

func (h *HTTPHandler) badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, MutationResponse{Success: false, Message: message})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, service.ErrInvalidTransfer):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, service.ErrInsufficientStock):
		status = http.StatusConflict
		message = "insufficient stock"
	case errors.Is(err, port.ErrNotFound):
		status = http.StatusNotFound
		message = "not found"
	case errors.Is(err, service.ErrTransientFailure):
		status = http.StatusServiceUnavailable
		message = "temporarily unavailable, retry later"
	case errors.Is(err, service.ErrCompensationFailed):
		status = http.StatusInternalServerError
		message = "transfer reversal failed, manual reconciliation required"
	case errors.Is(err, service.ErrTransferFailed):
		status = http.StatusConflict
		message = "transfer failed and was reversed"
	default:
		logging.Error().Err(err).Msg("unhandled request error")
	}

	writeJSON(w, status, MutationResponse{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
