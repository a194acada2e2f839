package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/petaldesk/florist-backoffice/internal/catalog"
	"github.com/petaldesk/florist-backoffice/internal/orders"
	"github.com/petaldesk/florist-backoffice/internal/stock"
)

// StockHandler is the admin surface of the ledger: manual restock and
// adjustment movements, movement history and low-stock alerts.
type StockHandler struct {
	Ledger  *stock.Ledger
	Catalog *catalog.Repo
	Service *orders.Service // publishes movement events for manual changes
	Log     *zap.Logger

	DefaultThreshold int
}

type createMovementReq struct {
	ProductID   string  `json:"productId"`
	VariationID *string `json:"variationId,omitempty"`
	Kind        string  `json:"kind"`
	Quantity    int     `json:"quantity"`
	Reason      string  `json:"reason"`
	UserID      *string `json:"userId,omitempty"`
}

func (h *StockHandler) Register(r *chi.Mux) {
	r.Post("/stock/movements", h.createMovement)
	r.Get("/stock/movements", h.listMovements)
	r.Get("/stock/alerts", h.lowStock)
	r.Get("/products", h.listProducts)
}

func (h *StockHandler) createMovement(w http.ResponseWriter, r *http.Request) {
	var req createMovementReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	m, err := h.Ledger.ApplyStandalone(ctx, stock.ApplyInput{
		ProductID:   req.ProductID,
		VariationID: req.VariationID,
		Kind:        stock.Kind(req.Kind),
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		UserID:      req.UserID,
	})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Service.PublishMovements([]stock.Movement{m})
	writeJSON(w, http.StatusCreated, m)
}

func (h *StockHandler) listMovements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	ms, err := h.Ledger.Movements(ctx, r.URL.Query().Get("productId"), limit)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}

func (h *StockHandler) lowStock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	threshold := h.DefaultThreshold
	if s := r.URL.Query().Get("threshold"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid threshold"})
			return
		}
		threshold = n
	}

	items, err := h.Ledger.LowStock(ctx, threshold)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *StockHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}
