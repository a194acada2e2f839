package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/petaldesk/florist-backoffice/internal/coupon"
	"github.com/petaldesk/florist-backoffice/internal/postgres"
)

// CouponsHandler exposes standalone coupon validation for cart previews; the
// same engine runs inside order creation.
type CouponsHandler struct {
	Engine *coupon.Engine
	DB     postgres.DBTX
	Log    *zap.Logger
}

type validateCouponReq struct {
	Code       string          `json:"code"`
	OrderTotal decimal.Decimal `json:"orderTotal"`
}

type validateCouponResp struct {
	IsValid        bool            `json:"isValid"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
}

func (h *CouponsHandler) Register(r *chi.Mux) {
	r.Post("/coupons/validate", h.validate)
}

func (h *CouponsHandler) validate(w http.ResponseWriter, r *http.Request) {
	var req validateCouponReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	val, err := h.Engine.Validate(ctx, h.DB, req.Code, req.OrderTotal)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, validateCouponResp{
		IsValid:        val.Valid,
		DiscountAmount: val.Discount,
		ErrorMessage:   val.Reason,
	})
}
