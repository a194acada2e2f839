package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/petaldesk/florist-backoffice/internal/customer"
)

// CustomersHandler exposes the derived customer aggregate for the admin
// console.
type CustomersHandler struct {
	Store *customer.Store
	Log   *zap.Logger
}

func (h *CustomersHandler) Register(r *chi.Mux) {
	r.Get("/customers/{id}", h.getCustomer)
}

func (h *CustomersHandler) getCustomer(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Store.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
