package handlers

import (
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/neliaxa/backend/internal/http/respond"
	"github.com/neliaxa/backend/internal/models"
	"github.com/neliaxa/backend/internal/storage"
)

// CatalogHandler serves the public marketing surface: the investment catalog,
// platform metrics, and the ROI calculator.
type CatalogHandler struct {
	catalog storage.CatalogStore
	log     *zap.Logger
}

// NewCatalogHandler constructs the handler.
func NewCatalogHandler(catalog storage.CatalogStore, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, log: log}
}

// Register attaches the public routes to the mux.
func (h *CatalogHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/investments", h.handleInvestments)
	mux.HandleFunc("GET /api/metrics", h.handleMetrics)
	mux.HandleFunc("GET /api/roi", h.handleROI)
}

func (h *CatalogHandler) handleInvestments(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListInvestments(r.Context())
	if err != nil {
		h.log.Error("list investments", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if items == nil {
		items = []models.Investment{}
	}
	respond.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CatalogHandler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.catalog.Metrics(r.Context())
	if err != nil {
		h.log.Error("metrics", zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "internal_error")
		return
	}
	respond.JSON(w, http.StatusOK, metrics)
}

func (h *CatalogHandler) handleROI(w http.ResponseWriter, r *http.Request) {
	amount, errA := strconv.ParseFloat(r.URL.Query().Get("amount"), 64)
	months, errM := strconv.ParseFloat(r.URL.Query().Get("months"), 64)
	rate, errR := strconv.ParseFloat(r.URL.Query().Get("rate"), 64)

	switch {
	case errA != nil || amount <= 0 || math.IsInf(amount, 0):
		respond.Error(w, http.StatusBadRequest, "invalid_amount")
	case errM != nil || months <= 0 || math.IsInf(months, 0):
		respond.Error(w, http.StatusBadRequest, "invalid_months")
	case errR != nil || rate < 0 || rate > 1:
		respond.Error(w, http.StatusBadRequest, "invalid_rate")
	default:
		roi := amount * rate * months / 12
		respond.JSON(w, http.StatusOK, map[string]any{
			"amount": amount,
			"months": months,
			"rate":   rate,
			"roi":    math.Round(roi),
			"total":  math.Round(amount + roi),
		})
	}
}
