package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/takagor/wallet-backend/internal/middleware"
	"github.com/takagor/wallet-backend/internal/services"
)

type PlanHandler struct {
	plans *services.PlanService
	log   *logrus.Logger
}

func NewPlanHandler(plans *services.PlanService, log *logrus.Logger) *PlanHandler {
	return &PlanHandler{
		plans: plans,
		log:   log,
	}
}

func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": h.plans.Plans()})
}

func (h *PlanHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	planID := chi.URLParam(r, "planID")
	sub, newBalance, err := h.plans.Purchase(r.Context(), accountID, planID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"subscription": sub,
		"balance":      newBalance,
	})
}
