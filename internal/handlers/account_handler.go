package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/takagor/wallet-backend/internal/middleware"
	"github.com/takagor/wallet-backend/internal/services"
)

type AccountHandler struct {
	registration *services.RegistrationService
	accounts     *services.AccountStore
	referrals    *services.ReferralService
	validate     *validator.Validate
	log          *logrus.Logger
}

func NewAccountHandler(registration *services.RegistrationService, accounts *services.AccountStore, referrals *services.ReferralService, log *logrus.Logger) *AccountHandler {
	return &AccountHandler{
		registration: registration,
		accounts:     accounts,
		referrals:    referrals,
		validate:     validator.New(),
		log:          log,
	}
}

type registerRequest struct {
	Name         string `json:"name" validate:"max=100"`
	Email        string `json:"email" validate:"required,email"`
	ReferralCode string `json:"referral_code" validate:"omitempty,max=32"`
}

// Register creates the wallet account for the authenticated identity.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeValidationError(w, err)
		return
	}

	account, err := h.registration.Register(r.Context(), accountID, req.Name, req.Email, req.ReferralCode)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, account)
}

// Me returns the caller's account: balance, referral code, bonus flag.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	account, err := h.accounts.Get(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, account)
}

// ReferralQR serves the caller's referral code as a PNG QR for sharing.
func (h *AccountHandler) ReferralQR(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	account, err := h.accounts.Get(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	img, err := h.referrals.ShareQR(account.ReferralCode)
	if err != nil {
		h.log.WithError(err).Error("referral qr render failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(img)
}
