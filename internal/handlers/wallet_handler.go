package handlers

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/takagor/wallet-backend/internal/middleware"
	"github.com/takagor/wallet-backend/internal/models"
	"github.com/takagor/wallet-backend/internal/services"
)

type WalletHandler struct {
	balance  *services.BalanceService
	ledger   *services.LedgerService
	validate *validator.Validate
	log      *logrus.Logger
}

func NewWalletHandler(balance *services.BalanceService, ledger *services.LedgerService, log *logrus.Logger) *WalletHandler {
	return &WalletHandler{
		balance:  balance,
		ledger:   ledger,
		validate: validator.New(),
		log:      log,
	}
}

type depositRequest struct {
	Amount         int64  `json:"amount" validate:"required,gt=0"`
	Method         string `json:"method" validate:"max=50"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,max=64"`
}

// Deposit records a deposit intent and credits the balance. No gateway is
// called; real money movement happens elsewhere.
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req depositRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeValidationError(w, err)
		return
	}

	method := req.Method
	if method == "" {
		method = "online"
	}

	newBalance, err := h.balance.ApplyIdempotent(r.Context(), req.IdempotencyKey, accountID, req.Amount, models.TxTypeDeposit, models.Metadata{
		"method": method,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": newBalance,
	})
}

type withdrawRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0"`
	Method        string `json:"method" validate:"required,max=50"`
	AccountNumber string `json:"account_number" validate:"required,max=34"`
}

// Withdraw records a withdrawal request and debits the balance.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req withdrawRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeValidationError(w, err)
		return
	}

	newBalance, err := h.balance.ApplyBalanceChange(r.Context(), accountID, -req.Amount, models.TxTypeWithdraw, models.Metadata{
		"method":         req.Method,
		"account_number": req.AccountNumber,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": newBalance,
	})
}

type buyTokensRequest struct {
	Tokens int64 `json:"tokens" validate:"required,gt=0,max=1000000"`
}

func (h *WalletHandler) BuyTokens(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	var req buyTokensRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeValidationError(w, err)
		return
	}

	newBalance, err := h.balance.PurchaseTokens(r.Context(), accountID, req.Tokens)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tokens":  req.Tokens,
		"balance": newBalance,
	})
}

// ListTransactions returns the caller's ledger, newest first.
func (h *WalletHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := middleware.AccountID(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	entries, err := h.ledger.List(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": entries,
		"count":        len(entries),
	})
}
