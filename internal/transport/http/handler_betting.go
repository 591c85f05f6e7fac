package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crimson-casino/internal/betting"
	"crimson-casino/internal/store"
)

type BettingHandlers struct {
	svc *betting.Service
}

func NewBettingHandlers(svc *betting.Service) *BettingHandlers {
	return &BettingHandlers{svc: svc}
}

type placeBetRequest struct {
	AccountID       string `json:"account_id"`
	Selection       string `json:"selection"`
	Side            string `json:"side"`
	StakeCC         int64  `json:"stake_cc"`
	AutoCashoutX100 int64  `json:"auto_cashout_x100"`
}

type placeBetResponse struct {
	BetID     string          `json:"bet_id"`
	RoundID   string          `json:"round_id"`
	Selection string          `json:"selection"`
	Side      store.BetSide   `json:"side"`
	StakeCC   int64           `json:"stake_cc"`
	Status    store.BetStatus `json:"status"`
}

func (h *BettingHandlers) PlaceBet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req placeBetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if req.AccountID == "" || req.StakeCC <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		bet, err := h.svc.PlaceBet(r.Context(), betting.PlaceBetRequest{
			TableID:         chi.URLParam(r, "table_id"),
			AccountID:       req.AccountID,
			Selection:       req.Selection,
			Side:            store.BetSide(req.Side),
			StakeCC:         req.StakeCC,
			AutoCashoutX100: req.AutoCashoutX100,
		})
		if err != nil {
			writeBettingError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(placeBetResponse{
			BetID:     bet.ID,
			RoundID:   bet.RoundID,
			Selection: bet.Selection,
			Side:      bet.Side,
			StakeCC:   bet.StakeCC,
			Status:    bet.Status,
		})
	}
}

type cashOutRequest struct {
	AccountID string `json:"account_id"`
}

type cashOutResponse struct {
	BetID    string `json:"bet_id"`
	PayoutCC int64  `json:"payout_cc"`
}

func (h *BettingHandlers) CashOut() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cashOutRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		betID := chi.URLParam(r, "bet_id")
		payout, err := h.svc.CashOut(r.Context(), req.AccountID, betID)
		if err != nil {
			writeBettingError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(cashOutResponse{BetID: betID, PayoutCC: payout})
	}
}

func writeBettingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, betting.ErrTableNotFound),
		errors.Is(err, betting.ErrBetNotFound),
		errors.Is(err, betting.ErrAccountNotFound):
		WriteHTTPError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, betting.ErrBelowMinimum),
		errors.Is(err, betting.ErrAboveMaximum),
		errors.Is(err, betting.ErrInvalidSelection),
		errors.Is(err, betting.ErrLayNotAllowed):
		WriteHTTPError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, betting.ErrInsufficientBalance):
		WriteHTTPError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, betting.ErrRoundNotOpen),
		errors.Is(err, betting.ErrRoundClosingRace),
		errors.Is(err, betting.ErrDuplicateBet),
		errors.Is(err, betting.ErrCashoutUnavailable):
		WriteHTTPError(w, http.StatusConflict, err.Error())
	default:
		WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
	}
}
