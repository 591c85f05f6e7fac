package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"crimson-casino/internal/ledger"
	"crimson-casino/internal/store"
)

type AdminHandlers struct {
	store  store.Store
	ledger *ledger.Ledger
}

func NewAdminHandlers(st store.Store, led *ledger.Ledger) *AdminHandlers {
	return &AdminHandlers{store: st, ledger: led}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			WriteHTTPError(w, http.StatusServiceUnavailable, "store_unavailable")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}
}

type topupRequest struct {
	AccountID string `json:"account_id"`
	AmountCC  int64  `json:"amount_cc"`
}

func (h *AdminHandlers) Topup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req topupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" || req.AmountCC <= 0 {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if err := h.store.EnsureAccount(r.Context(), req.AccountID, 0); err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		balance, err := h.ledger.Topup(r.Context(), req.AccountID, req.AmountCC)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				WriteHTTPError(w, http.StatusNotFound, "account_not_found")
				return
			}
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"account_id": req.AccountID, "available_cc": balance})
	}
}

func (h *AdminHandlers) Ledger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		limit := ParseLimit(r, 100, 500)
		entries, err := h.ledger.History(r.Context(), accountID, limit)
		if err != nil {
			WriteHTTPError(w, http.StatusInternalServerError, "internal_error")
			return
		}
		out := make([]map[string]any, 0, len(entries))
		for _, e := range entries {
			out = append(out, map[string]any{
				"id":         e.ID,
				"account_id": e.AccountID,
				"type":       e.Type,
				"amount_cc":  e.AmountCC,
				"ref_type":   e.RefType,
				"ref_id":     e.RefID,
				"created_at": e.CreatedAt,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"items": out})
	}
}
