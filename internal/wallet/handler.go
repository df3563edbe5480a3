package wallet

import (
	"net/http"
	"strings"

	"sx-futures/internal/engine"
	"sx-futures/internal/httputil"
)

type Handler struct {
	eng *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{eng: eng}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, accountID string) {
	wallet, err := h.eng.Wallet(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wallet)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request, accountID string) {
	wallet, err := h.eng.ResetWallet(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wallet)
}

type internalResetRequest struct {
	AccountID string `json:"account_id"`
}

// InternalReset is the operator variant of Reset: it targets an arbitrary
// account and sits behind the internal token.
func (h *Handler) InternalReset(w http.ResponseWriter, r *http.Request) {
	var req internalResetRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
		return
	}
	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "account_id is required"})
		return
	}
	wallet, err := h.eng.ResetWallet(r.Context(), accountID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, wallet)
}
