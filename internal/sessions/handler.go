package sessions

import (
	"net/http"
	"strings"

	"sx-futures/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Guest mints a new guest account and its session token. Presenting a still
// valid token re-issues for the same account instead of minting a new one.
func (h *Handler) Guest(w http.ResponseWriter, r *http.Request) {
	accountID := ""
	if authz := r.Header.Get("Authorization"); authz != "" {
		parts := strings.SplitN(authz, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if id, err := h.svc.Parse(parts[1]); err == nil {
				accountID = id
			}
		}
	}
	session, err := h.svc.Issue(accountID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "failed to create session"})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

// Me echoes the account the presented token resolves to.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request, accountID string) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"account_id": accountID})
}
