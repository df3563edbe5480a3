package trades

import (
	"net/http"
	"strconv"

	"sx-futures/internal/engine"
	"sx-futures/internal/httputil"
)

const maxListLimit = 100

type Handler struct {
	eng *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{eng: eng}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, accountID string) {
	q := r.URL.Query()
	limit := maxListLimit
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 1 && n <= maxListLimit {
			limit = n
		}
	}
	trades, err := h.eng.Trades(r.Context(), accountID, q.Get("symbol"), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"trades": trades})
}
