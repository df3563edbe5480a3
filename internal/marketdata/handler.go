package marketdata

import (
	"net/http"

	"sx-futures/internal/httputil"
)

type Handler struct {
	table *Table
}

func NewHandler(table *Table) *Handler {
	return &Handler{table: table}
}

func (h *Handler) Symbols(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"symbols": h.table.All()})
}
