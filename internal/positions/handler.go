package positions

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"sx-futures/internal/engine"
	"sx-futures/internal/httputil"
	"sx-futures/internal/model"
	"sx-futures/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxListLimit = 100

// markParamPrefix introduces per-symbol mark price query parameters, e.g.
// mark_BTCUSDT=95000. Positions for symbols without a mark are returned
// without unrealized figures.
const markParamPrefix = "mark_"

type Handler struct {
	eng *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{eng: eng}
}

// positionView is a position decorated with mark-price-derived figures.
type positionView struct {
	model.Position
	MarkPrice     *decimal.Decimal `json:"mark_price,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`
	ROE           *decimal.Decimal `json:"roe,omitempty"`
}

func viewOf(pos model.Position, mark *decimal.Decimal) positionView {
	v := positionView{Position: pos}
	if mark == nil || !pos.IsOpen {
		return v
	}
	upnl := pos.UnrealizedPnL(*mark)
	roe := pos.ROE(*mark)
	v.MarkPrice = mark
	v.UnrealizedPnL = &upnl
	v.ROE = &roe
	return v
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, accountID string) {
	q := r.URL.Query()
	filter := storage.PositionFilter{
		Symbol:   strings.ToUpper(q.Get("symbol")),
		OpenOnly: q.Get("open") == "true",
		Limit:    listLimit(q.Get("limit")),
	}
	marks, err := markPrices(q)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}

	positions, err := h.eng.Positions(r.Context(), accountID, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	views := make([]positionView, 0, len(positions))
	for _, pos := range positions {
		var mark *decimal.Decimal
		if m, ok := marks[pos.Symbol]; ok {
			mark = &m
		}
		views = append(views, viewOf(pos, mark))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"positions": views})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, accountID string) {
	var mark *decimal.Decimal
	if raw := r.URL.Query().Get("mark_price"); raw != "" {
		m, err := decimal.NewFromString(raw)
		if err != nil || !m.GreaterThan(decimal.Zero) {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid mark_price"})
			return
		}
		mark = &m
	}
	pos, err := h.eng.Position(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, viewOf(pos, mark))
}

type updateThresholdsRequest struct {
	TakeProfit string `json:"take_profit"`
	StopLoss   string `json:"stop_loss"`
}

func (h *Handler) UpdateThresholds(w http.ResponseWriter, r *http.Request, accountID string) {
	var req updateThresholdsRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
		return
	}
	takeProfit, err := optionalDecimal(req.TakeProfit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid take_profit"})
		return
	}
	stopLoss, err := optionalDecimal(req.StopLoss)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid stop_loss"})
		return
	}
	pos, err := h.eng.UpdatePositionThresholds(r.Context(), accountID, chi.URLParam(r, "id"), takeProfit, stopLoss)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pos)
}

type closePositionRequest struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request, accountID string) {
	var req closePositionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := httputil.ReadJSON(r, &req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
			return
		}
	}
	price, err := optionalDecimal(req.Price)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
		return
	}
	quantity, err := optionalDecimal(req.Quantity)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid quantity"})
		return
	}
	pos, trade, err := h.eng.ClosePosition(r.Context(), accountID, chi.URLParam(r, "id"), price, quantity)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"position": pos, "trade": trade})
}

func markPrices(q map[string][]string) (map[string]decimal.Decimal, error) {
	marks := make(map[string]decimal.Decimal)
	for key, vals := range q {
		if !strings.HasPrefix(key, markParamPrefix) || len(vals) == 0 {
			continue
		}
		symbol := strings.ToUpper(strings.TrimPrefix(key, markParamPrefix))
		m, err := decimal.NewFromString(vals[0])
		if err != nil || !m.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("invalid mark price in %s", key)
		}
		marks[symbol] = m
	}
	return marks, nil
}

func optionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func listLimit(s string) int {
	if s == "" {
		return maxListLimit
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > maxListLimit {
		return maxListLimit
	}
	return n
}
