package orders

import (
	"net/http"
	"strconv"
	"strings"

	"sx-futures/internal/engine"
	"sx-futures/internal/httputil"
	"sx-futures/internal/storage"
	"sx-futures/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxListLimit = 100

type Handler struct {
	eng *engine.Engine
}

func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{eng: eng}
}

type placeOrderRequest struct {
	Symbol     string `json:"symbol"`
	Side       string `json:"side"`
	Type       string `json:"type"`
	Price      string `json:"price"`
	StopPrice  string `json:"stop_price"`
	Quantity   string `json:"quantity"`
	Leverage   int    `json:"leverage"`
	MarginMode string `json:"margin_mode"`
}

func (h *Handler) Place(w http.ResponseWriter, r *http.Request, accountID string) {
	var req placeOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request body"})
		return
	}
	price, err := optionalDecimal(req.Price)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
		return
	}
	stopPrice, err := optionalDecimal(req.StopPrice)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid stop_price"})
		return
	}
	if req.Quantity == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "quantity is required"})
		return
	}
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid quantity"})
		return
	}

	order, err := h.eng.SubmitOrder(r.Context(), accountID, engine.OrderSpec{
		Symbol:     req.Symbol,
		Side:       types.OrderSide(req.Side),
		Type:       types.OrderType(req.Type),
		Price:      price,
		StopPrice:  stopPrice,
		Quantity:   quantity,
		Leverage:   req.Leverage,
		MarginMode: types.MarginMode(req.MarginMode),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, order)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, accountID string) {
	q := r.URL.Query()
	filter := storage.OrderFilter{
		Symbol:     strings.ToUpper(q.Get("symbol")),
		Status:     types.OrderStatus(q.Get("status")),
		ActiveOnly: q.Get("active") == "true",
		Limit:      listLimit(q.Get("limit")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid status"})
		return
	}
	orders, err := h.eng.Orders(r.Context(), accountID, filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request, accountID string) {
	order, err := h.eng.Order(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request, accountID string) {
	order, err := h.eng.CancelOrder(r.Context(), accountID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) CancelAll(w http.ResponseWriter, r *http.Request, accountID string) {
	cancelled, err := h.eng.CancelAllOrders(r.Context(), accountID, r.URL.Query().Get("symbol"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
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
