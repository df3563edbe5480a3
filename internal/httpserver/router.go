package httpserver

import (
	"net/http"

	"sx-futures/internal/health"
	"sx-futures/internal/httputil"
	"sx-futures/internal/marketdata"
	"sx-futures/internal/orders"
	"sx-futures/internal/positions"
	"sx-futures/internal/sessions"
	"sx-futures/internal/trades"
	"sx-futures/internal/wallet"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	SessionsHandler   *sessions.Handler
	WalletHandler     *wallet.Handler
	OrdersHandler     *orders.Handler
	PositionsHandler  *positions.Handler
	TradesHandler     *trades.Handler
	MarketHandler     *marketdata.Handler
	HealthHandler     *health.Handler
	SessionService    *sessions.Service
	InternalTokenHash string
	WSHandler         http.Handler
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS middleware for development
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Session-Token, X-Internal-Token")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	// Security Middleware
	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", d.HealthHandler.Ready)
	r.Get("/health/live", d.HealthHandler.Live)
	r.Get("/health/ready", d.HealthHandler.Ready)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/users/guest", d.SessionsHandler.Guest)
		r.Get("/symbols", d.MarketHandler.Symbols)
		r.Get("/market/ws", d.WSHandler.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(WithSession(d.SessionService))
			r.Get("/users/me", withAccount(d.SessionsHandler.Me))
			r.Get("/wallet", withAccount(d.WalletHandler.Get))
			r.Post("/wallet/reset", withAccount(d.WalletHandler.Reset))
			r.Post("/orders", withAccount(d.OrdersHandler.Place))
			r.Get("/orders", withAccount(d.OrdersHandler.List))
			r.Delete("/orders", withAccount(d.OrdersHandler.CancelAll))
			r.Get("/orders/{id}", withAccount(d.OrdersHandler.Get))
			r.Delete("/orders/{id}", withAccount(d.OrdersHandler.Cancel))
			r.Get("/positions", withAccount(d.PositionsHandler.List))
			r.Get("/positions/{id}", withAccount(d.PositionsHandler.Get))
			r.Patch("/positions/{id}", withAccount(d.PositionsHandler.UpdateThresholds))
			r.Delete("/positions/{id}", withAccount(d.PositionsHandler.Close))
			r.Get("/trades", withAccount(d.TradesHandler.List))
		})

		r.Group(func(r chi.Router) {
			r.Use(InternalAuth(d.InternalTokenHash))
			r.Post("/internal/wallets/reset", d.WalletHandler.InternalReset)
		})
	})

	return r
}

func withAccount(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, ok := AccountID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		fn(w, r, accountID)
	}
}
