package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sx-futures/internal/config"
	"sx-futures/internal/db"
	"sx-futures/internal/engine"
	"sx-futures/internal/health"
	"sx-futures/internal/httpserver"
	"sx-futures/internal/marketdata"
	"sx-futures/internal/orders"
	"sx-futures/internal/positions"
	"sx-futures/internal/sessions"
	"sx-futures/internal/storage"
	"sx-futures/internal/storage/memory"
	"sx-futures/internal/storage/postgres"
	"sx-futures/internal/trades"
	"sx-futures/internal/wallet"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store storage.Store
		pool  *pgxpool.Pool
	)
	if cfg.DBDSN != "" {
		pool, err = db.NewPool(ctx, cfg.DBDSN)
		if err != nil {
			log.Fatal(err)
		}
		defer pool.Close()
		pg := postgres.New(pool, cfg.StartingBalance)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal(err)
		}
		store = pg
		log.Printf("storage: postgres")
	} else {
		store = memory.New(cfg.StartingBalance)
		log.Printf("storage: in-memory")
	}

	symbols, err := marketdata.LoadSymbols(cfg.SymbolsFile)
	if err != nil {
		log.Fatal(err)
	}
	table := marketdata.NewTable(symbols)
	source := marketdata.NewMockSource(table)
	bus := marketdata.NewBus()
	marketdata.StartPublisher(ctx, bus, source, table, cfg.QuoteInterval)

	eng := engine.New(store, source, cfg.StartingBalance)
	sessionSvc := sessions.NewService(cfg.SessionIssuer, []byte(cfg.SessionSecret), cfg.SessionTTL)

	router := httpserver.NewRouter(httpserver.RouterDeps{
		SessionsHandler:   sessions.NewHandler(sessionSvc),
		WalletHandler:     wallet.NewHandler(eng),
		OrdersHandler:     orders.NewHandler(eng),
		PositionsHandler:  positions.NewHandler(eng),
		TradesHandler:     trades.NewHandler(eng),
		MarketHandler:     marketdata.NewHandler(table),
		HealthHandler:     health.NewHandler(pool, time.Now()),
		SessionService:    sessionSvc,
		InternalTokenHash: cfg.InternalTokenHash,
		WSHandler:         marketdata.NewQuoteWS(bus, cfg.WebSocketOrigin),
	})
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	log.Printf("server listening on %s", cfg.HTTPAddr)
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
