package config

import (
	"errors"
	"os"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	HTTPAddr          string
	DBDSN             string
	SessionIssuer     string
	SessionSecret     string
	SessionTTL        time.Duration
	InternalTokenHash string
	WebSocketOrigin   string
	StartingBalance   decimal.Decimal
	SymbolsFile       string
	QuoteInterval     time.Duration
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.SessionSecret = os.Getenv("SESSION_SECRET")
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	c.SessionIssuer = os.Getenv("SESSION_ISSUER")
	if c.SessionIssuer == "" {
		c.SessionIssuer = "sx-futures"
	}
	sessionTTL := os.Getenv("SESSION_TTL")
	if sessionTTL == "" {
		sessionTTL = "720h"
	}
	ttl, err := time.ParseDuration(sessionTTL)
	if err != nil {
		return c, errors.New("invalid SESSION_TTL: " + err.Error())
	}
	c.SessionTTL = ttl

	// Optional: without a DSN the service runs on the in-memory store.
	c.DBDSN = os.Getenv("DB_DSN")

	c.InternalTokenHash = os.Getenv("INTERNAL_TOKEN_HASH")
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		c.WebSocketOrigin = "*"
	}

	startingBalance := os.Getenv("STARTING_BALANCE")
	if startingBalance == "" {
		startingBalance = "10000"
	}
	balance, err := decimal.NewFromString(startingBalance)
	if err != nil || !balance.GreaterThan(decimal.Zero) {
		return c, errors.New("invalid STARTING_BALANCE")
	}
	c.StartingBalance = balance

	c.SymbolsFile = os.Getenv("SYMBOLS_FILE")

	quoteInterval := os.Getenv("QUOTE_INTERVAL")
	if quoteInterval == "" {
		quoteInterval = "1s"
	}
	interval, err := time.ParseDuration(quoteInterval)
	if err != nil {
		return c, errors.New("invalid QUOTE_INTERVAL: " + err.Error())
	}
	c.QuoteInterval = interval

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + join(missing))
	}
	return c, nil
}

func join(items []string) string {
	if len(items) == 0 {
		return ""
	}
	out := items[0]
	for i := 1; i < len(items); i++ {
		out += "," + items[i]
	}
	return out
}
