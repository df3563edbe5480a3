package marketdata

import (
	"context"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the wire shape published for every tick.
type Quote struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Timestamp int64  `json:"ts"`
}

// StartPublisher runs a background random walk over every symbol in the
// table, feeding the mock source and fanning quotes out on the bus. It stops
// when ctx is cancelled.
func StartPublisher(ctx context.Context, bus *Bus, src *MockSource, table *Table, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		prices := make(map[string]decimal.Decimal)
		for _, s := range table.All() {
			prices[s.Symbol] = s.ReferencePrice
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			for _, s := range table.All() {
				vol := s.ReferenceVolatility
				if vol <= 0 {
					vol = 0.0005
				}
				step := decimal.NewFromFloat(1 + (rng.Float64()*2-1)*vol)
				next := prices[s.Symbol].Mul(step).Round(int32(s.PricePrecision))
				if !next.GreaterThan(decimal.Zero) {
					next = s.ReferencePrice
				}
				prices[s.Symbol] = next
				src.SetPrice(s.Symbol, next)
				bus.Publish(Event{Type: "quote", Data: Quote{
					Symbol:    s.Symbol,
					Price:     next.String(),
					Timestamp: time.Now().UnixMilli(),
				}})
			}
		}
	}()
}
