package marketdata

import (
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// MockSource is the synthetic price feed. It answers with the last published
// tick, falling back to the symbol's reference price before the publisher has
// produced one. A real deployment would swap this for a live feed behind the
// same interface.
type MockSource struct {
	table *Table

	mu   sync.RWMutex
	last map[string]decimal.Decimal
}

func NewMockSource(table *Table) *MockSource {
	return &MockSource{table: table, last: make(map[string]decimal.Decimal)}
}

func (s *MockSource) CurrentPrice(symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(symbol)
	s.mu.RLock()
	price, ok := s.last[symbol]
	s.mu.RUnlock()
	if ok {
		return price, nil
	}
	meta, ok := s.table.Get(symbol)
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown symbol %s", symbol)
	}
	return meta.ReferencePrice, nil
}

// SetPrice records a new tick; the publisher calls this on every step.
func (s *MockSource) SetPrice(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	s.last[strings.ToUpper(symbol)] = price
	s.mu.Unlock()
}
