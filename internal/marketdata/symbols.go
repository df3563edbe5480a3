package marketdata

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Symbol describes one tradable contract. ReferencePrice seeds the mock
// quote publisher and serves as the fallback execution price.
type Symbol struct {
	Symbol              string          `yaml:"symbol" json:"symbol"`
	Base                string          `yaml:"base" json:"base"`
	Quote               string          `yaml:"quote" json:"quote"`
	PricePrecision      int             `yaml:"price_precision" json:"pricePrecision"`
	QuantityPrecision   int             `yaml:"quantity_precision" json:"quantityPrecision"`
	MinQuantity         decimal.Decimal `yaml:"min_quantity" json:"minQuantity"`
	MaxLeverage         int             `yaml:"max_leverage" json:"maxLeverage"`
	ReferencePrice      decimal.Decimal `yaml:"reference_price" json:"-"`
	ReferenceVolatility float64         `yaml:"reference_volatility" json:"-"`
}

func defaultSymbols() []Symbol {
	d := func(s string) decimal.Decimal {
		v, _ := decimal.NewFromString(s)
		return v
	}
	return []Symbol{
		{Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT", PricePrecision: 2, QuantityPrecision: 3, MinQuantity: d("0.001"), MaxLeverage: 125, ReferencePrice: d("95000"), ReferenceVolatility: 0.0004},
		{Symbol: "ETHUSDT", Base: "ETH", Quote: "USDT", PricePrecision: 2, QuantityPrecision: 3, MinQuantity: d("0.001"), MaxLeverage: 100, ReferencePrice: d("3300"), ReferenceVolatility: 0.0005},
		{Symbol: "BNBUSDT", Base: "BNB", Quote: "USDT", PricePrecision: 2, QuantityPrecision: 2, MinQuantity: d("0.01"), MaxLeverage: 75, ReferencePrice: d("620"), ReferenceVolatility: 0.0006},
		{Symbol: "SOLUSDT", Base: "SOL", Quote: "USDT", PricePrecision: 3, QuantityPrecision: 1, MinQuantity: d("0.1"), MaxLeverage: 50, ReferencePrice: d("180"), ReferenceVolatility: 0.0008},
		{Symbol: "XRPUSDT", Base: "XRP", Quote: "USDT", PricePrecision: 4, QuantityPrecision: 1, MinQuantity: d("1"), MaxLeverage: 50, ReferencePrice: d("2.4"), ReferenceVolatility: 0.0008},
	}
}

// LoadSymbols returns the symbol table, optionally overridden by a yaml file.
func LoadSymbols(path string) ([]Symbol, error) {
	if path == "" {
		return defaultSymbols(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file struct {
		Symbols []Symbol `yaml:"symbols"`
	}
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if len(file.Symbols) == 0 {
		return nil, fmt.Errorf("symbols file %s defines no symbols", path)
	}
	for i := range file.Symbols {
		file.Symbols[i].Symbol = strings.ToUpper(file.Symbols[i].Symbol)
		if !file.Symbols[i].ReferencePrice.GreaterThan(decimal.Zero) {
			return nil, fmt.Errorf("symbol %s needs a positive reference_price", file.Symbols[i].Symbol)
		}
	}
	return file.Symbols, nil
}

// Table is a read-only symbol lookup.
type Table struct {
	symbols []Symbol
	bySym   map[string]Symbol
}

func NewTable(symbols []Symbol) *Table {
	t := &Table{symbols: symbols, bySym: make(map[string]Symbol, len(symbols))}
	for _, s := range symbols {
		t.bySym[strings.ToUpper(s.Symbol)] = s
	}
	return t
}

func (t *Table) Get(symbol string) (Symbol, bool) {
	s, ok := t.bySym[strings.ToUpper(symbol)]
	return s, ok
}

func (t *Table) All() []Symbol {
	out := make([]Symbol, len(t.symbols))
	copy(out, t.symbols)
	return out
}
