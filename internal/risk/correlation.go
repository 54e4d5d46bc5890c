package risk

import "strings"

// ZeroCorrelationOracle is the default CorrelationOracle: it never flags a
// correlation breach. The FX-pair heuristic below is preserved as an opt-in
// alternative, not the default, since the oracle is pluggable.
type ZeroCorrelationOracle struct{}

// Correlation always returns 0.
func (ZeroCorrelationOracle) Correlation(symbolA, symbolB string) float64 { return 0 }

// SharedCurrencyOracle estimates correlation from shared FX currency legs.
// Symbols are expected in "BASEQUOTE" form (e.g. "EURUSD").
type SharedCurrencyOracle struct{}

// Correlation returns 1.0 for identical pairs, 0.6 when pairs share exactly
// one currency leg in the same position, -1.0 for the inverted pair (e.g.
// EURUSD vs USDEUR), -0.6 when they share one leg in opposing positions, and
// 0 otherwise.
func (SharedCurrencyOracle) Correlation(symbolA, symbolB string) float64 {
	if symbolA == symbolB {
		return 1.0
	}
	a, ok1 := legs(symbolA)
	b, ok2 := legs(symbolB)
	if !ok1 || !ok2 {
		return 0
	}

	switch {
	case a[0] == b[0] && a[1] == b[1]:
		return 1.0
	case a[0] == b[0] || a[1] == b[1]:
		return 0.6
	case a[0] == b[1] && a[1] == b[0]:
		return -1.0
	case a[0] == b[1] || a[1] == b[0]:
		return -0.6
	default:
		return 0
	}
}

func legs(symbol string) ([2]string, bool) {
	symbol = strings.ToUpper(symbol)
	if len(symbol) < 6 {
		return [2]string{}, false
	}
	return [2]string{symbol[:3], symbol[3:6]}, true
}
