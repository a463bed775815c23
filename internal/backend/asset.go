package backend

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// AssetPrecision is the number of decimal places of every token amount the
// game uses.
const AssetPrecision = 4

var assetPattern = regexp.MustCompile(`(\d+)\.(\d{4}) ([A-Z]{1,7})`)

// Asset is a token amount in base units (1 unit = 0.0001 token).
type Asset struct {
	Units  int64
	Symbol string
}

// ParseAsset parses the first "<int>.<4 digits> SYMBOL" in s.
func ParseAsset(s string) (Asset, error) {
	m := assetPattern.FindStringSubmatch(s)
	if m == nil {
		return Asset{}, fmt.Errorf("no asset in %q", strings.TrimSpace(s))
	}
	whole, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Asset{}, fmt.Errorf("asset %q: %w", m[0], err)
	}
	frac, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Asset{}, fmt.Errorf("asset %q: %w", m[0], err)
	}
	return Asset{Units: whole*10000 + frac, Symbol: m[3]}, nil
}

// Amount renders the numeric part, e.g. "12.3456".
func (a Asset) Amount() string {
	return fmt.Sprintf("%d.%04d", a.Units/10000, a.Units%10000)
}

// String renders the asset as the backend expects it, e.g. "12.3456 PLAY".
func (a Asset) String() string {
	return a.Amount() + " " + a.Symbol
}

// Positive reports whether the amount is above zero.
func (a Asset) Positive() bool {
	return a.Units > 0
}

// Fraction returns a/div rounded half up to the asset precision.
func (a Asset) Fraction(div int64) Asset {
	return Asset{Units: (a.Units + div/2) / div, Symbol: a.Symbol}
}

// SymbolCode renders the precision-qualified symbol, e.g. "4,PLAY".
func SymbolCode(symbol string) string {
	return fmt.Sprintf("%d,%s", AssetPrecision, symbol)
}
