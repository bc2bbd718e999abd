// Package tickers extracts trading-relevant structure from market tickers.
package tickers

import (
	"strconv"
	"strings"
)

// Spot-indexed ticker families and the underlying asset they settle on.
var spotPrefixes = map[string]string{
	"KXBTC": "btc",
	"KXETH": "eth",
}

// SpotContract is a market whose outcome is the underlying's spot price
// relative to a strike at close.
type SpotContract struct {
	Asset  string  // "btc", "eth"
	Above  bool    // true when yes means spot finishes above the strike
	Strike float64 // dollars
}

// ParseSpotContract decodes the strike segment of a spot-indexed ticker,
// e.g. KXBTCD-26JAN2901-T88249.99. The segment's leading letter encodes
// direction: T means the market resolves yes below the strike, B above.
// Returns false for tickers outside the known spot families or without a
// parseable strike.
func ParseSpotContract(ticker string) (SpotContract, bool) {
	upper := strings.ToUpper(ticker)

	var asset string
	for prefix, a := range spotPrefixes {
		if strings.HasPrefix(upper, prefix) {
			asset = a
			break
		}
	}
	if asset == "" {
		return SpotContract{}, false
	}

	for _, seg := range strings.Split(upper, "-")[1:] {
		if len(seg) < 2 {
			continue
		}
		var above bool
		switch seg[0] {
		case 'T':
			above = false
		case 'B':
			above = true
		default:
			continue
		}
		strike, err := strconv.ParseFloat(seg[1:], 64)
		if err != nil || strike <= 0 {
			continue
		}
		return SpotContract{Asset: asset, Above: above, Strike: strike}, true
	}
	return SpotContract{}, false
}
