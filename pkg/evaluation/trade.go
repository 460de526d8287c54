package evaluation

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ============================================================================
// TRADE RECORDS
// ============================================================================

// RawTrade is the boundary shape for a completed trade as supplied by external
// sources (trade journals, exchange importers, API clients). Numeric fields are
// pointers so that an absent field can be told apart from an explicit zero.
// Realized PnL may arrive under any of several legacy names; NormalizeTrades
// resolves them in a fixed priority order.
type RawTrade struct {
	// Timestamp aliases, tried in order.
	Timestamp string `json:"timestamp,omitempty"`
	EntryTime string `json:"entry_time,omitempty"`
	Time      string `json:"time,omitempty"`
	Date      string `json:"date,omitempty"`

	// Realized PnL aliases, tried in order. First present alias wins.
	PnL         *float64 `json:"pnl,omitempty"`
	Profit      *float64 `json:"profit,omitempty"`
	NetProfit   *float64 `json:"net_profit,omitempty"`
	RealizedPnL *float64 `json:"realized_pnl,omitempty"`
	ProfitLoss  *float64 `json:"profit_loss,omitempty"`

	// Notional aliases, tried in order.
	Size     *float64 `json:"size,omitempty"`
	Notional *float64 `json:"notional,omitempty"`

	// Percentage return aliases, tried in order.
	PctReturn *float64 `json:"pct_return,omitempty"`
	ReturnPct *float64 `json:"return_pct,omitempty"`

	EntryPrice *float64 `json:"entry_price,omitempty"`
	ExitPrice  *float64 `json:"exit_price,omitempty"`

	Symbol   string `json:"symbol,omitempty"`
	Side     string `json:"side,omitempty"`
	Strategy string `json:"strategy,omitempty"`
}

// Trade is the canonical, normalized trade record the engine operates on.
// A zero Timestamp marks a trade whose entry time could not be parsed; such
// trades are excluded from time-ordered computations but still counted in
// aggregate win/loss statistics. Trades are treated as immutable: every
// component returns derived copies and never mutates its input.
type Trade struct {
	Timestamp  time.Time `json:"timestamp,omitempty"`
	PnL        float64   `json:"pnl"`
	Notional   float64   `json:"notional,omitempty"`
	EntryPrice float64   `json:"entry_price,omitempty"`
	ExitPrice  float64   `json:"exit_price,omitempty"`
	PctReturn  float64   `json:"pct_return,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	Side       string    `json:"side,omitempty"`

	// Friction breakdown, populated only on copies produced by ApplyFriction.
	GrossPnL     float64 `json:"gross_pnl,omitempty"`
	Commission   float64 `json:"commission,omitempty"`
	SpreadCost   float64 `json:"spread_cost,omitempty"`
	SlippageCost float64 `json:"slippage_cost,omitempty"`
	FillRatio    float64 `json:"fill_ratio,omitempty"`
}

// HasTimestamp reports whether the trade carries a parseable entry time.
func (t Trade) HasTimestamp() bool {
	return !t.Timestamp.IsZero()
}

// timestampLayouts are the accepted string layouts for trade timestamps,
// tried in order.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ============================================================================
// NORMALIZATION
// ============================================================================

// NormalizeTrades converts boundary trade records into canonical trades.
// Alias resolution happens here, once, so that no downstream algorithm has to
// know about legacy field names. Trades with no parseable timestamp keep a
// zero Timestamp and remain in the result.
func NormalizeTrades(raw []RawTrade) []Trade {
	trades := make([]Trade, 0, len(raw))
	missingTime := 0

	for _, r := range raw {
		t := Trade{
			PnL:    firstFloat(r.PnL, r.Profit, r.NetProfit, r.RealizedPnL, r.ProfitLoss),
			Symbol: r.Symbol,
			Side:   strings.ToUpper(strings.TrimSpace(r.Side)),
		}

		if v := firstFloat(r.Size, r.Notional); v != 0 {
			t.Notional = v
		}
		if v := firstFloat(r.PctReturn, r.ReturnPct); v != 0 {
			t.PctReturn = v
		}
		if r.EntryPrice != nil {
			t.EntryPrice = *r.EntryPrice
		}
		if r.ExitPrice != nil {
			t.ExitPrice = *r.ExitPrice
		}

		if ts, ok := parseTimestamp(firstString(r.Timestamp, r.EntryTime, r.Time, r.Date)); ok {
			t.Timestamp = ts
		} else {
			missingTime++
		}

		trades = append(trades, t)
	}

	if missingTime > 0 {
		log.Debug().
			Int("total", len(trades)).
			Int("without_timestamp", missingTime).
			Msg("Normalized trades with unparseable timestamps")
	}

	return trades
}

// parseTimestamp parses a trade timestamp from the known layouts. Bare integers
// are treated as Unix epoch values, in milliseconds when the magnitude says so.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}

	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil && epoch > 0 {
		// 13+ digit values are epoch milliseconds, shorter ones seconds.
		if epoch >= 1e12 {
			return time.UnixMilli(epoch).UTC(), true
		}
		return time.Unix(epoch, 0).UTC(), true
	}

	return time.Time{}, false
}

func firstFloat(candidates ...*float64) float64 {
	for _, c := range candidates {
		if c != nil {
			return *c
		}
	}
	return 0
}

func firstString(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

// sortedByTime returns the subset of trades that carry a timestamp, as a new
// slice sorted chronologically. The input is left untouched.
func sortedByTime(trades []Trade) []Trade {
	timed := make([]Trade, 0, len(trades))
	for _, t := range trades {
		if t.HasTimestamp() {
			timed = append(timed, t)
		}
	}
	sort.SliceStable(timed, func(i, j int) bool {
		return timed[i].Timestamp.Before(timed[j].Timestamp)
	})
	return timed
}
