package source

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/strateval/internal/metrics"
	"github.com/ajitpratap0/strateval/pkg/evaluation"
)

// qtyEpsilon is the residual below which a lot counts as fully consumed
const qtyEpsilon = 1e-12

// BinanceConfig contains configuration for the Binance trade importer
type BinanceConfig struct {
	APIKey    string
	SecretKey string
	Testnet   bool
	Symbols   []string
	PageLimit int
}

// BinanceSource rebuilds completed round-trip trades from the account's raw
// fill history. Each symbol becomes one strategy keyed by the symbol name.
type BinanceSource struct {
	client  *binance.Client
	symbols []string
	limit   int
}

// NewBinanceSource creates a Binance trade source
func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	if cfg.Testnet {
		binance.UseTestnet = true
		log.Info().Msg("Binance source initialized (TESTNET mode)")
	}

	limit := cfg.PageLimit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	return &BinanceSource{
		client:  binance.NewClient(cfg.APIKey, cfg.SecretKey),
		symbols: cfg.Symbols,
		limit:   limit,
	}
}

// Load fetches the fill history for every configured symbol and matches it
// into round-trip trades
func (s *BinanceSource) Load(ctx context.Context) (map[string][]evaluation.RawTrade, error) {
	if len(s.symbols) == 0 {
		return nil, fmt.Errorf("no symbols configured for binance source")
	}

	strategies := make(map[string][]evaluation.RawTrade)
	for _, symbol := range s.symbols {
		start := time.Now()
		fills, err := s.fetchFills(ctx, symbol)
		metrics.RecordSourceFetch("binance", float64(time.Since(start).Milliseconds()), err)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s fills: %w", symbol, err)
		}

		trades := matchRoundTrips(symbol, fills)
		if len(trades) == 0 {
			log.Warn().
				Str("symbol", symbol).
				Int("fills", len(fills)).
				Msg("No round-trip trades reconstructed for symbol")
			continue
		}

		log.Info().
			Str("symbol", symbol).
			Int("fills", len(fills)).
			Int("trades", len(trades)).
			Msg("Round-trip trades reconstructed")

		strategies[symbol] = trades
	}

	return strategies, nil
}

// fetchFills pages through the account trade list for one symbol
func (s *BinanceSource) fetchFills(ctx context.Context, symbol string) ([]*binance.TradeV3, error) {
	var all []*binance.TradeV3

	fromID := int64(0)
	for {
		svc := s.client.NewListTradesService().Symbol(symbol).Limit(s.limit)
		if fromID > 0 {
			svc = svc.FromID(fromID)
		}

		page, err := svc.Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list trades: %w", err)
		}

		all = append(all, page...)
		if len(page) < s.limit {
			break
		}
		fromID = page[len(page)-1].ID + 1
	}

	return all, nil
}

// fill is one parsed exchange fill with the commission already valued in
// quote units per unit of base quantity
type fill struct {
	price      float64
	qty        float64
	feePerUnit float64
	time       time.Time
	isBuyer    bool
}

// matchRoundTrips pairs buy fills against later sell fills first-in first-out
// and emits one raw trade per closed lot. The trade carries the exit-time
// timestamp, entry/exit prices, the entry notional, and PnL net of the
// commissions reported on both fills. Sell quantity with no open lot to match
// (short history, transfers in) is skipped.
func matchRoundTrips(symbol string, raw []*binance.TradeV3) []evaluation.RawTrade {
	fills := make([]fill, 0, len(raw))
	for _, t := range raw {
		f, err := parseFill(symbol, t)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Int64("fill_id", t.ID).Msg("Skipping unparseable fill")
			continue
		}
		fills = append(fills, f)
	}

	sort.SliceStable(fills, func(i, j int) bool {
		return fills[i].time.Before(fills[j].time)
	})

	type lot struct {
		qty        float64
		price      float64
		feePerUnit float64
	}

	var open []lot
	var trades []evaluation.RawTrade

	for _, f := range fills {
		if f.isBuyer {
			open = append(open, lot{qty: f.qty, price: f.price, feePerUnit: f.feePerUnit})
			continue
		}

		remaining := f.qty
		for remaining > qtyEpsilon && len(open) > 0 {
			l := &open[0]
			matched := math.Min(l.qty, remaining)

			notional := matched * l.price
			pnl := matched*(f.price-l.price) - matched*(l.feePerUnit+f.feePerUnit)
			entryPrice := l.price
			exitPrice := f.price

			trades = append(trades, evaluation.RawTrade{
				Timestamp:  f.time.UTC().Format(time.RFC3339),
				PnL:        &pnl,
				Size:       &notional,
				EntryPrice: &entryPrice,
				ExitPrice:  &exitPrice,
				Symbol:     symbol,
				Side:       "long",
			})

			l.qty -= matched
			remaining -= matched
			if l.qty <= qtyEpsilon {
				open = open[1:]
			}
		}

		if remaining > qtyEpsilon {
			log.Debug().
				Str("symbol", symbol).
				Float64("qty", remaining).
				Msg("Sell fill without a matching buy, skipped")
		}
	}

	return trades
}

// parseFill converts an exchange fill into the matcher's numeric shape
func parseFill(symbol string, t *binance.TradeV3) (fill, error) {
	price, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return fill{}, fmt.Errorf("invalid price %q: %w", t.Price, err)
	}
	qty, err := strconv.ParseFloat(t.Quantity, 64)
	if err != nil {
		return fill{}, fmt.Errorf("invalid quantity %q: %w", t.Quantity, err)
	}
	if qty <= 0 {
		return fill{}, fmt.Errorf("non-positive quantity %q", t.Quantity)
	}

	commission, err := strconv.ParseFloat(t.Commission, 64)
	if err != nil {
		commission = 0
	}

	return fill{
		price:      price,
		qty:        qty,
		feePerUnit: commissionInQuote(symbol, t.CommissionAsset, commission, price) / qty,
		time:       time.UnixMilli(t.Time),
		isBuyer:    t.IsBuyer,
	}, nil
}

// commissionInQuote values a reported commission in quote units. Fees paid in
// the base asset are valued at the fill price; fees in an unrelated asset
// (BNB discounts) cannot be converted here and count as zero.
func commissionInQuote(symbol, asset string, commission, price float64) float64 {
	if commission == 0 || asset == "" {
		return 0
	}
	if strings.HasSuffix(symbol, asset) {
		return commission
	}
	if strings.HasPrefix(symbol, asset) {
		return commission * price
	}

	log.Debug().
		Str("symbol", symbol).
		Str("asset", asset).
		Msg("Commission in unconvertible asset, ignored")
	return 0
}
