package market

import (
	"math"
	"math/rand"
	"time"

	"github.com/ken-de-nigerian/incrypto-sub000/pkg/models"
)

// Per-category fractional daily volatility for synthetic returns.
var categoryVolatility = map[string]float64{
	CategoryForex:  0.002,
	CategoryStock:  0.015,
	CategoryCrypto: 0.035,
}

// Per-category base daily volume for synthetic bars.
var categoryBaseVolume = map[string]int64{
	CategoryForex:  150_000,
	CategoryStock:  1_000_000,
	CategoryCrypto: 500_000,
}

// SyntheticGenerator produces OHLC candle series when no upstream
// provider is reachable. The generator is seeded from the current
// calendar date so repeated calls on the same day return a day-stable
// series.
type SyntheticGenerator struct {
	bars int
	now  func() time.Time
}

// NewSyntheticGenerator creates a generator emitting the given number of
// daily bars.
func NewSyntheticGenerator(bars int) *SyntheticGenerator {
	return &SyntheticGenerator{bars: bars, now: time.Now}
}

// Generate builds a daily candle series ending at referencePrice. The
// price history is walked backwards from the reference so the final
// candle always closes exactly at it.
func (g *SyntheticGenerator) Generate(symbol, category string, referencePrice float64) []models.Candle {
	now := g.now()
	rng := rand.New(rand.NewSource(daySeed(now)))

	volatility, ok := categoryVolatility[category]
	if !ok {
		volatility = categoryVolatility[CategoryCrypto]
	}

	// Build the price history backwards: each step derives the prior
	// day's price by dividing out a random daily return.
	prices := make([]float64, g.bars)
	prices[g.bars-1] = referencePrice
	for i := g.bars - 2; i >= 0; i-- {
		change := randomChange(rng, volatility)
		prices[i] = prices[i+1] / (1 + change)
	}

	baseVolume := categoryBaseVolume[category]
	if baseVolume == 0 {
		baseVolume = categoryBaseVolume[CategoryCrypto]
	}

	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, g.bars)

	for i := 0; i < g.bars; i++ {
		open := prices[i]

		var close float64
		if i == g.bars-1 {
			close = referencePrice
		} else {
			close = open + (prices[i+1]-open)*0.7
			close *= 1 + randomChange(rng, volatility*0.3)
		}

		high := math.Max(open, close) * (1 + math.Abs(randomChange(rng, volatility*0.4)))
		low := math.Min(open, close) * (1 - math.Abs(randomChange(rng, volatility*0.4)))

		if high < math.Max(open, close) {
			high = math.Max(open, close)
		}
		if low > math.Min(open, close) {
			low = math.Min(open, close)
		}
		if high < low {
			high, low = low, high
		}

		precision := pricePrecision(category, open)
		volume := float64(baseVolume) * (0.7 + 0.6*rng.Float64())

		candles[i] = models.Candle{
			Time:   day.AddDate(0, 0, -(g.bars - 1 - i)).Unix(),
			Open:   roundTo(open, precision),
			High:   roundTo(high, precision),
			Low:    roundTo(low, precision),
			Close:  roundTo(close, precision),
			Volume: int64(volume),
		}
	}

	return candles
}

// daySeed derives the RNG seed from the calendar date as YYYYMMDD.
func daySeed(t time.Time) int64 {
	return int64(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

// randomChange draws an approximately normally distributed fractional
// return via the Box-Muller transform, scaled by volatility.
func randomChange(rng *rand.Rand, volatility float64) float64 {
	u1 := rng.Float64()
	if u1 < 1e-10 {
		u1 = 1e-10
	}
	u2 := rng.Float64()

	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2) * volatility
}

// pricePrecision returns the decimal places for a category and price
// tier: forex quotes at 5, stocks at 4 below 10 else 2, crypto at 2/3/5
// depending on magnitude.
func pricePrecision(category string, price float64) int {
	switch category {
	case CategoryForex:
		return 5
	case CategoryStock:
		if price < 10 {
			return 4
		}
		return 2
	default:
		switch {
		case price >= 100:
			return 2
		case price >= 1:
			return 3
		default:
			return 5
		}
	}
}

func roundTo(value float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(value*factor) / factor
}
