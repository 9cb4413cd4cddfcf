// Package analytics turns an equity curve and a trade log into summary
// performance statistics. It runs once per backtest, after simulation.
package analytics

import (
	"math"

	"vecbt/internal/domain"
)

// DefaultPeriodsPerYear annualises per-bar ratios as if bars were trading
// days.
const DefaultPeriodsPerYear = 252

// Options configures ratio computation.
type Options struct {
	// RiskFreeRate is the annual risk-free rate, converted to a per-period
	// rate before use.
	RiskFreeRate   float64 `yaml:"risk_free_rate"`
	PeriodsPerYear float64 `yaml:"periods_per_year"`
}

// Stats is the full performance report of one run.
type Stats struct {
	InitialCapital float64
	FinalCapital   float64
	TotalReturn    float64
	TotalReturnPct float64
	SharpeRatio    float64
	SortinoRatio   float64
	MaxDrawdown    float64
	MaxDrawdownPct float64
	Trades         TradeSummary
}

// TradeSummary aggregates closed round trips.
type TradeSummary struct {
	Total        int
	Wins         int
	Losses       int
	WinRate      float64 // fraction in [0, 1]
	ProfitFactor float64
	GrossProfit  float64
	GrossLoss    float64
	AvgWin       float64
	AvgLoss      float64
	Commission   float64
}

// Returns converts an equity series into simple per-period returns. A
// non-positive prior value contributes a zero return.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev > 0 {
			out[i-1] = (equity[i] - prev) / prev
		}
	}
	return out
}

// Sharpe returns the annualised Sharpe ratio of per-period returns using the
// sample standard deviation. Fewer than two returns or zero variance give 0.
func Sharpe(returns []float64, riskFree, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	periodsPerYear = orDefault(periodsPerYear)
	rf := riskFree / periodsPerYear

	excess := mean(returns) - rf
	var variance float64
	for _, r := range returns {
		d := r - rf - excess
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return excess / std * math.Sqrt(periodsPerYear)
}

// Sortino is Sharpe with the downside deviation in place of the standard
// deviation. Only returns below the risk-free rate contribute to the
// deviation but every period counts toward the denominator. With no downside
// at all the ratio is +Inf when the mean beats the risk-free rate and 0
// otherwise.
func Sortino(returns []float64, riskFree, periodsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	periodsPerYear = orDefault(periodsPerYear)
	rf := riskFree / periodsPerYear

	var downside float64
	for _, r := range returns {
		if d := r - rf; d < 0 {
			downside += d * d
		}
	}
	excess := mean(returns) - rf
	dd := math.Sqrt(downside / float64(len(returns)))
	if dd == 0 {
		if excess > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return excess / dd * math.Sqrt(periodsPerYear)
}

// MaxDrawdown returns the largest peak-to-trough decline of equity,
// absolute and as a percentage of the peak.
func MaxDrawdown(equity []float64) (float64, float64) {
	if len(equity) == 0 {
		return 0, 0
	}
	peak := equity[0]
	var maxAbs, maxPct float64
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		dd := peak - e
		if dd > maxAbs {
			maxAbs = dd
		}
		if peak > 0 {
			if pct := dd / peak * 100; pct > maxPct {
				maxPct = pct
			}
		}
	}
	return maxAbs, maxPct
}

// TradeStats summarises a trade log. ProfitFactor is gross profit over
// gross loss; with no losing trades it is +Inf when there was any profit and
// 0 otherwise.
func TradeStats(trades []domain.Trade) TradeSummary {
	var s TradeSummary
	s.Total = len(trades)
	for _, t := range trades {
		s.Commission += t.Commission
		switch {
		case t.PnL > 0:
			s.Wins++
			s.GrossProfit += t.PnL
		case t.PnL < 0:
			s.Losses++
			s.GrossLoss -= t.PnL
		}
	}
	if s.Total > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Total)
	}
	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = s.GrossLoss / float64(s.Losses)
	}
	switch {
	case s.GrossLoss > 0:
		s.ProfitFactor = s.GrossProfit / s.GrossLoss
	case s.GrossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	}
	return s
}

// Compute builds Stats from a sampled equity curve and the trade log.
// initial is the starting capital; the final capital is the last sample.
func Compute(initial float64, equity []domain.EquitySnapshot, trades []domain.Trade, opts Options) Stats {
	values := make([]float64, len(equity))
	for i, e := range equity {
		values[i] = e.Equity
	}

	final := initial
	if len(values) > 0 {
		final = values[len(values)-1]
	}

	st := Stats{
		InitialCapital: initial,
		FinalCapital:   final,
		TotalReturn:    final - initial,
		Trades:         TradeStats(trades),
	}
	if initial > 0 {
		st.TotalReturnPct = (final - initial) / initial * 100
	}

	rets := Returns(values)
	st.SharpeRatio = Sharpe(rets, opts.RiskFreeRate, opts.PeriodsPerYear)
	st.SortinoRatio = Sortino(rets, opts.RiskFreeRate, opts.PeriodsPerYear)
	st.MaxDrawdown, st.MaxDrawdownPct = MaxDrawdown(values)
	return st
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func orDefault(periodsPerYear float64) float64 {
	if periodsPerYear <= 0 {
		return DefaultPeriodsPerYear
	}
	return periodsPerYear
}
