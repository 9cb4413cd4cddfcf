package broker

import (
	"fmt"

	"vecbt/internal/dataset"
	"vecbt/internal/domain"
)

// PositionState is the simulator's single-position state.
type PositionState int

const (
	Flat PositionState = iota
	InLong
	InShort
)

func (s PositionState) String() string {
	switch s {
	case InLong:
		return "long"
	case InShort:
		return "short"
	default:
		return "flat"
	}
}

// Outcome is the product of one simulated run.
type Outcome struct {
	Trades         []domain.Trade
	Equity         []domain.EquitySnapshot
	InitialCapital float64
	FinalCapital   float64
	PeakEquity     float64
	MaxDrawdown    float64
	MaxDrawdownPct float64
}

// Simulator walks a dataset and its trigger signals bar by bar, keeping one
// position at a time. A Simulator is single-use scratch state: create one
// per run and never share it between goroutines.
type Simulator struct {
	cfg Config

	cash            float64
	state           PositionState
	size            float64
	entryPrice      float64
	entryCommission float64
	entryIndex      int
	entryTime       int64

	trades []domain.Trade
	equity []domain.EquitySnapshot
	dd     DrawdownTracker

	progressEvery int
	progress      func(processed int)
}

// NewSimulator creates a flat Simulator holding cfg.InitialCapital in cash.
// cfg should already have passed Validate.
func NewSimulator(cfg Config) *Simulator {
	cfg = cfg.WithDefaults()
	return &Simulator{
		cfg:  cfg,
		cash: cfg.InitialCapital,
	}
}

// Name returns "simulator".
func (s *Simulator) Name() string {
	return "simulator"
}

// OnProgress registers fn to be called every `every` processed bars.
func (s *Simulator) OnProgress(every int, fn func(processed int)) {
	s.progressEvery = every
	s.progress = fn
}

// Run replays ds against signals, which must be aligned with it. Only Long
// and Short directions act; everything else is a position no-op. An open
// position is closed at the final close so the run's return is always
// realised.
func (s *Simulator) Run(ds *dataset.Dataset, signals []domain.Signal) (*Outcome, error) {
	n := ds.Len()
	if len(signals) != n {
		return nil, fmt.Errorf("signal array has %d entries, dataset has %d bars", len(signals), n)
	}

	every := s.cfg.EquitySampleEvery
	s.equity = make([]domain.EquitySnapshot, 0, n/every+1)

	closes := ds.Closes
	ts := ds.Timestamps
	for i := 0; i < n; i++ {
		price := closes[i]
		last := i == n-1

		// Entries on the final bar would be force-closed immediately.
		switch dir := signals[i].Direction; {
		case dir == domain.Long && s.state == Flat && !last:
			s.open(i, ts[i], price, InLong)
		case dir == domain.Short && s.state == InLong:
			s.close(i, ts[i], price*(1-s.cfg.Slippage))
		case dir == domain.Short && s.state == Flat && s.cfg.AllowShort && !last:
			s.open(i, ts[i], price, InShort)
		case dir == domain.Long && s.state == InShort:
			s.close(i, ts[i], price*(1+s.cfg.Slippage))
		}

		if last && s.state != Flat {
			s.close(i, ts[i], price)
		}

		eq := s.markToMarket(price)
		dd, ddPct := s.dd.Update(eq)
		if i%every == 0 || last {
			s.equity = append(s.equity, domain.EquitySnapshot{
				Timestamp:   ts[i],
				Equity:      eq,
				Drawdown:    dd,
				DrawdownPct: ddPct,
			})
		}

		if s.progress != nil && s.progressEvery > 0 && (i+1)%s.progressEvery == 0 {
			s.progress(i + 1)
		}
	}

	maxDD, maxDDPct := s.dd.Max()
	peak := s.dd.Peak()
	if n == 0 {
		peak = s.cfg.InitialCapital
	}
	return &Outcome{
		Trades:         s.trades,
		Equity:         s.equity,
		InitialCapital: s.cfg.InitialCapital,
		FinalCapital:   s.cash,
		PeakEquity:     peak,
		MaxDrawdown:    maxDD,
		MaxDrawdownPct: maxDDPct,
	}, nil
}

// State returns the current position state.
func (s *Simulator) State() PositionState {
	return s.state
}

func (s *Simulator) markToMarket(price float64) float64 {
	switch s.state {
	case InLong:
		return s.cash + s.size*price
	case InShort:
		return s.cash - s.size*price
	default:
		return s.cash
	}
}

// open enters a position sized from available cash. Long entries pay
// close*(1+slippage), short entries receive close*(1-slippage).
func (s *Simulator) open(i int, ts int64, price float64, side PositionState) {
	fill := price * (1 + s.cfg.Slippage)
	if side == InShort {
		fill = price * (1 - s.cfg.Slippage)
	}
	budget := s.cash * s.cfg.PositionSizePct
	if budget <= 0 || fill <= 0 {
		return
	}

	size := budget / (fill * (1 + s.cfg.Commission))
	commission := size * fill * s.cfg.Commission
	if side == InLong {
		s.cash -= size*fill + commission
	} else {
		s.cash += size*fill - commission
	}

	s.state = side
	s.size = size
	s.entryPrice = fill
	s.entryCommission = commission
	s.entryIndex = i
	s.entryTime = ts
}

// close exits the open position at fill and appends the round trip to the
// trade log.
func (s *Simulator) close(i int, ts int64, fill float64) {
	commission := s.size * fill * s.cfg.Commission

	var pnl float64
	side := domain.PositionSideLong
	if s.state == InLong {
		s.cash += s.size*fill - commission
		pnl = (fill-s.entryPrice)*s.size - s.entryCommission - commission
	} else {
		side = domain.PositionSideShort
		s.cash -= s.size*fill + commission
		pnl = (s.entryPrice-fill)*s.size - s.entryCommission - commission
	}

	basis := s.entryPrice*s.size + s.entryCommission
	var pnlPct float64
	if basis > 0 {
		pnlPct = pnl / basis * 100
	}

	s.trades = append(s.trades, domain.Trade{
		EntryIndex: s.entryIndex,
		ExitIndex:  i,
		EntryTime:  s.entryTime,
		ExitTime:   ts,
		EntryPrice: s.entryPrice,
		ExitPrice:  fill,
		Side:       side,
		Size:       s.size,
		PnL:        pnl,
		PnLPct:     pnlPct,
		Commission: s.entryCommission + commission,
	})

	s.state = Flat
	s.size = 0
	s.entryPrice = 0
	s.entryCommission = 0
}
