package sweep

import (
	"fmt"
	"math"

	"vecbt/internal/engine"
)

// Objective ranks completed runs. Higher scores are better.
type Objective string

const (
	ObjectiveSharpe       Objective = "sharpe"
	ObjectiveSortino      Objective = "sortino"
	ObjectiveReturn       Objective = "return"
	ObjectiveProfitFactor Objective = "profit_factor"
	ObjectiveWinRate      Objective = "win_rate"
	// ObjectiveDrawdown prefers the smallest max drawdown percentage.
	ObjectiveDrawdown Objective = "drawdown"
)

// ParseObjective validates s. The empty string selects sharpe.
func ParseObjective(s string) (Objective, error) {
	switch o := Objective(s); o {
	case "":
		return ObjectiveSharpe, nil
	case ObjectiveSharpe, ObjectiveSortino, ObjectiveReturn, ObjectiveProfitFactor, ObjectiveWinRate, ObjectiveDrawdown:
		return o, nil
	default:
		return "", fmt.Errorf("unknown objective %q", s)
	}
}

// Score returns the objective value of res.
func (o Objective) Score(res *engine.Result) float64 {
	switch o {
	case ObjectiveSortino:
		return res.SortinoRatio
	case ObjectiveReturn:
		return res.TotalReturnPct
	case ObjectiveProfitFactor:
		return res.ProfitFactor
	case ObjectiveWinRate:
		return res.WinRate
	case ObjectiveDrawdown:
		return -res.MaxDrawdownPct
	default:
		return res.SharpeRatio
	}
}

// Best returns the successful outcome with the highest score. Ties keep the
// lowest index. ok is false when no outcome succeeded.
func Best(outcomes []Outcome, objective Objective) (best Outcome, ok bool) {
	bestScore := math.Inf(-1)
	for _, o := range outcomes {
		if o.Err != nil || o.Result == nil {
			continue
		}
		s := objective.Score(o.Result)
		if math.IsNaN(s) {
			continue
		}
		if !ok || s > bestScore {
			best, bestScore, ok = o, s, true
		}
	}
	return best, ok
}
