// Package sweep expands parameter grids and runs one backtest per
// combination across a bounded worker pool.
package sweep

import (
	"fmt"
	"math"
)

// ParamType selects how a Param enumerates its values.
type ParamType string

const (
	ParamInt    ParamType = "int"
	ParamFloat  ParamType = "float"
	ParamBool   ParamType = "bool"
	ParamChoice ParamType = "choice"
)

// Param is one swept dimension. Numeric params step from Min to Max
// inclusive; an explicit Values list overrides the range for any type.
type Param struct {
	Name   string    `yaml:"name"`
	Type   ParamType `yaml:"type"`
	Min    float64   `yaml:"min"`
	Max    float64   `yaml:"max"`
	Step   float64   `yaml:"step"`
	Values []any     `yaml:"values"`
}

// Grid is the cartesian product of its params.
type Grid []Param

// stepEpsilon absorbs float error when a range ends exactly on a step.
const stepEpsilon = 1e-9

// Count returns how many values p enumerates.
func (p Param) Count() (int, error) {
	if p.Name == "" {
		return 0, fmt.Errorf("param without a name")
	}
	if len(p.Values) > 0 {
		return len(p.Values), nil
	}

	switch p.Type {
	case ParamBool:
		return 2, nil
	case ParamChoice:
		return 0, fmt.Errorf("param %s: choice needs values", p.Name)
	case ParamInt, ParamFloat:
		if p.Max < p.Min {
			return 0, fmt.Errorf("param %s: max %v below min %v", p.Name, p.Max, p.Min)
		}
		step := p.step()
		if step <= 0 {
			return 0, fmt.Errorf("param %s: step must be positive", p.Name)
		}
		if p.Type == ParamInt {
			lo, hi, st := int(math.Round(p.Min)), int(math.Round(p.Max)), int(math.Round(step))
			if st < 1 {
				return 0, fmt.Errorf("param %s: int step must be at least 1", p.Name)
			}
			return (hi-lo)/st + 1, nil
		}
		return int(math.Floor((p.Max-p.Min)/step+stepEpsilon)) + 1, nil
	default:
		return 0, fmt.Errorf("param %s: unknown type %q", p.Name, p.Type)
	}
}

// Points enumerates the values of p in order.
func (p Param) Points() ([]any, error) {
	n, err := p.Count()
	if err != nil {
		return nil, err
	}
	if len(p.Values) > 0 {
		return append([]any(nil), p.Values...), nil
	}

	out := make([]any, 0, n)
	switch p.Type {
	case ParamBool:
		out = append(out, false, true)
	case ParamInt:
		lo, st := int(math.Round(p.Min)), int(math.Round(p.step()))
		for k := 0; k < n; k++ {
			out = append(out, lo+k*st)
		}
	case ParamFloat:
		for k := 0; k < n; k++ {
			out = append(out, p.Min+float64(k)*p.step())
		}
	}
	return out, nil
}

func (p Param) step() float64 {
	if p.Step == 0 {
		return 1
	}
	return p.Step
}

// CountCombinations returns the size of the grid without expanding it. An
// empty grid has one (empty) combination.
func CountCombinations(grid Grid) (int, error) {
	if err := checkNames(grid); err != nil {
		return 0, err
	}
	total := 1
	for _, p := range grid {
		n, err := p.Count()
		if err != nil {
			return 0, err
		}
		total *= n
	}
	return total, nil
}

// GenerateAll expands the grid. The last param varies fastest.
func GenerateAll(grid Grid) ([]map[string]any, error) {
	total, err := CountCombinations(grid)
	if err != nil {
		return nil, err
	}

	points := make([][]any, len(grid))
	for i, p := range grid {
		if points[i], err = p.Points(); err != nil {
			return nil, err
		}
	}

	out := make([]map[string]any, 0, total)
	idx := make([]int, len(grid))
	for c := 0; c < total; c++ {
		combo := make(map[string]any, len(grid))
		for i, p := range grid {
			combo[p.Name] = points[i][idx[i]]
		}
		out = append(out, combo)

		for i := len(grid) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(points[i]) {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

func checkNames(grid Grid) error {
	seen := make(map[string]bool, len(grid))
	for _, p := range grid {
		if seen[p.Name] {
			return fmt.Errorf("param %s listed twice", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}
