package rewards

import (
	"math"
	"math/big"
	"strconv"

	"github.com/holiman/uint256"

	"github.com/scoutledger/backend/pkg/config"
	pkgerrors "github.com/scoutledger/backend/pkg/errors"
	"github.com/scoutledger/backend/pkg/isoweek"
)

// DefaultWeeklyPercentages is the front-loaded allocation schedule of a season.
var DefaultWeeklyPercentages = []float64{5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 10}

// Season is a thirteen week reward epoch identified by its first ISO week.
type Season struct {
	Start           isoweek.Week
	Percentages     []float64
	Decay           float64
	AllocatedPoints float64
	AllocatedTokens *uint256.Int
}

// NewSeason builds the active season from configuration.
func NewSeason(cfg config.SeasonConfig) (*Season, error) {
	start, err := isoweek.Parse(cfg.StartWeek)
	if err != nil {
		return nil, err
	}
	pcts := cfg.WeeklyPercentages
	if len(pcts) == 0 {
		pcts = DefaultWeeklyPercentages
	}
	if len(pcts) != config.SeasonWeeks {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "season schedule needs %d weeks, got %d", config.SeasonWeeks, len(pcts))
	}
	var sum float64
	for _, p := range pcts {
		if p < 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "negative weekly percentage %v", p)
		}
		sum += p
	}
	if math.Abs(sum-100) > 1e-9 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "weekly percentages sum to %v, want 100", sum)
	}

	units, err := cfg.AllocatedTokenUnits()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "allocated tokens")
	}
	tokens, overflow := uint256.FromBig(units.BigInt())
	if overflow {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocated tokens overflow 256 bits")
	}
	decay := cfg.DecayRate
	if decay == 0 {
		decay = DefaultDecay
	}
	return &Season{
		Start:           start,
		Percentages:     append([]float64(nil), pcts...),
		Decay:           decay,
		AllocatedPoints: cfg.AllocatedPoints,
		AllocatedTokens: tokens,
	}, nil
}

// ID is the season key stored on every row, the start week string.
func (s *Season) ID() string {
	return s.Start.String()
}

func (s *Season) End() isoweek.Week {
	return s.Start.Add(len(s.Percentages) - 1)
}

// WeekIndex returns the zero-based position of week in the season.
func (s *Season) WeekIndex(week isoweek.Week) (int, error) {
	idx := week.Sub(s.Start)
	if idx < 0 || idx >= len(s.Percentages) {
		return 0, pkgerrors.Newf(pkgerrors.CodeValidation, "week %s is outside season %s", week, s.ID())
	}
	return idx, nil
}

// Contains reports whether week falls inside the season.
func (s *Season) Contains(week isoweek.Week) bool {
	_, err := s.WeekIndex(week)
	return err == nil
}

// Weeks lists every week of the season in order.
func (s *Season) Weeks() []isoweek.Week {
	return s.Start.Range(len(s.Percentages))
}

func (s *Season) percentage(week isoweek.Week) (*big.Rat, error) {
	idx, err := s.WeekIndex(week)
	if err != nil {
		return nil, err
	}
	pct, ok := new(big.Rat).SetString(strconv.FormatFloat(s.Percentages[idx], 'f', -1, 64))
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid percentage %v", s.Percentages[idx])
	}
	return pct.Quo(pct, big.NewRat(100, 1)), nil
}

// WeeklyPointsBudget returns the points allocated to week.
func (s *Season) WeeklyPointsBudget(week isoweek.Week) (float64, error) {
	pct, err := s.percentage(week)
	if err != nil {
		return 0, err
	}
	return Points{}.Scale(s.AllocatedPoints, pct)
}

// WeeklyTokenBudget returns the token base units allocated to week, truncated.
func (s *Season) WeeklyTokenBudget(week isoweek.Week) (*uint256.Int, error) {
	pct, err := s.percentage(week)
	if err != nil {
		return nil, err
	}
	return Tokens{}.Scale(s.AllocatedTokens, pct)
}
