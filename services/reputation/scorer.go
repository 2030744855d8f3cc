package reputation

import "boostfix/pkg/config"

const (
	Min     = 0
	Max     = 100
	Default = 50
)

type Outcome int

const (
	Success Outcome = iota + 1
	Failure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Scorer maps verification outcomes to reputation deltas. It holds no state;
// the score itself lives on the user's account in the ledger.
type Scorer struct {
	SuccessDelta int
	FailureDelta int
}

func NewScorer() Scorer {
	return Scorer{SuccessDelta: 1, FailureDelta: -5}
}

func Provide(cfg *config.Config) Scorer {
	s := NewScorer()
	if cfg.Engine.SuccessDelta != 0 {
		s.SuccessDelta = cfg.Engine.SuccessDelta
	}
	if cfg.Engine.FailureDelta != 0 {
		s.FailureDelta = cfg.Engine.FailureDelta
	}
	return s
}

func (s Scorer) Delta(o Outcome) int {
	switch o {
	case Success:
		return s.SuccessDelta
	case Failure:
		return s.FailureDelta
	default:
		return 0
	}
}

// Apply adds delta to score and clamps the result into [Min, Max].
func Apply(score, delta int) int {
	return Clamp(score + delta)
}

func Clamp(score int) int {
	if score < Min {
		return Min
	}
	if score > Max {
		return Max
	}
	return score
}
