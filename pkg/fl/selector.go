package fl

import (
	"fmt"
	"math"
	"sync"
)

type Comparator string

const (
	Max Comparator = "max"
	Min Comparator = "min"
)

type TieBreak string

const (
	Earliest TieBreak = "earliest"
	Latest   TieBreak = "latest"
)

// Selector keeps the round record with the best metric seen so far.
type Selector struct {
	mu          sync.RWMutex
	comparator  Comparator
	tieBreak    TieBreak
	best        RoundRecord
	initialized bool
}

func NewSelector(comparator Comparator, tieBreak TieBreak) (*Selector, error) {
	switch comparator {
	case "":
		comparator = Max
	case Max, Min:
	default:
		return nil, fmt.Errorf("%w: comparator %q", ErrUnknownStrategy, comparator)
	}

	switch tieBreak {
	case "":
		tieBreak = Earliest
	case Earliest, Latest:
	default:
		return nil, fmt.Errorf("%w: tie break %q", ErrUnknownStrategy, tieBreak)
	}

	return &Selector{
		comparator: comparator,
		tieBreak:   tieBreak,
	}, nil
}

func (s *Selector) Consider(rec RoundRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized || s.better(rec) {
		s.best = rec
		s.initialized = true
	}
}

func (s *Selector) Best() (RoundRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.initialized {
		return RoundRecord{}, ErrUninitializedSelector
	}

	return s.best, nil
}

func (s *Selector) better(rec RoundRecord) bool {
	switch {
	case math.IsNaN(rec.Metric):
		return false
	case math.IsNaN(s.best.Metric):
		return true
	case rec.Metric == s.best.Metric:
		if s.tieBreak == Latest {
			return rec.Round > s.best.Round
		}

		return rec.Round < s.best.Round
	case s.comparator == Min:
		return rec.Metric < s.best.Metric
	default:
		return rec.Metric > s.best.Metric
	}
}
