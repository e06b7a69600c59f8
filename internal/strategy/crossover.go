package strategy

import (
	"fmt"

	"tradesim-go/internal/indicator"
	"tradesim-go/internal/signal"
)

// Crossover holds a long position while the short SMA is above the long SMA.
type Crossover struct {
	short int
	long  int
}

// NewCrossover builds a moving-average crossover; defaults are 40/100.
func NewCrossover(short, long int) *Crossover {
	if short <= 0 {
		short = 40
	}
	if long <= 0 {
		long = 100
	}
	return &Crossover{short: short, long: long}
}

// Name returns the identifier for logging.
func (c *Crossover) Name() string { return fmt.Sprintf("sma_%d_%d", c.short, c.long) }

// Plan emits Buy on an upward cross and Sell on a downward cross.
func (c *Crossover) Plan(in Inputs) (Plan, error) {
	if len(in.Closes) == 0 {
		return Plan{}, fmt.Errorf("%w: closes", ErrMissingInput)
	}
	position, warmup := c.positions(in.Closes)
	return Plan{Actions: positionActions(position, warmup), Warmup: warmup}, nil
}

func (c *Crossover) positions(closes []float64) ([]bool, int) {
	shortLine := indicator.SMA(closes, c.short)
	longLine := indicator.SMA(closes, c.long)
	warmup := indicator.JointWarmup(shortLine, longLine)
	if warmup > len(closes) {
		warmup = len(closes)
	}
	position := make([]bool, len(closes))
	for i := warmup; i < len(closes); i++ {
		position[i] = shortLine.Values[i] > longLine.Values[i]
	}
	return position, warmup
}

// OnlineCrossover is the bar-by-bar form of Crossover used on live streams.
type OnlineCrossover struct {
	short   *indicator.RollingMean
	long    *indicator.RollingMean
	primed  bool
	holding bool
}

// NewOnlineCrossover builds a streaming crossover with the same defaults as NewCrossover.
func NewOnlineCrossover(short, long int) *OnlineCrossover {
	c := NewCrossover(short, long)
	return &OnlineCrossover{
		short: indicator.NewRollingMean(c.short),
		long:  indicator.NewRollingMean(c.long),
	}
}

// Push consumes one close and returns the action for that bar.
func (o *OnlineCrossover) Push(px float64) signal.Action {
	s, okShort := o.short.Push(px)
	l, okLong := o.long.Push(px)
	if !okShort || !okLong {
		return signal.Hold
	}
	position := s > l
	if !o.primed {
		o.primed = true
		o.holding = position
		return signal.Hold
	}
	prev := o.holding
	o.holding = position
	switch {
	case position && !prev:
		return signal.Buy
	case !position && prev:
		return signal.Sell
	}
	return signal.Hold
}
