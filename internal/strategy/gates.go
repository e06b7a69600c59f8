package strategy

import (
	"fmt"

	"tradesim-go/internal/signal"
)

// SentimentGate is a crossover whose long position is forced flat on days
// when sentiment falls below the threshold. Positive sentiment never blocks
// a sell; the gate only acts on the long side.
type SentimentGate struct {
	crossover *Crossover
	threshold float64
}

// NewSentimentGate builds the gated crossover; the default threshold is -0.2.
func NewSentimentGate(short, long int, threshold float64) *SentimentGate {
	if threshold == 0 {
		threshold = -0.2
	}
	return &SentimentGate{crossover: NewCrossover(short, long), threshold: threshold}
}

// Name returns the identifier for logging.
func (g *SentimentGate) Name() string {
	return fmt.Sprintf("%s_sentiment_%.2f", g.crossover.Name(), g.threshold)
}

// Threshold returns the gating level.
func (g *SentimentGate) Threshold() float64 { return g.threshold }

// Plan applies the gate to the position before differencing it into actions.
func (g *SentimentGate) Plan(in Inputs) (Plan, error) {
	if len(in.Closes) == 0 {
		return Plan{}, fmt.Errorf("%w: closes", ErrMissingInput)
	}
	if in.Sentiment == nil {
		return Plan{}, fmt.Errorf("%w: sentiment", ErrMissingInput)
	}
	if len(in.Sentiment) != len(in.Closes) {
		return Plan{}, fmt.Errorf("%w: %d sentiment values for %d closes", ErrMisaligned, len(in.Sentiment), len(in.Closes))
	}
	position, warmup := g.crossover.positions(in.Closes)
	for i := warmup; i < len(position); i++ {
		if in.Sentiment[i] < g.threshold {
			position[i] = false
		}
	}
	return Plan{Actions: positionActions(position, warmup), Warmup: warmup}, nil
}

// Classifier maps a model's probability of an up move to actions: at or above
// the threshold is Buy, below it is the configured down action.
type Classifier struct {
	threshold  float64
	downAction signal.Action
}

// NewClassifier builds the model-driven strategy. Threshold defaults to 0.5;
// the down action defaults to Sell and may only be Sell or Hold.
func NewClassifier(threshold float64, downAction signal.Action) *Classifier {
	if threshold <= 0 || threshold >= 1 {
		threshold = 0.5
	}
	if downAction != signal.Hold {
		downAction = signal.Sell
	}
	return &Classifier{threshold: threshold, downAction: downAction}
}

// Name returns the identifier for logging.
func (c *Classifier) Name() string {
	return fmt.Sprintf("classifier_%.2f_%s", c.threshold, c.downAction)
}

// Plan thresholds each defined probability.
func (c *Classifier) Plan(in Inputs) (Plan, error) {
	if len(in.Closes) == 0 {
		return Plan{}, fmt.Errorf("%w: closes", ErrMissingInput)
	}
	probs := in.Probabilities
	if probs.Len() == 0 {
		return Plan{}, fmt.Errorf("%w: probabilities", ErrMissingInput)
	}
	if probs.Len() != len(in.Closes) {
		return Plan{}, fmt.Errorf("%w: %d probabilities for %d closes", ErrMisaligned, probs.Len(), len(in.Closes))
	}
	actions := make([]signal.Action, len(in.Closes))
	for i := range actions {
		p, ok := probs.At(i)
		if !ok {
			continue
		}
		if p >= c.threshold {
			actions[i] = signal.Buy
		} else {
			actions[i] = c.downAction
		}
	}
	warmup := probs.Warmup
	if warmup > len(actions) {
		warmup = len(actions)
	}
	return Plan{Actions: actions, Warmup: warmup}, nil
}
