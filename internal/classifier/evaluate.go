package classifier

import (
	"fmt"

	"tradesim-go/internal/indicator"
)

// Labels thresholds probabilities into 0/1 predictions.
func Labels(probs []float64, threshold float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p >= threshold {
			out[i] = 1
		}
	}
	return out
}

// ProbabilityLine places the test-row probabilities onto a line covering
// [0, w.End); rows before TestStart are undefined.
func ProbabilityLine(w Window, probs []float64) (indicator.Line, error) {
	if len(probs) != w.Test() {
		return indicator.Line{}, fmt.Errorf("%d probabilities for %d test rows", len(probs), w.Test())
	}
	values := make([]float64, w.End)
	copy(values[w.TestStart:], probs)
	return indicator.Line{Values: values, Warmup: w.TestStart}, nil
}

// Evaluation is a binary confusion matrix with derived accuracy.
type Evaluation struct {
	N        int     `json:"n"`
	Accuracy float64 `json:"accuracy"`
	TN       int     `json:"tn"`
	FP       int     `json:"fp"`
	FN       int     `json:"fn"`
	TP       int     `json:"tp"`
}

// Confusion returns [[TN, FP], [FN, TP]], rows actual, columns predicted.
func (e Evaluation) Confusion() [2][2]int {
	return [2][2]int{{e.TN, e.FP}, {e.FN, e.TP}}
}

func (e Evaluation) String() string {
	return fmt.Sprintf("accuracy=%.4f n=%d confusion=[[%d %d] [%d %d]]", e.Accuracy, e.N, e.TN, e.FP, e.FN, e.TP)
}

// Evaluate compares predicted and actual 0/1 labels.
func Evaluate(pred, actual []int) (Evaluation, error) {
	if len(pred) != len(actual) {
		return Evaluation{}, fmt.Errorf("evaluate: %d predictions for %d targets", len(pred), len(actual))
	}
	var e Evaluation
	for i := range pred {
		switch {
		case pred[i] == 1 && actual[i] == 1:
			e.TP++
		case pred[i] == 1:
			e.FP++
		case actual[i] == 1:
			e.FN++
		default:
			e.TN++
		}
	}
	e.N = len(pred)
	if e.N > 0 {
		e.Accuracy = float64(e.TP+e.TN) / float64(e.N)
	}
	return e, nil
}
