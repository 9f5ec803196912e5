// README: Classification quality metrics for a scored, labelled batch.
package training

import (
	"fmt"
	"math"
	"sort"

	"farebid/internal/modules/estimator"
	"farebid/internal/modules/predictor"
)

type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

func (c Confusion) Total() int { return c.TP + c.FP + c.TN + c.FN }

type Report struct {
	Rows      int       `json:"rows"`
	Threshold float64   `json:"threshold"`
	Confusion Confusion `json:"confusion"`
	Accuracy  float64   `json:"accuracy"`
	Precision float64   `json:"precision"`
	Recall    float64   `json:"recall"`
	F1        float64   `json:"f1"`
	// ROCAUC is NaN when only one class is present.
	ROCAUC float64 `json:"roc_auc"`
}

// Evaluate thresholds probs with the same rule the predictor uses.
func Evaluate(labels []int, probs []float64, threshold float64) (Report, error) {
	if len(labels) != len(probs) {
		return Report{}, fmt.Errorf("%w: %d labels, %d probabilities", estimator.ErrLengthMismatch, len(labels), len(probs))
	}
	r := Report{Rows: len(labels), Threshold: threshold}
	for i, y := range labels {
		pred := predictor.Decide(probs[i], threshold)
		switch {
		case y == 1 && pred == 1:
			r.Confusion.TP++
		case y == 0 && pred == 1:
			r.Confusion.FP++
		case y == 0 && pred == 0:
			r.Confusion.TN++
		default:
			r.Confusion.FN++
		}
	}
	c := r.Confusion
	r.Accuracy = ratio(c.TP+c.TN, c.Total())
	r.Precision = ratio(c.TP, c.TP+c.FP)
	r.Recall = ratio(c.TP, c.TP+c.FN)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	}
	r.ROCAUC = ROCAUC(labels, probs)
	return r, nil
}

// ROCAUC is the Mann-Whitney estimate with average ranks for ties.
func ROCAUC(labels []int, probs []float64) float64 {
	n := len(labels)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	var pos, neg int
	var rankSum float64
	for i := 0; i < n; {
		j := i
		for j < n && probs[idx[j]] == probs[idx[i]] {
			j++
		}
		// ranks i+1..j share their average
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			if labels[idx[k]] == 1 {
				rankSum += avg
			}
		}
		i = j
	}
	for _, y := range labels {
		if y == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return math.NaN()
	}
	return (rankSum - float64(pos*(pos+1))/2) / float64(pos*neg)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
