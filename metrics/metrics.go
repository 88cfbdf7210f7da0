// Package metrics accumulates confusion-matrix statistics for
// segmentation outputs and derives the usual per-class scores.
package metrics

import (
	"fmt"
	"strings"
)

// Confusion is a square confusion matrix over class indices.
// Rows are truth, columns are prediction.
type Confusion struct {
	classes int
	counts  []int64
}

// NewConfusion creates a confusion matrix for the given class count.
func NewConfusion(classes int) *Confusion {
	if classes < 2 {
		classes = 2
	}
	return &Confusion{
		classes: classes,
		counts:  make([]int64, classes*classes),
	}
}

// Classes returns the class count.
func (c *Confusion) Classes() int { return c.classes }

// Add records one observation. Out-of-range indices are ignored.
func (c *Confusion) Add(truth, pred int) {
	if truth < 0 || truth >= c.classes || pred < 0 || pred >= c.classes {
		return
	}
	c.counts[truth*c.classes+pred]++
}

// Count returns the number of observations with the given truth and
// prediction.
func (c *Confusion) Count(truth, pred int) int64 {
	if truth < 0 || truth >= c.classes || pred < 0 || pred >= c.classes {
		return 0
	}
	return c.counts[truth*c.classes+pred]
}

// Total returns the number of observations recorded.
func (c *Confusion) Total() int64 {
	var total int64
	for _, n := range c.counts {
		total += n
	}
	return total
}

// Merge adds another matrix's counts into this one. The class counts
// must match.
func (c *Confusion) Merge(other *Confusion) error {
	if other.classes != c.classes {
		return fmt.Errorf("cannot merge confusion matrices with %d and %d classes", c.classes, other.classes)
	}
	for i, n := range other.counts {
		c.counts[i] += n
	}
	return nil
}

// AddPixels records a pair of class-index rasters of equal length.
func (c *Confusion) AddPixels(truth, pred []int) error {
	if len(truth) != len(pred) {
		return fmt.Errorf("truth has %d pixels, prediction has %d", len(truth), len(pred))
	}
	for i := range truth {
		c.Add(truth[i], pred[i])
	}
	return nil
}

// AddLabels records a pair of float rasters holding class indices, the
// form labels take inside parsed patches.
func (c *Confusion) AddLabels(truth, pred []float32) error {
	if len(truth) != len(pred) {
		return fmt.Errorf("truth has %d pixels, prediction has %d", len(truth), len(pred))
	}
	for i := range truth {
		c.Add(int(truth[i]), int(pred[i]))
	}
	return nil
}

// Argmax returns the index of the largest value, or -1 for an empty
// slice. Ties resolve to the lowest index.
func Argmax(values []float32) int {
	if len(values) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] > values[best] {
			best = i
		}
	}
	return best
}

// ClassScores holds the confusion counts and derived scores for one class
// in a one-vs-rest view of the matrix.
type ClassScores struct {
	Class int   `json:"class"`
	TP    int64 `json:"tp"`
	FP    int64 `json:"fp"`
	FN    int64 `json:"fn"`
	TN    int64 `json:"tn"`

	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Dice      float64 `json:"dice"`
	IoU       float64 `json:"iou"`
}

// Summary is the full evaluation result.
type Summary struct {
	Classes  int           `json:"classes"`
	Total    int64         `json:"total"`
	Accuracy float64       `json:"accuracy"`
	PerClass []ClassScores `json:"per_class"`
}

// Class computes one-vs-rest scores for a single class.
func (c *Confusion) Class(class int) ClassScores {
	s := ClassScores{Class: class}
	for t := 0; t < c.classes; t++ {
		for p := 0; p < c.classes; p++ {
			n := c.counts[t*c.classes+p]
			switch {
			case t == class && p == class:
				s.TP += n
			case t == class:
				s.FN += n
			case p == class:
				s.FP += n
			default:
				s.TN += n
			}
		}
	}
	s.Precision = ratio(s.TP, s.TP+s.FP)
	s.Recall = ratio(s.TP, s.TP+s.FN)
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	s.Dice = ratio(2*s.TP, 2*s.TP+s.FP+s.FN)
	s.IoU = ratio(s.TP, s.TP+s.FP+s.FN)
	return s
}

// Summarize derives scores for every class plus overall accuracy.
func (c *Confusion) Summarize() Summary {
	summary := Summary{
		Classes:  c.classes,
		Total:    c.Total(),
		PerClass: make([]ClassScores, c.classes),
	}
	var correct int64
	for i := 0; i < c.classes; i++ {
		summary.PerClass[i] = c.Class(i)
		correct += c.counts[i*c.classes+i]
	}
	summary.Accuracy = ratio(correct, summary.Total)
	return summary
}

func ratio(num, den int64) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Format renders the summary as an aligned text table.
func (s Summary) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "pixels: %d  accuracy: %.4f\n", s.Total, s.Accuracy)
	sb.WriteString("class  precision  recall     f1         dice       iou\n")
	for _, cs := range s.PerClass {
		fmt.Fprintf(&sb, "%-5d  %-9.4f  %-9.4f  %-9.4f  %-9.4f  %-9.4f\n",
			cs.Class, cs.Precision, cs.Recall, cs.F1, cs.Dice, cs.IoU)
	}
	return sb.String()
}
