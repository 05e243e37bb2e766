// Package decision turns raw class scores into a user-facing verdict.
package decision

import (
	"fmt"
	"math"

	"github.com/Brownie44l1/cassava-api/internal/model"
)

// DefaultThreshold is the lowest confidence reported as a diagnosis. A
// Decider may be stricter but never more lenient.
const DefaultThreshold = 0.8

// UncertainMessage is shown when no class reaches the threshold.
const UncertainMessage = "The model is uncertain about this image. Please ensure the leaf is clearly visible and well-lit, then try again."

// Kind tags a Verdict.
type Kind int

const (
	Uncertain Kind = iota
	Classified
)

func (k Kind) String() string {
	if k == Classified {
		return "classified"
	}
	return "uncertain"
}

// Verdict is the terminal output of one classification.
type Verdict struct {
	Kind          Kind
	Label         string
	LabelIndex    int
	Confidence    float64
	Message       string
	Probabilities model.ProbabilityVector
}

// IsClassified reports whether the verdict names a class.
func (v Verdict) IsClassified() bool {
	return v.Kind == Classified
}

// String renders the verdict the way it is shown to users.
func (v Verdict) String() string {
	if v.Kind != Classified {
		return v.Message
	}
	return fmt.Sprintf("%s - %.0f%% sure", v.Label, v.Confidence*100)
}

// Decider applies the acceptance policy to model output. Threshold values
// below DefaultThreshold are treated as DefaultThreshold.
type Decider struct {
	Labels    model.LabelSet
	Threshold float64
}

// CheckThreshold reports whether t is a usable override of DefaultThreshold.
func CheckThreshold(t float64) error {
	if math.IsNaN(t) || t < DefaultThreshold || t > 1 {
		return fmt.Errorf("confidence threshold must be in [%v, 1], got %v", DefaultThreshold, t)
	}
	return nil
}

// New returns a Decider for labels with the default threshold.
func New(labels model.LabelSet) *Decider {
	return &Decider{Labels: labels, Threshold: DefaultThreshold}
}

// Softmax converts scores into probabilities, subtracting the maximum first
// so large magnitudes do not overflow.
func Softmax(scores model.ScoreVector) model.ProbabilityVector {
	probs := make(model.ProbabilityVector, len(scores))
	if len(scores) == 0 {
		return probs
	}

	m := float64(scores[0])
	for _, s := range scores[1:] {
		m = math.Max(m, float64(s))
	}

	var sum float64
	for i, s := range scores {
		probs[i] = math.Exp(float64(s) - m)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Decide validates scores, applies Softmax and judges the result.
func (d *Decider) Decide(scores model.ScoreVector) (Verdict, error) {
	if len(scores) != model.NumClasses {
		return Verdict{}, fmt.Errorf("%w: got %d scores, want %d", model.ErrInferenceFailure, len(scores), model.NumClasses)
	}
	for i, s := range scores {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return Verdict{}, fmt.Errorf("%w: score %d is not finite", model.ErrInferenceFailure, i)
		}
	}
	return d.Judge(Softmax(scores)), nil
}

// Judge picks the most probable class (lowest index on ties) and accepts it
// when its probability is at least the threshold.
func (d *Decider) Judge(probs model.ProbabilityVector) Verdict {
	best := argmax(probs)

	var confidence float64
	if len(probs) > 0 {
		confidence = math.Min(math.Max(probs[best], 0), 1)
	}

	threshold := math.Max(d.Threshold, DefaultThreshold)
	if confidence < threshold || best >= len(d.Labels) {
		return Verdict{
			Kind:          Uncertain,
			LabelIndex:    -1,
			Message:       UncertainMessage,
			Probabilities: probs,
		}
	}
	return Verdict{
		Kind:          Classified,
		Label:         d.Labels[best],
		LabelIndex:    best,
		Confidence:    confidence,
		Probabilities: probs,
	}
}

// argmax returns the index of the largest probability, the lowest on ties.
func argmax(probs model.ProbabilityVector) int {
	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	return best
}
