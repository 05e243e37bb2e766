// Package pipeline composes preprocessing, inference and the confidence
// decision into one Classify call, and owns the model's lifecycle: background
// loading with a readiness state, and a single worker that serializes every
// inference against the non-reentrant runner.
package pipeline

import (
	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/model"
	"github.com/Brownie44l1/cassava-api/internal/preprocess"
)

// Pipeline is Decide(Run(Prepare(img))). It is not safe for concurrent use;
// wrap it in a Queue.
type Pipeline struct {
	runner  model.Runner
	decider *decision.Decider
}

// New returns a pipeline that owns runner.
func New(runner model.Runner, decider *decision.Decider) *Pipeline {
	return &Pipeline{runner: runner, decider: decider}
}

// Classify runs all three stages. Stage errors are returned unchanged.
func (p *Pipeline) Classify(img *model.ImageBuffer) (decision.Verdict, error) {
	tensor, err := preprocess.Prepare(img)
	if err != nil {
		return decision.Verdict{}, err
	}
	return p.ClassifyTensor(tensor)
}

// ClassifyTensor skips preprocessing for callers that already hold a tensor.
func (p *Pipeline) ClassifyTensor(t model.Tensor) (decision.Verdict, error) {
	scores, err := p.runner.Run(t)
	if err != nil {
		return decision.Verdict{}, err
	}
	return p.decider.Decide(scores)
}

// Labels returns the class names verdicts are reported in.
func (p *Pipeline) Labels() model.LabelSet {
	return p.decider.Labels
}

// Close tears down the runner.
func (p *Pipeline) Close() error {
	return p.runner.Close()
}
