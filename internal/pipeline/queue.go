package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/logging"
	"github.com/Brownie44l1/cassava-api/internal/model"
)

type job struct {
	img    *model.ImageBuffer
	tensor model.Tensor
	reply  chan result
}

type result struct {
	verdict decision.Verdict
	err     error
}

// Queue hands jobs to a single worker goroutine that owns the pipeline, so at
// most one inference is ever in flight.
type Queue struct {
	pipeline *Pipeline
	jobs     chan job
	done     chan struct{}
	stopped  chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewQueue starts the worker. The queue takes ownership of p.
func NewQueue(p *Pipeline) *Queue {
	q := &Queue{
		pipeline: p,
		jobs:     make(chan job),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	go q.work()
	return q
}

func (q *Queue) work() {
	defer close(q.stopped)
	for {
		select {
		case j := <-q.jobs:
			start := time.Now()
			var r result
			if j.tensor != nil {
				r.verdict, r.err = q.pipeline.ClassifyTensor(j.tensor)
			} else {
				r.verdict, r.err = q.pipeline.Classify(j.img)
			}
			logging.Debugf("classification finished in %s (kind=%s err=%v)", time.Since(start), r.verdict.Kind, r.err)
			j.reply <- r
		case <-q.done:
			q.closeErr = q.pipeline.Close()
			return
		}
	}
}

// Submit classifies img on the worker. ctx bounds only the wait: a job that
// the worker has picked up always runs to completion.
func (q *Queue) Submit(ctx context.Context, img *model.ImageBuffer) (decision.Verdict, error) {
	return q.submit(ctx, job{img: img, reply: make(chan result, 1)})
}

// SubmitTensor runs inference and the decision on an already prepared tensor.
func (q *Queue) SubmitTensor(ctx context.Context, t model.Tensor) (decision.Verdict, error) {
	if t == nil {
		t = model.Tensor{}
	}
	return q.submit(ctx, job{tensor: t, reply: make(chan result, 1)})
}

func (q *Queue) submit(ctx context.Context, j job) (decision.Verdict, error) {
	select {
	case <-q.done:
		return decision.Verdict{}, model.ErrModelClosed
	default:
	}

	select {
	case q.jobs <- j:
	case <-q.done:
		return decision.Verdict{}, model.ErrModelClosed
	case <-ctx.Done():
		return decision.Verdict{}, ctx.Err()
	}

	select {
	case r := <-j.reply:
		return r.verdict, r.err
	case <-ctx.Done():
		return decision.Verdict{}, ctx.Err()
	}
}

// Labels returns the class names verdicts are reported in.
func (q *Queue) Labels() model.LabelSet {
	return q.pipeline.Labels()
}

// Close stops the worker once the current job finishes and closes the
// pipeline. Repeated calls return the first result.
func (q *Queue) Close() error {
	q.closeOnce.Do(func() {
		close(q.done)
		<-q.stopped
	})
	return q.closeErr
}
