package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Brownie44l1/cassava-api/internal/decision"
	"github.com/Brownie44l1/cassava-api/internal/logging"
	"github.com/Brownie44l1/cassava-api/internal/model"
)

// State is the readiness of a Loader.
type State int

const (
	NotReady State = iota
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "not_ready"
	}
}

// OpenFunc constructs a runner and reports the labels its scores align with.
type OpenFunc func() (model.Runner, model.LabelSet, error)

// OpenModel adapts model.Open to an OpenFunc.
func OpenModel(opts model.Options) OpenFunc {
	return func() (model.Runner, model.LabelSet, error) {
		return model.Open(opts)
	}
}

// Loader builds the queue in the background and reports readiness.
type Loader struct {
	mu    sync.RWMutex
	state State
	err   error
	queue *Queue
	ready chan struct{}
}

// Load starts constructing the runner on its own goroutine. threshold <= 0
// selects decision.DefaultThreshold.
func Load(open OpenFunc, threshold float64) *Loader {
	l := &Loader{ready: make(chan struct{})}
	go func() {
		defer close(l.ready)
		start := time.Now()

		runner, labels, err := open()

		l.mu.Lock()
		defer l.mu.Unlock()
		if err != nil {
			l.state = Failed
			l.err = err
			logging.Errorf("model load failed: %v", err)
			return
		}

		decider := decision.New(labels)
		switch {
		case threshold == 0:
		case decision.CheckThreshold(threshold) != nil:
			logging.Warnf("ignoring confidence threshold %v, using %v", threshold, decision.DefaultThreshold)
		default:
			decider.Threshold = threshold
		}
		l.queue = NewQueue(New(runner, decider))
		l.state = Ready
		logging.Infof("model ready in %s, classes: %v", time.Since(start), labels)
	}()
	return l
}

// State returns the current readiness and, when Failed, the load error.
func (l *Loader) State() (State, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state, l.err
}

// Queue returns the classification queue once the model is ready.
func (l *Loader) Queue() (*Queue, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	switch l.state {
	case Ready:
		return l.queue, nil
	case Failed:
		return nil, l.err
	default:
		return nil, model.ErrNotReady
	}
}

// Wait blocks until loading finishes or ctx is done.
func (l *Loader) Wait(ctx context.Context) (*Queue, error) {
	select {
	case <-l.ready:
		return l.Queue()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", model.ErrNotReady, ctx.Err())
	}
}

// Close waits for loading to finish and shuts the queue down.
func (l *Loader) Close() error {
	<-l.ready
	l.mu.RLock()
	q := l.queue
	l.mu.RUnlock()
	if q == nil {
		return nil
	}
	return q.Close()
}
