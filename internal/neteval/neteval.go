// Package neteval drives the external policy+value network: a bounded
// request queue, a background micro-batching worker, and a result cache
// (spec.md §4.9).
package neteval

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/mctschess/engine/internal/encode"
	"github.com/mctschess/engine/internal/evalcache"
	"github.com/mctschess/engine/internal/history"
)

// PolicySlots is the width of the policy head output.
const PolicySlots = 1858

// Result is one evaluation: a value from the mover's perspective and a
// softmax-normalized policy distribution over all 1858 slots (illegal
// moves are not masked here; MCTS expansion does that).
type Result struct {
	Value  float32
	Policy [PolicySlots]float32
}

// Batch is what Runner.Run consumes: numPlanes stacked feature volumes,
// one per queued request.
type Batch struct {
	Planes []encode.Plane // flattened [B, planes, 8, 8]; Planes[i*numPlanes:(i+1)*numPlanes] is request i
	Count  int
	NumPlanes int
}

// RawOutput is what Runner.Run produces for one batch element: raw
// (un-normalized) policy logits, and either a WDL triplet or a scalar
// value (at least one must be present, per spec.md §4.9).
type RawOutput struct {
	PolicyLogits [PolicySlots]float32
	WDL          [3]float32
	HasWDL       bool
	Scalar       float32
	HasScalar    bool
}

// Runner is the network session: load a model, run a batch, release it.
// Concrete runtimes (ONNX, custom inference servers) implement this; the
// network runtime itself is out of scope for this module (spec.md §4.9).
type Runner interface {
	Run(batch Batch) ([]RawOutput, error)
	Close() error
}

// request is one queued evaluation, completed exactly once.
type request struct {
	gs   *history.GameState
	done chan requestResult
}

type requestResult struct {
	result Result
	err    error
}

const (
	maxBatch       = 16
	maxDelay       = 2 * time.Millisecond
	requestQueueCap = 4096
)

// Evaluator is the public NetEvaluator contract of spec.md §4.9.
type Evaluator struct {
	runner    Runner
	numPlanes int
	cache     *evalcache.Cache

	queue chan request

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New starts an Evaluator backed by runner, batching requests encoded to
// numPlanes feature planes, storing results in cache.
func New(runner Runner, numPlanes int, cache *evalcache.Cache) *Evaluator {
	e := &Evaluator{
		runner:    runner,
		numPlanes: numPlanes,
		cache:     cache,
		queue:     make(chan request, requestQueueCap),
		done:      make(chan struct{}),
	}
	e.wg.Add(1)
	go e.workerLoop()
	return e
}

// Cache exposes the evaluator's cache, for warm-starting or resizing it
// from outside the package (UCI setoption Hash, disk overflow warm-up).
func (e *Evaluator) Cache() *evalcache.Cache {
	return e.cache
}

// Evaluate blocks until gs has been scored, either from cache or by
// routing through the batching worker.
func (e *Evaluator) Evaluate(gs *history.GameState) (Result, error) {
	key := gs.HistoryAwareHash()
	if entry, ok := e.cache.Get(key); ok {
		return Result{Value: entry.Value, Policy: entry.Policy}, nil
	}

	req := request{gs: gs, done: make(chan requestResult, 1)}
	select {
	case e.queue <- req:
	case <-e.done:
		return Result{}, errors.New("neteval: evaluator closed")
	}

	res := <-req.done
	return res.result, res.err
}

// Close stops the background worker and releases the network session.
// Any requests still in flight complete with an error.
func (e *Evaluator) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		e.wg.Wait()
		err = e.runner.Close()
	})
	return err
}

// workerLoop is the dedicated background worker: block for the first
// request, opportunistically drain up to maxBatch-1 more within maxDelay,
// run the network once per batch, and complete every pending handle.
func (e *Evaluator) workerLoop() {
	defer e.wg.Done()
	defer func() {
		closedErr := errors.New("neteval: evaluator closed")
		for {
			select {
			case r := <-e.queue:
				r.done <- requestResult{err: closedErr}
			default:
				return
			}
		}
	}()

	for {
		var first request
		select {
		case first = <-e.queue:
		case <-e.done:
			return
		}

		batch := []request{first}
		deadline := time.NewTimer(maxDelay)
	drain:
		for len(batch) < maxBatch {
			select {
			case req := <-e.queue:
				batch = append(batch, req)
			case <-deadline.C:
				break drain
			case <-e.done:
				deadline.Stop()
				e.failAll(batch, errors.New("neteval: evaluator closed"))
				return
			}
		}
		deadline.Stop()

		e.runBatch(batch)
	}
}

func (e *Evaluator) runBatch(reqs []request) {
	planes := make([]encode.Plane, 0, len(reqs)*e.numPlanes)
	for _, r := range reqs {
		p, err := encode.Encode(r.gs, e.numPlanes)
		if err != nil {
			// numPlanes is shared by the whole batch, so the error applies
			// to every request in it.
			e.failAll(reqs, err)
			return
		}
		planes = append(planes, p...)
	}

	outputs, err := e.runner.Run(Batch{Planes: planes, Count: len(reqs), NumPlanes: e.numPlanes})
	if err != nil {
		e.failAll(reqs, err)
		return
	}
	if len(outputs) != len(reqs) {
		e.failAll(reqs, errors.New("neteval: runner returned a mismatched batch size"))
		return
	}

	for i, r := range reqs {
		result := toResult(outputs[i])
		e.cache.Put(r.gs.HistoryAwareHash(), evalcache.Entry{Value: result.Value, Policy: result.Policy})
		r.done <- requestResult{result: result}
	}
}

func (e *Evaluator) failAll(reqs []request, err error) {
	for _, r := range reqs {
		r.done <- requestResult{err: err}
	}
}

// toResult softmax-normalizes the policy logits and derives a value in
// [-1, 1] from the mover's perspective: P(win) - P(loss) when a WDL
// triplet is present, else tanh(scalar).
func toResult(raw RawOutput) Result {
	var res Result
	res.Policy = softmax(raw.PolicyLogits)

	switch {
	case raw.HasWDL:
		res.Value = raw.WDL[0] - raw.WDL[2]
	case raw.HasScalar:
		res.Value = float32(math.Tanh(float64(raw.Scalar)))
	}
	return res
}

func softmax(logits [PolicySlots]float32) [PolicySlots]float32 {
	var out [PolicySlots]float32
	max := logits[0]
	for _, v := range logits {
		if v > max {
			max = v
		}
	}

	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - max))
		out[i] = float32(e)
		sum += e
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
