package neteval

// StubRunner is a deterministic Runner used in tests: it returns value 0
// and a uniform policy distribution for every request, matching the
// fixture spec.md §8's MCTS scenario is defined against.
type StubRunner struct {
	Closed bool
}

// Run implements Runner.
func (s *StubRunner) Run(batch Batch) ([]RawOutput, error) {
	outputs := make([]RawOutput, batch.Count)
	uniform := float32(1) / float32(PolicySlots)
	for i := range outputs {
		var logits [PolicySlots]float32
		for j := range logits {
			logits[j] = uniform
		}
		outputs[i] = RawOutput{PolicyLogits: logits, Scalar: 0, HasScalar: true}
	}
	return outputs, nil
}

// Close implements Runner.
func (s *StubRunner) Close() error {
	s.Closed = true
	return nil
}
