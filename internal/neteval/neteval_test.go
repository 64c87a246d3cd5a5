package neteval

import (
	"testing"

	"github.com/mctschess/engine/internal/board"
	"github.com/mctschess/engine/internal/evalcache"
	"github.com/mctschess/engine/internal/history"
)

func TestEvaluateStubUniformPolicy(t *testing.T) {
	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	gs := history.NewGameState(pos)

	e := New(&StubRunner{}, 104, evalcache.New())
	defer e.Close()

	res, err := e.Evaluate(gs)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != 0 {
		t.Fatalf("Value = %v, want 0", res.Value)
	}
	want := res.Policy[0]
	for i, p := range res.Policy {
		if p != want {
			t.Fatalf("Policy[%d] = %v, want uniform %v", i, p, want)
		}
	}
}

func TestEvaluateUsesCache(t *testing.T) {
	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatal(err)
	}
	gs := history.NewGameState(pos)

	cache := evalcache.New()
	e := New(&StubRunner{}, 104, cache)
	defer e.Close()

	if _, err := e.Evaluate(gs); err != nil {
		t.Fatal(err)
	}
	if cache.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after first evaluation", cache.Len())
	}

	if _, ok := cache.Get(gs.HistoryAwareHash()); !ok {
		t.Fatal("expected the evaluation to have been cached")
	}
}

func TestCloseStopsWorker(t *testing.T) {
	runner := &StubRunner{}
	e := New(runner, 104, evalcache.New())
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if !runner.Closed {
		t.Fatal("expected Close to release the runner")
	}
}

func TestConcurrentEvaluateBatches(t *testing.T) {
	pos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatal(err)
	}

	e := New(&StubRunner{}, 104, evalcache.New())
	defer e.Close()

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		gs := history.NewGameState(pos.Copy())
		go func() {
			_, err := e.Evaluate(gs)
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
}
