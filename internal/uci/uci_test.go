package uci

import (
	"os"
	"testing"
	"time"

	"github.com/mctschess/engine/internal/board"
	"github.com/mctschess/engine/internal/evalcache"
	"github.com/mctschess/engine/internal/neteval"
)

func newTestUCI(t *testing.T) *UCI {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "mctschess-uci-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })
	t.Setenv("XDG_DATA_HOME", tmpDir)

	eval := neteval.New(&neteval.StubRunner{}, 104, evalcache.New())
	t.Cleanup(func() { eval.Close() })
	return New(eval)
}

func TestParseSetOption(t *testing.T) {
	name, value := parseSetOption([]string{"name", "CPuct", "value", "15"})
	if name != "CPuct" || value != "15" {
		t.Fatalf("got name=%q value=%q", name, value)
	}

	name, value = parseSetOption([]string{"name", "Use", "GPU", "value", "true"})
	if name != "Use GPU" || value != "true" {
		t.Fatalf("got name=%q value=%q", name, value)
	}
}

func TestHandleSetOption(t *testing.T) {
	u := newTestUCI(t)

	u.handleSetOption([]string{"name", "Threads", "value", "4"})
	if u.threads != 4 {
		t.Fatalf("threads = %d, want 4", u.threads)
	}

	u.handleSetOption([]string{"name", "CPuct", "value", "20"})
	if u.cpuct != 2.0 {
		t.Fatalf("cpuct = %v, want 2.0", u.cpuct)
	}

	u.handleSetOption([]string{"name", "VisitLimit", "value", "500"})
	if u.visitLimit != 500 {
		t.Fatalf("visitLimit = %d, want 500", u.visitLimit)
	}

	u.handleSetOption([]string{"name", "UseGPU", "value", "true"})
	if !u.useGPU {
		t.Fatal("expected useGPU to be true")
	}
}

func TestHandleSetOptionHashShrinksCapacity(t *testing.T) {
	u := newTestUCI(t)

	// 1MB holds roughly 140 entries at ~7.4KB each; well under the
	// default 100,000-entry capacity.
	u.handleSetOption([]string{"name", "Hash", "value", "1"})

	for i := uint64(0); i < 500; i++ {
		u.eval.Cache().Put(i, evalcache.Entry{Value: float32(i)})
	}
	if got := u.eval.Cache().Len(); got >= 500 {
		t.Fatalf("Len() = %d, expected the smaller Hash-derived capacity to trigger eviction", got)
	}
}

func TestHandlePositionStartposMoves(t *testing.T) {
	u := newTestUCI(t)

	u.handlePosition([]string{"startpos", "moves", "e2e4", "e7e5"})

	if u.gs.Position().SideToMove != board.White {
		t.Fatalf("SideToMove = %v, want White after two plies", u.gs.Position().SideToMove)
	}
	if u.gs.Position().PieceAt(board.E4) != board.WhitePawn {
		t.Fatal("expected a white pawn on e4")
	}
	if u.gs.Position().PieceAt(board.E5) != board.BlackPawn {
		t.Fatal("expected a black pawn on e5")
	}
}

func TestHandlePositionSkipsInvalidMove(t *testing.T) {
	u := newTestUCI(t)

	u.handlePosition([]string{"startpos", "moves", "e2e4", "z9z9", "e7e5"})

	// The malformed move is skipped; e7e5 still applies against the
	// position as it stood after e2e4.
	if u.gs.Position().SideToMove != board.White {
		t.Fatalf("SideToMove = %v, want White", u.gs.Position().SideToMove)
	}
	if u.gs.Position().PieceAt(board.E5) != board.BlackPawn {
		t.Fatal("expected e7e5 to still have been applied")
	}
}

func TestHandlePositionFEN(t *testing.T) {
	u := newTestUCI(t)
	before := u.gs

	u.handlePosition([]string{"fen", "not", "a", "fen"})
	if u.gs != before {
		t.Fatal("a malformed FEN should leave the board unchanged")
	}

	u.handlePosition([]string{"fen", "8/8/8/8/8/8/8/8", "w", "-", "-"})
	if u.gs == before {
		t.Fatal("expected a well-formed FEN to replace the position")
	}
}

func TestCalculateBudgetMoveTime(t *testing.T) {
	u := newTestUCI(t)

	budget := u.calculateBudget(GoOptions{MoveTime: 200 * time.Millisecond})
	if budget.Deadline.IsZero() {
		t.Fatal("expected a deadline budget")
	}
	remaining := time.Until(budget.Deadline)
	if remaining <= 0 || remaining > 200*time.Millisecond {
		t.Fatalf("deadline %v outside expected window", remaining)
	}
}

func TestCalculateBudgetVisits(t *testing.T) {
	u := newTestUCI(t)

	budget := u.calculateBudget(GoOptions{Visits: 50})
	if budget.Visits != 50 {
		t.Fatalf("Visits = %d, want 50", budget.Visits)
	}
}

func TestCalculateBudgetDefaultsToVisitLimit(t *testing.T) {
	u := newTestUCI(t)

	budget := u.calculateBudget(GoOptions{})
	if budget.Visits != u.visitLimit {
		t.Fatalf("Visits = %d, want visitLimit %d", budget.Visits, u.visitLimit)
	}
}

func TestCalculateBudgetVisitsClampedToLimit(t *testing.T) {
	u := newTestUCI(t)
	u.visitLimit = 100

	budget := u.calculateBudget(GoOptions{Visits: 9000})
	if budget.Visits != 100 {
		t.Fatalf("Visits = %d, want clamped to 100", budget.Visits)
	}
}

func TestCalculateBudgetWtime(t *testing.T) {
	u := newTestUCI(t)
	// Starting position: White to move.
	budget := u.calculateBudget(GoOptions{WTime: 10 * time.Second, MovesToGo: 10})
	if budget.Deadline.IsZero() {
		t.Fatal("expected a deadline budget for wtime")
	}
	if time.Until(budget.Deadline) <= 0 {
		t.Fatal("expected a positive deadline")
	}
}
