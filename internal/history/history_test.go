package history

import (
	"testing"

	"github.com/mctschess/engine/internal/board"
)

func mustPos(t *testing.T, fen string) *board.Position {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}
	return pos
}

func TestGetMissingBeyondRecorded(t *testing.T) {
	h := New()
	pos := mustPos(t, board.StartFEN)
	h.Add(pos)

	if _, ok := h.Get(1); ok {
		t.Fatal("Get(1) should be missing with only one slot recorded")
	}
	if _, ok := h.Get(8); ok {
		t.Fatal("Get(8) is out of ring range and should be missing")
	}
	if _, ok := h.Current(); !ok {
		t.Fatal("Current() should exist once a slot has been added")
	}
}

func TestCountRepetitions(t *testing.T) {
	h := New()
	pos := mustPos(t, board.StartFEN)
	for i := 0; i < 3; i++ {
		h.Add(pos)
	}
	if got := h.CountRepetitions(pos); got != 2 {
		t.Fatalf("CountRepetitions = %d, want 2 (3 identical slots, excluding current)", got)
	}
}

func TestMakeUnmakeRestoresHistory(t *testing.T) {
	pos := mustPos(t, board.StartFEN)
	gs := NewGameState(pos)

	before := gs.HistoryAwareHash()
	moves := gs.Position().GenerateLegalMoves()
	if moves.Len() == 0 {
		t.Fatal("starting position has legal moves")
	}
	m := moves.Get(0)

	u := gs.MakeMove(m)
	afterMake := gs.HistoryAwareHash()
	if afterMake == before {
		t.Fatal("history hash should change after a move is recorded")
	}

	gs.UnmakeMove(m, u)
	afterUnmake := gs.HistoryAwareHash()
	if afterUnmake != before {
		t.Fatalf("history hash after unmake = %d, want %d (restored)", afterUnmake, before)
	}
	if gs.Position().Hash != pos.Hash {
		t.Fatal("board position should be restored after unmake")
	}
}

func TestHistoryHashDistinguishesPaths(t *testing.T) {
	// Two different move orders reaching the same board should usually
	// produce distinct history-aware hashes (spec.md §8 cache scenario).
	pos1 := mustPos(t, board.StartFEN)
	gs1 := NewGameState(pos1)
	gs1.MakeMove(board.NewMove(board.G1, board.F3))
	gs1.MakeMove(board.NewMove(board.G8, board.F6))
	gs1.MakeMove(board.NewMove(board.B1, board.C3))

	pos2 := mustPos(t, board.StartFEN)
	gs2 := NewGameState(pos2)
	gs2.MakeMove(board.NewMove(board.B1, board.C3))
	gs2.MakeMove(board.NewMove(board.G8, board.F6))
	gs2.MakeMove(board.NewMove(board.G1, board.F3))

	if gs1.Position().Hash != gs2.Position().Hash {
		t.Skip("boards diverged, not a same-board-different-history case")
	}
	if gs1.HistoryAwareHash() == gs2.HistoryAwareHash() {
		t.Fatal("expected distinct history-aware hashes for distinct move orders")
	}
}
