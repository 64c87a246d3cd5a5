package policy

import (
	"testing"

	"github.com/mctschess/engine/internal/board"
)

func TestNumValidSlotsFitsNumSlots(t *testing.T) {
	if NumValidSlots() <= 0 || NumValidSlots() > NumSlots {
		t.Fatalf("NumValidSlots() = %d, want in (0, %d]", NumValidSlots(), NumSlots)
	}
}

// roundTrip walks every legal move from a FEN through Encode then Decode
// and checks it comes back unchanged (spec.md §8 property 4).
func roundTrip(t *testing.T, fen string) {
	t.Helper()
	pos, err := board.ParseFEN(fen)
	if err != nil {
		t.Fatalf("ParseFEN(%q): %v", fen, err)
	}

	moves := pos.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)

		idx := Encode(pos, m)
		if idx == NoIndex {
			t.Errorf("fen=%q move=%v: Encode returned NoIndex", fen, m)
			continue
		}
		if idx < 0 || idx >= NumSlots {
			t.Errorf("fen=%q move=%v: Encode returned out-of-range index %d", fen, m, idx)
			continue
		}

		got := Decode(pos, idx)
		if got != m {
			t.Errorf("fen=%q move=%v: round trip gave %v (index %d)", fen, m, got, idx)
		}
	}
}

func TestRoundTripStartingPosition(t *testing.T) {
	roundTrip(t, board.StartFEN)
}

func TestRoundTripKiwipete(t *testing.T) {
	roundTrip(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
}

func TestRoundTripBlackToMove(t *testing.T) {
	roundTrip(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
}

func TestRoundTripEnPassant(t *testing.T) {
	roundTrip(t, "rnbqkbnr/ppp1p1pp/8/3pPp2/8/8/PPPP1PPP/RNBQKBNR w KQkq f6 0 3")
}

func TestRoundTripPromotions(t *testing.T) {
	roundTrip(t, "8/1P6/8/8/k7/8/6p1/K7 w - - 0 1")
	roundTrip(t, "8/1P6/8/8/k7/8/6p1/K7 b - - 0 1")
}

func TestRoundTripCastling(t *testing.T) {
	roundTrip(t, "r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	roundTrip(t, "r3k2r/8/8/8/8/8/8/R3K2R b KQkq - 0 1")
}

// TestMirrorSymmetry checks spec.md §8 property 6: encoding a move as black
// then mirroring the move to white's frame yields the same index as
// encoding the already-mirrored move directly as white.
func TestMirrorSymmetry(t *testing.T) {
	blackPos, err := board.ParseFEN("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1")
	if err != nil {
		t.Fatal(err)
	}
	whitePos, err := board.ParseFEN(board.StartFEN)
	if err != nil {
		t.Fatal(err)
	}

	moves := blackPos.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		idxBlack := Encode(blackPos, m)

		mirrored := mirrorMove(m)
		idxWhite := Encode(whitePos, mirrored)

		if idxBlack != idxWhite {
			t.Errorf("move %v: black-frame index %d != mirrored white-frame index %d", m, idxBlack, idxWhite)
		}
	}
}

func mirrorMove(m board.Move) board.Move {
	from, to := m.From().Mirror(), m.To().Mirror()
	switch {
	case m.IsCastling():
		return board.NewCastling(from, to)
	case m.IsEnPassant():
		return board.NewEnPassant(from, to)
	case m.IsPromotion():
		return board.NewPromotion(from, to, m.Promotion())
	default:
		return board.NewMove(from, to)
	}
}
