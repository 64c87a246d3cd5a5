// Package encode turns a GameState into the stacked feature planes the
// network evaluator feeds its model (spec.md §4.8).
package encode

import (
	"fmt"

	"github.com/mctschess/engine/internal/board"
	"github.com/mctschess/engine/internal/history"
)

// Plane is one 8x8 feature layer.
type Plane [8][8]float32

const (
	historySlots      = 8
	planesPerSlot     = 13
	historyPlaneCount = historySlots * planesPerSlot // 104
	castlingPlaneCount = 4
)

// Encode produces numPlanes stacked feature planes for gs, from the
// perspective of gs.Position().SideToMove. Supported values of numPlanes
// are 104 (bare Lc0 history stack), and any value >= 104+castlingPlaneCount+1
// built by appending, in order: castling rights, the rule-50 plane, a
// side-to-move plane (legacy nets), then "all ones" filler planes until
// numPlanes is reached.
func Encode(gs *history.GameState, numPlanes int) ([]Plane, error) {
	mover := gs.Position().SideToMove

	planes := make([]Plane, 0, numPlanes)
	for t := 0; t < historySlots; t++ {
		planes = append(planes, historyPlanes(gs, t, mover)...)
	}

	if numPlanes == len(planes) {
		return planes, nil
	}

	planes = append(planes, castlingPlanes(gs.Position(), mover)...)
	planes = append(planes, rule50Plane(gs.Position()))

	if numPlanes < len(planes) {
		return nil, fmt.Errorf("encode: numPlanes %d too small for %d history+castling+rule50 planes", numPlanes, len(planes))
	}

	remaining := numPlanes - len(planes)
	if remaining > 0 {
		planes = append(planes, sideToMovePlane(mover))
		remaining--
	}
	for remaining > 0 {
		planes = append(planes, onesPlane())
		remaining--
	}
	return planes, nil
}

// historyPlanes builds the 13 planes for history slot t (0 = current).
// Missing slots (early in the game) emit 13 all-zero planes.
func historyPlanes(gs *history.GameState, t int, mover board.Color) []Plane {
	out := make([]Plane, planesPerSlot)

	pos, ok := gs.History().Get(t)
	if !ok {
		return out
	}

	opponent := mover.Other()
	for i, pt := range []board.PieceType{board.Pawn, board.Knight, board.Bishop, board.Rook, board.Queen, board.King} {
		fillPiecePlane(&out[i], pos.Pieces[mover][pt], mover)
		fillPiecePlane(&out[6+i], pos.Pieces[opponent][pt], mover)
	}

	if t == 0 {
		reps := gs.History().CountRepetitions(pos)
		if reps > 3 {
			reps = 3
		}
		if reps > 0 {
			val := float32(reps) / 3
			for r := 0; r < 8; r++ {
				for f := 0; f < 8; f++ {
					out[12][r][f] = val
				}
			}
		}
	}

	return out
}

// fillPiecePlane sets plane[r][f] = 1 for every square of bb, rotated 180
// degrees when mover is black so the mover's pieces sit at the bottom of
// the grid regardless of side.
func fillPiecePlane(plane *Plane, bb board.Bitboard, mover board.Color) {
	bb.ForEach(func(sq board.Square) {
		r, f := sq.Rank(), sq.File()
		if mover == board.Black {
			r, f = 7-r, 7-f
		}
		plane[r][f] = 1
	})
}

func castlingPlanes(pos *board.Position, mover board.Color) []Plane {
	var kingSide, queenSide board.CastlingRights
	var oppKingSide, oppQueenSide board.CastlingRights
	if mover == board.White {
		kingSide, queenSide = board.WhiteKingSideCastle, board.WhiteQueenSideCastle
		oppKingSide, oppQueenSide = board.BlackKingSideCastle, board.BlackQueenSideCastle
	} else {
		kingSide, queenSide = board.BlackKingSideCastle, board.BlackQueenSideCastle
		oppKingSide, oppQueenSide = board.WhiteKingSideCastle, board.WhiteQueenSideCastle
	}

	rights := []board.CastlingRights{kingSide, queenSide, oppKingSide, oppQueenSide}
	planes := make([]Plane, castlingPlaneCount)
	for i, right := range rights {
		if pos.CastlingRights&right != 0 {
			planes[i] = onesPlane()
		}
	}
	return planes
}

func rule50Plane(pos *board.Position) Plane {
	clock := pos.HalfMoveClock
	if clock > 99 {
		clock = 99
	}
	val := float32(clock) / 99
	var p Plane
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			p[r][f] = val
		}
	}
	return p
}

func sideToMovePlane(mover board.Color) Plane {
	var p Plane
	if mover == board.White {
		for r := 0; r < 8; r++ {
			for f := 0; f < 8; f++ {
				p[r][f] = 1
			}
		}
	}
	return p
}

func onesPlane() Plane {
	var p Plane
	for r := 0; r < 8; r++ {
		for f := 0; f < 8; f++ {
			p[r][f] = 1
		}
	}
	return p
}
