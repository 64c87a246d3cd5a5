package history

import "github.com/mctschess/engine/internal/board"

// GameState pairs a live board position with its recent history, the unit
// the network evaluator and MCTS operate on (spec.md §4.7/§4.9/§4.10).
type GameState struct {
	pos *board.Position
	hist *PositionHistory
}

// NewGameState starts a GameState at pos, recording it as the first
// history slot.
func NewGameState(pos *board.Position) *GameState {
	gs := &GameState{pos: pos, hist: New()}
	gs.hist.Add(pos)
	return gs
}

// Position returns the current board.
func (gs *GameState) Position() *board.Position {
	return gs.pos
}

// History returns the position history.
func (gs *GameState) History() *PositionHistory {
	return gs.hist
}

// HistoryAwareHash is the transposition key used by EvalCache and the MCTS
// node map: it mixes the raw Zobrist hash with the recency-weighted
// history so that identical boards reached via different move orders do
// not collide.
func (gs *GameState) HistoryAwareHash() uint64 {
	return gs.hist.HistoryHash()
}

// Undo is an opaque token produced by MakeMove, replayed by UnmakeMove to
// restore both the board and the history ring to their exact prior state.
type Undo struct {
	boardUndo   board.UndoInfo
	prevIndex   int
	prevTotal   int
	overwritten snapshot
}

// MakeMove applies m to the position and records the resulting position
// as a new history slot. The returned Undo lets UnmakeMove reverse both
// effects precisely, which is what lets a single GameState be reused,
// make/unmake style, across an MCTS simulation's descent and
// back-propagation instead of cloning per simulation (spec.md §9's
// "snapshot before, restore after" resolution of the history-undo open
// question).
func (gs *GameState) MakeMove(m board.Move) Undo {
	boardUndo := gs.pos.MakeMove(m)

	h := gs.hist
	u := Undo{
		boardUndo: boardUndo,
		prevIndex: h.currentIndex,
		prevTotal: h.totalMoves,
	}
	nextIndex := (h.currentIndex + 1) % slots
	u.overwritten = h.buf[nextIndex]

	h.currentIndex = nextIndex
	h.buf[nextIndex] = snapshot{pos: *gs.pos, valid: true}
	h.totalMoves++

	return u
}

// UnmakeMove reverses the effect of the MakeMove call that produced u.
func (gs *GameState) UnmakeMove(m board.Move, u Undo) {
	h := gs.hist
	h.buf[h.currentIndex] = u.overwritten
	h.currentIndex = u.prevIndex
	h.totalMoves = u.prevTotal

	gs.pos.UnmakeMove(m, u.boardUndo)
}

// Clone deep-copies the GameState, used when a worker needs an
// independent starting point (e.g. the root snapshot each search thread
// begins from).
func (gs *GameState) Clone() *GameState {
	posCopy := gs.pos.Copy()
	return &GameState{pos: posCopy, hist: gs.hist.Clone()}
}
