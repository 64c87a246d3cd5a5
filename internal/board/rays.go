package board

// Ray direction indices, in the order the slider attack queries need them.
// Positive directions (N, NE, E, NW) find their nearest blocker as the LSB
// of the blocker set; negative directions (S, SE, SW, W) use the MSB.
const (
	dirN = iota
	dirNE
	dirE
	dirSE
	dirS
	dirSW
	dirW
	dirNW
	numDirs
)

// rayAttacksTable[dir][sq] holds every square in that direction from sq to
// the board edge, with no blockers applied. Built once at startup and
// trimmed per-query against the live occupancy in rayAttacks.
var rayAttacksTable [numDirs][64]Bitboard

// positiveDir reports whether a direction's nearest blocker is its LSB
// (true) or its MSB (false), per spec's classical ray-scan algorithm.
func positiveDir(dir int) bool {
	switch dir {
	case dirN, dirNE, dirE, dirNW:
		return true
	default:
		return false
	}
}

func initRayAttacks() {
	fileStep := [numDirs]int{0, 1, 1, 1, 0, -1, -1, -1}
	rankStep := [numDirs]int{1, 1, 0, -1, -1, -1, 0, 1}

	for sq := A1; sq <= H8; sq++ {
		f0, r0 := sq.File(), sq.Rank()
		for dir := 0; dir < numDirs; dir++ {
			var bb Bitboard
			f, r := f0+fileStep[dir], r0+rankStep[dir]
			for f >= 0 && f <= 7 && r >= 0 && r <= 7 {
				bb |= SquareBB(NewSquare(f, r))
				f += fileStep[dir]
				r += rankStep[dir]
			}
			rayAttacksTable[dir][sq] = bb
		}
	}
}

// rayAttacks computes the attack set of a single slider direction from sq,
// given the full board occupancy, using classical ray-scanning (spec §4.1):
// intersect the unobstructed ray with the occupancy to find blockers, pick
// the nearest one (LSB for positive directions, MSB for negative), then
// clear every square beyond it using the attack ray rooted at the blocker
// itself. The blocker square stays set.
func rayAttacks(dir int, sq Square, occupied Bitboard) Bitboard {
	attacks := rayAttacksTable[dir][sq]
	blockers := attacks & occupied
	if blockers == 0 {
		return attacks
	}

	var blocker Square
	if positiveDir(dir) {
		blocker = blockers.LSB()
	} else {
		blocker = blockers.MSB()
	}
	return attacks &^ rayAttacksTable[dir][blocker]
}
