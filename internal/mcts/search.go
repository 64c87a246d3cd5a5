package mcts

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mctschess/engine/internal/board"
	"github.com/mctschess/engine/internal/history"
	"github.com/mctschess/engine/internal/neteval"
	"github.com/mctschess/engine/internal/policy"
)

// DefaultCPuct is a reasonable starting exploration constant; callers
// normally override it via setoption CPuct.
const DefaultCPuct = 1.5

// Budget selects between the two search modes of spec.md §4.10: a fixed
// visit count split across threads, or a wall-clock deadline.
type Budget struct {
	Visits   int
	Deadline time.Time
}

// Search runs PUCT tree search guided by a network evaluator, sharing a
// single transposition-interning Tree across calls.
type Search struct {
	tree  *Tree
	eval  *neteval.Evaluator
	cpuct float64
}

// NewSearch builds a Search over tree, evaluating leaves with eval.
func NewSearch(tree *Tree, eval *neteval.Evaluator, cpuct float64) *Search {
	if cpuct <= 0 {
		cpuct = DefaultCPuct
	}
	return &Search{tree: tree, eval: eval, cpuct: cpuct}
}

// SetCPuct updates the exploration constant (setoption CPuct).
func (s *Search) SetCPuct(cpuct float64) {
	if cpuct > 0 {
		s.cpuct = cpuct
	}
}

// Clear empties the shared tree (ucinewgame, or a position change).
func (s *Search) Clear() {
	s.tree.Clear()
}

// Run searches from gs with the given budget across threads goroutines,
// returning the root's most-visited move. ok is false when the root has
// no legal moves (spec.md §7's "no legal moves at root" sentinel). stop,
// if non-nil, is polled cooperatively between simulations for early
// termination (the UCI `stop` command).
func (s *Search) Run(gs *history.GameState, budget Budget, threads int, stop *atomic.Bool) (board.Move, bool) {
	if threads < 1 {
		threads = 1
	}

	rootHash := gs.HistoryAwareHash()
	root := s.tree.GetOrCreate(rootHash)
	s.ensureExpanded(root, gs)

	rng := rand.New(rand.NewSource(int64(rootHash)))
	s.applyRootNoise(root, rng)

	order, children := root.snapshotChildren()
	if len(children) == 0 {
		return board.Move(0), false
	}

	// budget.Visits counts the root's own initial expansion (done above by
	// ensureExpanded) as visit #1, so only budget.Visits-1 further
	// simulations are distributed across threads.
	visitsPerThread := 0
	if budget.Visits > 0 {
		remaining := budget.Visits - 1
		if remaining < 0 {
			remaining = 0
		}
		visitsPerThread = remaining / threads
	}

	var wg sync.WaitGroup
	for t := 0; t < threads; t++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			local := gs.Clone()
			for {
				if stop != nil && stop.Load() {
					return
				}
				if budget.Visits > 0 {
					if visitsPerThread <= 0 {
						return
					}
					visitsPerThread--
				} else if !budget.Deadline.IsZero() && !time.Now().Before(budget.Deadline) {
					return
				}
				s.simulate(root, local)
			}
		}(t)
	}
	wg.Wait()

	return mostVisited(order, children)
}

// ensureExpanded runs the network once on root if it has never been
// visited, giving it children and priors before search (and before root
// noise injection) begins.
func (s *Search) ensureExpanded(root *Node, gs *history.GameState) {
	root.mu.Lock()
	done := root.expanded
	root.mu.Unlock()
	if !done {
		s.expand(root, gs)
	}
}

// applyRootNoise mixes Dirichlet exploration noise into the root's
// child priors, per spec.md §4.10, when the root has fewer than 20
// legal moves.
func (s *Search) applyRootNoise(root *Node, rng *rand.Rand) {
	_, children := root.snapshotChildren()
	m := len(children)
	if m == 0 || m >= rootNoiseMoveCeiling {
		return
	}

	noise := dirichletSample(rng, rootNoiseAlpha, m)
	for i, child := range children {
		child.mu.Lock()
		child.P = (1-rootNoiseEps)*child.P + rootNoiseEps*noise[i]
		child.mu.Unlock()
	}
}

type pathEntry struct {
	child *Node
	move  board.Move
	undo  history.Undo
}

// simulate runs one descent-expand-backpropagate cycle starting at root,
// mutating gs in place (make/unmake) rather than cloning per simulation,
// per spec.md §9's resolution of the history-undo open question.
func (s *Search) simulate(root *Node, gs *history.GameState) {
	node := root
	var path []pathEntry
	var value float64

	for {
		node.mu.Lock()
		node.N++
		node.W -= virtualLoss
		node.Q = node.W / float64(node.N)
		n := node.N
		order := append([]board.Move(nil), node.order...)
		children := make([]*Node, len(order))
		for i, m := range order {
			children[i] = node.children[m]
		}
		node.mu.Unlock()

		if len(children) == 0 {
			if tv, terminal := terminalValue(gs); terminal {
				value = tv
				node.mu.Lock()
				node.expanded = true
				node.W, node.Q = value, value
				node.mu.Unlock()
			} else if n == 1 {
				value = s.expand(node, gs)
			} else {
				node.mu.Lock()
				value = node.Q
				node.mu.Unlock()
			}
			break
		}

		idx := selectIndex(children, n, s.cpuct)
		move, child := order[idx], children[idx]
		undo := gs.MakeMove(move)
		path = append(path, pathEntry{child: child, move: move, undo: undo})
		node = child
	}

	// Back-propagate: the leaf (the last path entry's child) already has
	// its true value installed directly by expand()/terminalValue above,
	// so it is excluded from the virtual-loss correction below; every
	// ancestor still carries the virtual loss applied on the way down and
	// needs it replaced by the real (sign-alternating) value.
	for i := len(path) - 1; i >= 0; i-- {
		e := path[i]
		gs.UnmakeMove(e.move, e.undo)
		value = -value

		if i == len(path)-1 {
			continue
		}
		e.child.mu.Lock()
		e.child.W += value + virtualLoss
		e.child.Q = e.child.W / float64(e.child.N)
		e.child.mu.Unlock()
	}
}

// selectIndex picks the PUCT-maximizing child, ties broken by first
// encounter (i.e. lowest index, since order is deterministic creation
// order).
func selectIndex(children []*Node, parentN int, cpuct float64) int {
	sqrtParent := math.Sqrt(float64(parentN))
	best, bestScore := 0, math.Inf(-1)
	for i, child := range children {
		child.mu.Lock()
		q, p, n := child.Q, child.P, child.N
		child.mu.Unlock()

		u := cpuct * p * sqrtParent / float64(1+n)
		score := q + u
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	return best
}

func mostVisited(order []board.Move, children []*Node) (board.Move, bool) {
	if len(children) == 0 {
		return board.Move(0), false
	}
	best, bestN := 0, -1
	for i, c := range children {
		c.mu.Lock()
		n := c.N
		c.mu.Unlock()
		if n > bestN {
			bestN = n
			best = i
		}
	}
	return order[best], true
}

// expand evaluates gs via the network, installs a child node (interned
// in the shared tree) for each legal move with its normalized prior, and
// finalizes this node's own N/W/Q with the returned value, per spec.md
// §4.10's Expansion algorithm.
func (s *Search) expand(node *Node, gs *history.GameState) float64 {
	res, err := s.eval.Evaluate(gs)
	if err != nil {
		return 0
	}

	pos := gs.Position()
	moves := pos.GenerateLegalMoves()

	type childInfo struct {
		move  board.Move
		child *Node
		prior float64
	}

	infos := make([]childInfo, 0, moves.Len())
	var sum float64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		undo := gs.MakeMove(m)
		childHash := gs.HistoryAwareHash()
		gs.UnmakeMove(m, undo)

		child := s.tree.GetOrCreate(childHash)
		idx := policy.Encode(pos, m)
		var prior float64
		if idx != policy.NoIndex {
			prior = float64(res.Policy[idx])
		}
		infos = append(infos, childInfo{move: m, child: child, prior: prior})
		sum += prior
	}

	const eps = 1e-8
	n := len(infos)
	for _, info := range infos {
		p := info.prior / (sum + eps)
		if n > 0 {
			p += eps / float64(n)
		}
		info.child.mu.Lock()
		info.child.P = p
		info.child.mu.Unlock()
	}

	node.mu.Lock()
	value := float64(res.Value)
	if !node.expanded {
		node.children = make(map[board.Move]*Node, n)
		node.order = make([]board.Move, 0, n)
		for _, info := range infos {
			node.children[info.move] = info.child
			node.order = append(node.order, info.move)
		}
		node.expanded = true
		node.W = value
		node.Q = value
		node.N = 1
	} else {
		value = node.Q
	}
	node.mu.Unlock()

	return value
}

// terminalValue implements spec.md §9's resolution of the single-king
// terminal-state proxy: checkmate, stalemate, and the fifty-move rule,
// rather than "opponent's king bitboard is empty".
func terminalValue(gs *history.GameState) (float64, bool) {
	pos := gs.Position()
	if pos.HalfMoveClock >= 100 {
		return 0, true
	}
	if gs.History().CountRepetitions(pos) >= 2 {
		return 0, true
	}
	if pos.HasLegalMoves() {
		return 0, false
	}
	if pos.InCheck() {
		return -1, true
	}
	return 0, true
}
