// Package mcts implements PUCT-guided Monte-Carlo tree search driven by
// an external policy+value network (spec.md §4.10).
package mcts

import (
	"sync"

	"github.com/mctschess/engine/internal/board"
)

// virtualLoss is the temporary value penalty applied to a node while a
// simulation is descending through it, discouraging concurrent
// simulations from piling onto the same subtree.
const virtualLoss = 0.3

// Node is one position in the search tree: visit count, total/mean
// value, prior probability (assigned by its parent during expansion),
// and its outgoing edges. Every field below mu is read or written only
// while holding mu, per spec.md §5's per-node locking discipline.
type Node struct {
	mu sync.Mutex

	N int
	W float64
	Q float64
	P float64

	expanded bool
	order    []board.Move
	children map[board.Move]*Node
}

// Tree interns nodes in a process-wide map keyed by history-aware hash,
// so two positions reached by different move orders but hashing equal
// share a node (a transposition). A single mutex guards the map; nodes
// themselves have their own finer-grained locks, so contention here is
// limited to the get-or-create path.
type Tree struct {
	mu    sync.Mutex
	nodes map[uint64]*Node
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{nodes: make(map[uint64]*Node)}
}

// GetOrCreate returns the node for hash, creating it if absent.
func (t *Tree) GetOrCreate(hash uint64) *Node {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.nodes[hash]; ok {
		return n
	}
	n := &Node{children: make(map[board.Move]*Node)}
	t.nodes[hash] = n
	return n
}

// Clear empties the tree. Invoked on ucinewgame and on position changes.
func (t *Tree) Clear() {
	t.mu.Lock()
	t.nodes = make(map[uint64]*Node)
	t.mu.Unlock()
}

// Len reports how many nodes are currently interned.
func (t *Tree) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.nodes)
}

// snapshotChildren copies a node's edges under its lock, for use outside
// the lock (PUCT scoring, visit-count comparison).
func (n *Node) snapshotChildren() ([]board.Move, []*Node) {
	n.mu.Lock()
	defer n.mu.Unlock()
	order := append([]board.Move(nil), n.order...)
	children := make([]*Node, len(order))
	for i, m := range order {
		children[i] = n.children[m]
	}
	return order, children
}
