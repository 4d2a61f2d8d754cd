package repository

import "math/rand/v2"

// treap is an order-statistics tree keyed by (score desc, member desc), the
// order Redis uses for ZREVRANGE. In-order traversal yields the leaderboard
// from best to worst; subtree sizes give O(log n) rank and range lookups.
type treap struct {
	root   *node
	scores map[string]float64
}

type node struct {
	id    string
	score float64
	prio  uint64
	left  *node
	right *node
	size  int
}

func newTreap() *treap {
	return &treap{scores: make(map[string]float64)}
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) comes before (bScore, bID).
func less(aScore float64, aID string, bScore float64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID > bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score float64, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectRange appends nodes whose in-order index lies in [start, stop].
// offset is the index of the leftmost node of n.
func collectRange(n *node, offset, start, stop int, out *[]Member) {
	if n == nil {
		return
	}
	idx := offset + nsize(n.left)
	if start < idx {
		collectRange(n.left, offset, start, stop, out)
	}
	if idx >= start && idx <= stop {
		*out = append(*out, Member{ID: n.id, Score: n.score})
	}
	if stop > idx {
		collectRange(n.right, idx+1, start, stop, out)
	}
}

func (t *treap) len() int { return len(t.scores) }

func (t *treap) score(id string) (float64, bool) {
	s, ok := t.scores[id]
	return s, ok
}

// set stores score for id, replacing any previous score.
func (t *treap) set(id string, score float64) {
	if old, ok := t.scores[id]; ok {
		if old == score {
			return
		}
		t.root = deleteNode(t.root, id, old)
	}
	t.scores[id] = score
	t.root = insert(t.root, id, score, rand.Uint64())
}

func (t *treap) remove(id string) bool {
	old, ok := t.scores[id]
	if !ok {
		return false
	}
	t.root = deleteNode(t.root, id, old)
	delete(t.scores, id)
	return true
}

// rank returns the 0-based in-order index of id, or -1.
func (t *treap) rank(id string) int {
	score, ok := t.scores[id]
	if !ok {
		return -1
	}
	r := 0
	for n := t.root; n != nil; {
		if n.id == id {
			return r + nsize(n.left)
		}
		if less(score, id, n.score, n.id) {
			n = n.left
		} else {
			r += nsize(n.left) + 1
			n = n.right
		}
	}
	return -1
}

// rangeByIndex applies Redis index semantics (inclusive, negatives from the end).
func (t *treap) rangeByIndex(start, stop int64) []Member {
	n := int64(t.len())
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if n == 0 || start > stop {
		return []Member{}
	}
	out := make([]Member, 0, stop-start+1)
	collectRange(t.root, 0, int(start), int(stop), &out)
	return out
}
