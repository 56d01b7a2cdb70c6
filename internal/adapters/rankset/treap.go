package rankset

// Order-statistic treap keyed by (score asc, id asc). Priorities are random,
// which keeps the expected depth logarithmic regardless of insert order.

type node struct {
	id    string
	score int64
	prio  uint64
	left  *node
	right *node
	size  int
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

// less returns true if (aScore, aID) sorts before (bScore, bID).
func less(aScore int64, aID string, bScore int64, bID string) bool {
	if aScore != bScore {
		return aScore < bScore
	}
	return aID < bID
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

func insert(n *node, id string, score int64, prio uint64) *node {
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

func deleteNode(n *node, id string, score int64) *node {
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

// countGreater returns the number of nodes with a score strictly greater than score.
func countGreater(n *node, score int64) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += 1 + nsize(n.right)
			n = n.left
		} else {
			n = n.right
		}
	}
	return count
}

// lowest returns the first node in order, or nil for an empty tree.
func lowest(n *node) *node {
	if n == nil {
		return nil
	}
	for n.left != nil {
		n = n.left
	}
	return n
}

// collectLowest appends up to limit nodes in ascending order.
func collectLowest(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectLowest(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	collectLowest(n.right, limit, out)
}

// collectHighest appends up to limit nodes in descending order.
func collectHighest(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectHighest(n.right, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	collectHighest(n.left, limit, out)
}
