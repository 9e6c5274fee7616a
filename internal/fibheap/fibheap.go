// Package fibheap implements a Fibonacci heap keyed by task id.
//
// The heap is a min-heap over (priority, sequence) pairs: lower priority
// extracts first, and entries with equal priority extract in insertion
// order. Node handles are kept behind an internal id index so callers
// only ever deal in ids.
package fibheap

import (
	"errors"
	"math"
	"sync"
)

var (
	// ErrNotFound indicates the id has no entry in the heap.
	ErrNotFound = errors.New("id not in heap")
	// ErrKeyIncrease indicates DecreaseKey was called with a larger key.
	ErrKeyIncrease = errors.New("new key is greater than current key")
	// ErrDuplicate indicates Insert was called with an id already present.
	ErrDuplicate = errors.New("id already in heap")
)

// node is an internal heap node. External code never sees these.
type node struct {
	id     string
	key    float64
	seq    uint64
	parent *node
	child  *node
	left   *node
	right  *node
	degree int
	marked bool
}

// less orders nodes by key, then by insertion sequence for stability.
func (n *node) less(other *node) bool {
	if n.key != other.key {
		return n.key < other.key
	}
	return n.seq < other.seq
}

// Heap is a mergeable min-priority queue with O(1) amortized insert and
// decrease-key and O(log n) amortized extract-min.
type Heap struct {
	mu    sync.Mutex
	min   *node
	size  int
	seq   uint64
	index map[string]*node
}

// New creates an empty heap.
func New() *Heap {
	return &Heap{index: make(map[string]*node)}
}

// Len returns the number of entries in the heap.
func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.size
}

// Contains reports whether the id has an entry.
func (h *Heap) Contains(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.index[id]
	return ok
}

// Insert adds an entry for id with the given key as a new root.
func (h *Heap) Insert(key float64, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.index[id]; ok {
		return ErrDuplicate
	}

	n := &node{id: id, key: key, seq: h.seq}
	h.seq++
	n.left = n
	n.right = n
	h.addRoot(n)
	h.index[id] = n
	h.size++
	return nil
}

// ExtractMin removes and returns the minimum-key entry. The boolean is
// false when the heap is empty; emptiness is a normal condition, not an
// error.
func (h *Heap) ExtractMin() (key float64, id string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	z := h.min
	if z == nil {
		return 0, "", false
	}

	// Promote children to roots.
	if z.child != nil {
		c := z.child
		for {
			next := c.right
			c.parent = nil
			c.left = c
			c.right = c
			h.addRoot(c)
			if next == z.child {
				break
			}
			c = next
		}
		z.child = nil
	}

	h.removeRoot(z)
	if z == z.right {
		h.min = nil
	} else {
		h.min = z.right
		h.consolidate()
	}
	h.size--
	delete(h.index, z.id)
	return z.key, z.id, true
}

// Peek returns the minimum entry without removing it.
func (h *Heap) Peek() (key float64, id string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.min == nil {
		return 0, "", false
	}
	return h.min.key, h.min.id, true
}

// DecreaseKey lowers the key of id to newKey, cutting the node from its
// parent (with cascading cuts) if the heap property would be violated.
func (h *Heap) DecreaseKey(id string, newKey float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.index[id]
	if !ok {
		return ErrNotFound
	}
	if newKey > n.key {
		return ErrKeyIncrease
	}
	n.key = newKey
	h.bubbleUp(n)
	return nil
}

// Update sets the key of id to newKey regardless of direction. A key
// increase is implemented as delete followed by reinsert, preserving the
// entry's original insertion sequence so FIFO tie-breaking is unaffected.
func (h *Heap) Update(id string, newKey float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.index[id]
	if !ok {
		return ErrNotFound
	}
	if newKey <= n.key {
		n.key = newKey
		h.bubbleUp(n)
		return nil
	}

	seq := n.seq
	h.deleteLocked(n)
	fresh := &node{id: id, key: newKey, seq: seq}
	fresh.left = fresh
	fresh.right = fresh
	h.addRoot(fresh)
	h.index[id] = fresh
	h.size++
	return nil
}

// Delete removes the entry for id, if present.
func (h *Heap) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	n, ok := h.index[id]
	if !ok {
		return ErrNotFound
	}
	h.deleteLocked(n)
	return nil
}

// deleteLocked removes n by sinking it to the minimum and extracting.
// Caller must hold the lock.
func (h *Heap) deleteLocked(n *node) {
	n.key = math.Inf(-1)
	n.seq = 0 // sort ahead of any real entry at -inf
	h.bubbleUp(n)

	// n is now the minimum; extract it inline.
	if n.child != nil {
		c := n.child
		for {
			next := c.right
			c.parent = nil
			c.left = c
			c.right = c
			h.addRoot(c)
			if next == n.child {
				break
			}
			c = next
		}
		n.child = nil
	}
	h.removeRoot(n)
	if n == n.right {
		h.min = nil
	} else {
		h.min = n.right
		h.consolidate()
	}
	h.size--
	delete(h.index, n.id)
}

// bubbleUp re-establishes the heap property after n's key dropped.
// Caller must hold the lock.
func (h *Heap) bubbleUp(n *node) {
	p := n.parent
	if p != nil && n.less(p) {
		h.cut(n, p)
		h.cascadingCut(p)
	}
	if n.less(h.min) {
		h.min = n
	}
}

// addRoot splices n into the root list. Caller must hold the lock.
func (h *Heap) addRoot(n *node) {
	if h.min == nil {
		n.left = n
		n.right = n
		h.min = n
		return
	}
	n.left = h.min
	n.right = h.min.right
	h.min.right.left = n
	h.min.right = n
	if n.less(h.min) {
		h.min = n
	}
}

// removeRoot unsplices n from the root list. Caller must hold the lock.
func (h *Heap) removeRoot(n *node) {
	n.left.right = n.right
	n.right.left = n.left
}

// cut detaches child from parent and makes it a root.
func (h *Heap) cut(child, parent *node) {
	if child.right == child {
		parent.child = nil
	} else {
		child.left.right = child.right
		child.right.left = child.left
		if parent.child == child {
			parent.child = child.right
		}
	}
	parent.degree--
	child.parent = nil
	child.marked = false
	child.left = child
	child.right = child
	h.addRoot(child)
}

// cascadingCut walks up the tree cutting marked ancestors.
func (h *Heap) cascadingCut(n *node) {
	p := n.parent
	if p == nil {
		return
	}
	if !n.marked {
		n.marked = true
		return
	}
	h.cut(n, p)
	h.cascadingCut(p)
}

// consolidate merges roots of equal degree until all degrees are unique,
// then rebuilds the minimum pointer. Caller must hold the lock.
func (h *Heap) consolidate() {
	if h.min == nil {
		return
	}

	// Collect the current roots before relinking.
	var roots []*node
	cur := h.min
	for {
		roots = append(roots, cur)
		cur = cur.right
		if cur == h.min {
			break
		}
	}

	maxDegree := int(math.Log2(float64(h.size+1)))*2 + 2
	degrees := make([]*node, maxDegree+1)

	for _, n := range roots {
		x := n
		for degrees[x.degree] != nil {
			y := degrees[x.degree]
			if y.less(x) {
				x, y = y, x
			}
			degrees[x.degree] = nil
			h.link(y, x)
		}
		degrees[x.degree] = x
	}

	h.min = nil
	for _, n := range degrees {
		if n == nil {
			continue
		}
		n.left = n
		n.right = n
		h.addRoot(n)
	}
}

// link makes y a child of x. Both must be roots and x.less(y) must hold
// or keys be tied in x's favor.
func (h *Heap) link(y, x *node) {
	h.removeRoot(y)
	y.parent = x
	y.marked = false
	if x.child == nil {
		y.left = y
		y.right = y
		x.child = y
	} else {
		y.left = x.child
		y.right = x.child.right
		x.child.right.left = y
		x.child.right = y
	}
	x.degree++
}
