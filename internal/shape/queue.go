package shape

// Item is one (shape, priority) pair held by a Queue.
type Item struct {
	Shape    *Shape
	Priority int
}

// Queue is a persistent priority queue of shapes. Lower priorities dequeue
// first, which is the paint order: a shape with a higher priority is painted
// over every shape with a lower one. Equal priorities dequeue in insertion
// order.
//
// Nodes are never mutated once built, so copying a Queue value is an O(1)
// snapshot: dequeuing from the copy leaves the original untouched. The zero
// value is an empty queue.
type Queue struct {
	root *node
	size int
	seq  uint64
}

// node is a leftist heap node. rank is the length of the right spine.
type node struct {
	item  Item
	seq   uint64
	rank  int
	left  *node
	right *node
}

func (n *node) before(o *node) bool {
	if n.item.Priority != o.item.Priority {
		return n.item.Priority < o.item.Priority
	}
	return n.seq < o.seq
}

func rank(n *node) int {
	if n == nil {
		return 0
	}
	return n.rank
}

func merge(a, b *node) *node {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.before(a) {
		a, b = b, a
	}
	left, right := a.left, merge(a.right, b)
	if rank(left) < rank(right) {
		left, right = right, left
	}
	return &node{
		item:  a.item,
		seq:   a.seq,
		rank:  rank(right) + 1,
		left:  left,
		right: right,
	}
}

func (q *Queue) Len() int {
	return q.size
}

func (q *Queue) Enqueue(s *Shape, priority int) {
	n := &node{item: Item{Shape: s, Priority: priority}, seq: q.seq, rank: 1}
	q.seq++
	q.root = merge(q.root, n)
	q.size++
}

func (q *Queue) Peek() (Item, bool) {
	if q.root == nil {
		return Item{}, false
	}
	return q.root.item, true
}

// Dequeue removes and returns the item that paints next. Other copies of the
// queue are not affected.
func (q *Queue) Dequeue() (Item, bool) {
	if q.root == nil {
		return Item{}, false
	}
	item := q.root.item
	q.root = merge(q.root.left, q.root.right)
	q.size--
	return item, true
}

// Items returns every item in paint order without consuming q.
func (q Queue) Items() []Item {
	items := make([]Item, 0, q.size)
	for {
		item, ok := q.Dequeue()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}
