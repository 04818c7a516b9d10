package cache

type node[V any] struct {
	key string
	val V

	prev *node[V]
	next *node[V]
}

// LRU is a fixed-capacity least-recently-used cache keyed by string. Not
// safe for concurrent use; callers hold their own lock.
type LRU[V any] struct {
	capacity int
	cache    map[string]*node[V]

	left  *node[V]
	right *node[V]
}

func NewLRU[V any](capacity int) *LRU[V] {
	left, right := &node[V]{}, &node[V]{}

	left.next = right
	right.prev = left

	return &LRU[V]{
		left:     left,
		right:    right,
		capacity: capacity,
		cache:    make(map[string]*node[V]),
	}
}

func (l *LRU[V]) Put(key string, value V) {
	if existing, exists := l.cache[key]; exists {
		l.deleteNode(existing)
	}

	n := &node[V]{key: key, val: value}
	l.cache[key] = n
	l.insertNode(n)

	if len(l.cache) > l.capacity {
		l.evict()
	}
}

func (l *LRU[V]) Get(key string) (V, bool) {
	n, exists := l.cache[key]
	if !exists {
		var zero V
		return zero, false
	}

	l.deleteNode(n)
	l.insertNode(n)

	return n.val, true
}

func (l *LRU[V]) Len() int {
	return len(l.cache)
}

func (l *LRU[V]) evict() {
	lru := l.left.next
	l.deleteNode(lru)

	delete(l.cache, lru.key)
}

func (l *LRU[V]) insertNode(n *node[V]) {
	prev, next := l.right.prev, l.right

	n.prev = prev
	n.next = next

	prev.next = n
	next.prev = n
}

func (l *LRU[V]) deleteNode(n *node[V]) {
	prev, next := n.prev, n.next

	prev.next = next
	next.prev = prev
}
