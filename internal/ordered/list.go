package ordered

import "github.com/binschema/binschema/internal/iterate"

// element is one node of an insertion-ordered doubly linked list, carrying
// the key/value pair plus a back-pointer to the list it belongs to (used to
// make delete idempotent and to detect a node already unlinked elsewhere).
type element[K comparable, V any] struct {
	next, prev *element[K, V]
	list       *list[K, V]
	k          K
	v          V
}

// list is a circular doubly linked list with a sentinel root element, the
// same shape as container/list, generalized to carry a key/value pair per
// node so [Map] can maintain both O(1) lookup (via its own map index) and
// stable insertion order.
type list[K comparable, V any] struct {
	root element[K, V]
	len  int
}

func (l *list[K, V]) lazyInit() {
	if l.root.next == nil {
		l.root.next = &l.root
		l.root.prev = &l.root
	}
}

// pushBack appends a new node at the end of the list and returns it.
func (l *list[K, V]) pushBack(k K, v V) *element[K, V] {
	l.lazyInit()
	at := l.root.prev
	e := &element[K, V]{k: k, v: v, list: l, prev: at, next: at.next}
	e.prev.next = e
	e.next.prev = e
	l.len++
	return e
}

// delete unlinks e from the list. Safe to call more than once for the same
// node. [list.all] tolerates yield deleting the node it is visiting or any
// node after it, but not the visited node together with its successor.
func (l *list[K, V]) delete(e *element[K, V]) {
	if e.list != l {
		return
	}
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = nil
	e.prev = nil
	e.list = nil
	l.len--
}

// all returns a [iterate.Seq2] walking the list in insertion order. yield
// may add or delete entries mid-iteration: after each yield the successor
// is re-read from the current node while that node is still linked, so a
// node appended by yield is reached and a deleted later node is skipped;
// if yield deleted the current node, the successor captured before yield
// is used instead.
func (l *list[K, V]) all() iterate.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		l.lazyInit()
		for e := l.root.next; e != &l.root; {
			next := e.next
			if !yield(e.k, e.v) {
				return
			}
			if e.list == l {
				next = e.next
			}
			e = next
		}
	}
}
