package connector

const defaultQueueCapacity = 64

// queue is a growable FIFO backed by a power of 2 sized ring.
// It is not safe for concurrent use.
type queue[T any] struct {
	buffer  []T
	capMask uint64

	head uint64
	tail uint64
}

func newQueue[T any](capacity uint64) *queue[T] {
	capacity = roundToPowerOf2(max(capacity, 1))

	return &queue[T]{
		buffer:  make([]T, capacity),
		capMask: capacity - 1,
	}
}

func roundToPowerOf2(capacity uint64) uint64 {
	capacity--
	capacity |= capacity >> 1
	capacity |= capacity >> 2
	capacity |= capacity >> 4
	capacity |= capacity >> 8
	capacity |= capacity >> 16
	capacity |= capacity >> 32
	capacity++
	return capacity
}

func (q *queue[T]) len() int {
	return int(q.head - q.tail)
}

func (q *queue[T]) grow() {
	oldCap := uint64(len(q.buffer))
	newCap := oldCap << 1

	buf := make([]T, newCap)
	for i := q.tail; i != q.head; i++ {
		buf[i&(newCap-1)] = q.buffer[i&q.capMask]
	}

	q.buffer = buf
	q.capMask = newCap - 1
}

func (q *queue[T]) push(item T) {
	if uint64(q.len()) == uint64(len(q.buffer)) {
		q.grow()
	}

	q.buffer[q.head&q.capMask] = item
	q.head++
}

func (q *queue[T]) pop() (T, bool) {
	var item T
	if q.head == q.tail {
		return item, false
	}

	idx := q.tail & q.capMask
	item = q.buffer[idx]

	// Release the reference held by the ring
	var zero T
	q.buffer[idx] = zero

	q.tail++

	return item, true
}

func (q *queue[T]) drain() []T {
	items := make([]T, 0, q.len())
	for {
		item, ok := q.pop()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}
