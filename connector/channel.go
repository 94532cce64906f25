package connector

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/cpu"
)

// Channel is a multi-producer/multi-consumer FIFO with a producer reference count.
//
// Producers must call [Channel.CheckIn] before writing and [Channel.CheckOut]
// exactly once when done. The channel reports [StatusClosed] only when
// no producer is checked in and the queue is empty.
type Channel[T any] struct {
	id string

	mux *sync.Mutex

	// notEmpty wakes readers, notFull wakes writers blocked on a full queue.
	notEmpty *sync.Cond
	notFull  *sync.Cond

	_ cpu.CacheLinePad

	queue    *queue[T]
	maxItems int

	refCount  int
	producers map[string]int
}

// NewChannel returns an unbounded channel.
func NewChannel[T any](id string) *Channel[T] {
	return NewBoundedChannel[T](id, 0)
}

// NewBoundedChannel returns a channel whose writers block
// while maxItems items are queued. A maxItems of 0 means unbounded.
func NewBoundedChannel[T any](id string, maxItems int) *Channel[T] {
	mux := &sync.Mutex{}

	capacity := uint64(defaultQueueCapacity)
	if maxItems > 0 {
		capacity = uint64(maxItems)
	}

	return &Channel[T]{
		id: id,

		mux:      mux,
		notEmpty: sync.NewCond(mux),
		notFull:  sync.NewCond(mux),

		queue:    newQueue[T](capacity),
		maxItems: max(maxItems, 0),

		producers: make(map[string]int),
	}
}

// ID returns the identifier of the channel.
func (c *Channel[T]) ID() string {
	return c.id
}

// CheckIn registers a producer.
func (c *Channel[T]) CheckIn(producerID string) {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.refCount++
	c.producers[producerID]++
}

// CheckOut removes a producer and wakes every blocked reader and writer,
// so they can re-evaluate whether the channel is closed.
func (c *Channel[T]) CheckOut(producerID string) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if c.refCount > 0 {
		c.refCount--
	}

	if count := c.producers[producerID]; count <= 1 {
		delete(c.producers, producerID)
	} else {
		c.producers[producerID] = count - 1
	}

	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}

// Write enqueues an item. If the channel is bounded and full,
// it blocks until a reader makes room.
//
// Returns [ErrNoProducers] if no producer is checked in.
func (c *Channel[T]) Write(item T) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	for {
		if c.refCount == 0 {
			return fmt.Errorf("%w: %s", ErrNoProducers, c.id)
		}

		if c.maxItems == 0 || c.queue.len() < c.maxItems {
			break
		}

		c.notFull.Wait()
	}

	c.queue.push(item)
	c.notEmpty.Signal()

	return nil
}

// Read returns the item at the head of the queue.
// A timeout of 0 never blocks, [NoTimeout] blocks until an item
// arrives or the channel is closed.
func (c *Channel[T]) Read(timeout time.Duration) (T, Status) {
	c.mux.Lock()
	defer c.mux.Unlock()

	var item T

	if status := c.waitItems(timeout); status != StatusNewItem {
		return item, status
	}

	item, _ = c.queue.pop()
	c.notFull.Signal()

	return item, StatusNewItem
}

// ReadAll waits like [Channel.Read] and then drains the whole queue at once.
func (c *Channel[T]) ReadAll(timeout time.Duration) ([]T, Status) {
	c.mux.Lock()
	defer c.mux.Unlock()

	if status := c.waitItems(timeout); status != StatusNewItem {
		return nil, status
	}

	items := c.queue.drain()
	c.notFull.Broadcast()

	return items, StatusNewItem
}

// waitItems must be called with the lock held.
func (c *Channel[T]) waitItems(timeout time.Duration) Status {
	if c.queue.len() > 0 {
		return StatusNewItem
	}

	if c.refCount == 0 {
		return StatusClosed
	}

	if timeout == 0 {
		return StatusTimeout
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)

		// sync.Cond has no timed wait, the timer wakes the waiters instead
		timer := time.AfterFunc(timeout, func() {
			c.mux.Lock()
			c.notEmpty.Broadcast()
			c.mux.Unlock()
		})
		defer timer.Stop()
	}

	for c.queue.len() == 0 && c.refCount > 0 {
		if timeout > 0 && !time.Now().Before(deadline) {
			return StatusTimeout
		}

		c.notEmpty.Wait()
	}

	if c.queue.len() == 0 {
		return StatusClosed
	}

	return StatusNewItem
}

// Len returns the number of queued items.
func (c *Channel[T]) Len() int {
	c.mux.Lock()
	defer c.mux.Unlock()

	return c.queue.len()
}

// Producers returns the number of producers checked in.
func (c *Channel[T]) Producers() int {
	c.mux.Lock()
	defer c.mux.Unlock()

	return c.refCount
}
