package connector

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	numProducers     = 8
	numConsumers     = 8
	itemsPerProducer = 10_000
)

func Test_Channel_ClosedOnlyWhenDrainedAndCheckedOut(t *testing.T) {
	assert := assert.New(t)

	ch := NewChannel[int]("test")

	_, status := ch.Read(0)
	assert.Equal(StatusClosed, status)

	ch.CheckIn("p1")
	assert.NoError(ch.Write(1))
	ch.CheckOut("p1")

	// The queue still holds an item
	item, status := ch.Read(NoTimeout)
	assert.Equal(StatusNewItem, status)
	assert.Equal(1, item)

	_, status = ch.Read(NoTimeout)
	assert.Equal(StatusClosed, status)
}

func Test_Channel_WriteAfterCheckOut(t *testing.T) {
	assert := assert.New(t)

	ch := NewChannel[int]("test")
	assert.ErrorIs(ch.Write(1), ErrNoProducers)

	ch.CheckIn("p1")
	ch.CheckIn("p2")
	ch.CheckOut("p1")
	assert.NoError(ch.Write(1))

	ch.CheckOut("p2")
	assert.ErrorIs(ch.Write(2), ErrNoProducers)
	assert.Equal(0, ch.Producers())
}

func Test_Channel_FIFO(t *testing.T) {
	assert := assert.New(t)

	ch := NewChannel[int]("test")
	ch.CheckIn("p")

	for i := range 200 {
		require.NoError(t, ch.Write(i))
	}
	assert.Equal(200, ch.Len())

	for i := range 200 {
		item, status := ch.Read(0)
		assert.Equal(StatusNewItem, status)
		assert.Equal(i, item)
	}
}

func Test_Channel_ReadTimeout(t *testing.T) {
	assert := assert.New(t)

	ch := NewChannel[int]("test")
	ch.CheckIn("p")

	_, status := ch.Read(0)
	assert.Equal(StatusTimeout, status)

	start := time.Now()
	_, status = ch.Read(20 * time.Millisecond)
	assert.Equal(StatusTimeout, status)
	assert.GreaterOrEqual(time.Since(start), 20*time.Millisecond)

	items, status := ch.ReadAll(10 * time.Millisecond)
	assert.Equal(StatusTimeout, status)
	assert.Empty(items)
}

func Test_Channel_CheckOutWakesReaders(t *testing.T) {
	assert := assert.New(t)

	ch := NewChannel[int]("test")
	ch.CheckIn("p")

	done := make(chan Status)
	go func() {
		_, status := ch.Read(NoTimeout)
		done <- status
	}()

	time.Sleep(10 * time.Millisecond)
	ch.CheckOut("p")

	select {
	case status := <-done:
		assert.Equal(StatusClosed, status)
	case <-time.After(time.Second):
		t.Fatal("reader was not woken by check out")
	}
}

func Test_Channel_ReadAll(t *testing.T) {
	assert := assert.New(t)

	ch := NewChannel[string]("test")
	ch.CheckIn("p")

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = ch.Write("a")
	}()

	items, status := ch.ReadAll(NoTimeout)
	assert.Equal(StatusNewItem, status)
	assert.Equal([]string{"a"}, items)

	assert.NoError(ch.Write("b"))
	assert.NoError(ch.Write("c"))
	ch.CheckOut("p")

	items, status = ch.ReadAll(NoTimeout)
	assert.Equal(StatusNewItem, status)
	assert.Equal([]string{"b", "c"}, items)

	items, status = ch.ReadAll(NoTimeout)
	assert.Equal(StatusClosed, status)
	assert.Nil(items)
}

func Test_Channel_BoundedWriteBlocks(t *testing.T) {
	assert := assert.New(t)

	ch := NewBoundedChannel[int]("test", 1)
	ch.CheckIn("p")
	assert.NoError(ch.Write(1))

	written := make(chan struct{})
	go func() {
		_ = ch.Write(2)
		close(written)
	}()

	select {
	case <-written:
		t.Fatal("write on a full channel did not block")
	case <-time.After(20 * time.Millisecond):
	}

	item, status := ch.Read(0)
	assert.Equal(StatusNewItem, status)
	assert.Equal(1, item)

	select {
	case <-written:
	case <-time.After(time.Second):
		t.Fatal("writer was not woken by read")
	}
}

func Test_Channel_MultipleProducersConsumers(t *testing.T) {
	assert := assert.New(t)

	ch := NewChannel[int]("test")

	var receivedItems sync.Map
	var receivedCount atomic.Uint64

	var producerWg sync.WaitGroup
	var consumerWg sync.WaitGroup

	// Producers check in before any consumer can observe a closed channel
	for range numProducers {
		ch.CheckIn("producer")
	}

	consumerWg.Add(numConsumers)
	for range numConsumers {
		go func() {
			defer consumerWg.Done()

			for {
				item, status := ch.Read(NoTimeout)
				if status == StatusClosed {
					return
				}

				receivedItems.Store(item, true)
				receivedCount.Add(1)
			}
		}()
	}

	producerWg.Add(numProducers)
	for i := range numProducers {
		go func(producerID int) {
			defer producerWg.Done()
			defer ch.CheckOut("producer")

			base := producerID * itemsPerProducer
			for j := range itemsPerProducer {
				if err := ch.Write(base + j); err != nil {
					t.Errorf("producer %d failed to write: %v", producerID, err)
					return
				}
			}
		}(i)
	}

	producerWg.Wait()
	consumerWg.Wait()

	totalItems := numProducers * itemsPerProducer
	assert.Equal(uint64(totalItems), receivedCount.Load())

	for i := range totalItems {
		_, ok := receivedItems.Load(i)
		if !ok {
			t.Fatalf("item %d was not received", i)
		}
	}
}
