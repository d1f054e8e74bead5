package latches

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAcquireLatches(t *testing.T) {
	l := Latches{
		latchMap: make(map[int]*sync.WaitGroup),
	}

	// Acquiring a new latch is ok.
	wg := l.AcquireLatches([]int{0, 3, 42})
	assert.Nil(t, wg)

	// Can only acquire once.
	wg = l.AcquireLatches([]int{0})
	assert.NotNil(t, wg)
	wg = l.AcquireLatches([]int{42, 43})
	assert.NotNil(t, wg)
	// A failed acquire latches nothing.
	assert.Equal(t, []int{0, 3, 42}, l.Latched())

	// Release then acquire is ok.
	l.ReleaseLatches([]int{3, 43})
	wg = l.AcquireLatches([]int{3})
	assert.Nil(t, wg)
	wg = l.AcquireLatches([]int{42})
	assert.NotNil(t, wg)
}

func TestWaitForLatches(t *testing.T) {
	l := NewLatches()
	l.WaitForLatches([]int{1})

	acquired := make(chan struct{})
	go func() {
		l.WaitForLatches([]int{2, 1})
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("latch acquired twice")
	case <-time.After(50 * time.Millisecond):
	}
	l.ReleaseLatches([]int{1})
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken up")
	}
	assert.Equal(t, []int{1, 2}, l.Latched())
}
